// Package identity provides the anonymous per-client identity.
package identity

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/todochat/internal/store"
)

var clientIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsValid reports whether id has the canonical 8-4-4-4-12 hex shape.
func IsValid(id string) bool {
	return clientIDPattern.MatchString(id)
}

// DisplayName derives a short human label from a client identity.
func DisplayName(id string) string {
	if len(id) > 13 {
		return "anon-" + id[len(id)-8:]
	}
	return "anon-user"
}

// Provider hands out the stable client identity. The first call resolves it
// from storage (minting one if needed); later calls return the cached value.
type Provider struct {
	storage  store.Storage
	logger   *slog.Logger
	generate func() string

	mu       sync.Mutex
	id       string
	degraded bool
}

// NewProvider creates a Provider persisting through storage.
func NewProvider(storage store.Storage, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		storage:  storage,
		logger:   logger,
		generate: generateClientID,
	}
}

// GetOrCreate returns the client identity. It never fails: when storage is
// unavailable the identity lives in memory for the rest of the process and
// Degraded reports true.
func (p *Provider) GetOrCreate(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id
	}

	stored, ok, err := p.storage.Get(ctx, store.KeyUserID)
	if err != nil {
		// Storage is left untouched on a read failure.
		p.id = p.generate()
		p.degraded = true
		p.logger.Warn("client identity unreadable, using in-memory identity", "error", err)
		return p.id
	}
	if ok && IsValid(stored) {
		p.id = stored
		return p.id
	}

	if ok {
		p.logger.Info("discarding malformed client identity", "stored", stored)
	}

	id := p.generate()
	if err := p.storage.Set(ctx, store.KeyUserID, id); err != nil {
		p.degraded = true
		p.logger.Warn("failed to persist client identity, using in-memory identity", "error", err)
	}
	p.id = id
	return p.id
}

// Degraded reports whether the identity could not be persisted.
func (p *Provider) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// generateClientID mints a random version-4 UUID, falling back to a seeded
// ChaCha8 stream if the system random source fails.
func generateClientID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return uuid.Must(uuid.NewRandomFromReader(fallbackSource())).String()
}

func fallbackSource() *rand.ChaCha8 {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[0:], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint64(seed[8:], uint64(os.Getpid()))
	binary.LittleEndian.PutUint64(seed[16:], rand.Uint64())
	binary.LittleEndian.PutUint64(seed[24:], rand.Uint64())
	return rand.NewChaCha8(seed)
}
