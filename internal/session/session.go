// Package session persists the active conversation handle between runs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ashureev/todochat/internal/domain"
	"github.com/ashureev/todochat/internal/store"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Store reads and writes the conversation handle. It never decides when to
// save or clear; the chat controller does.
type Store struct {
	storage store.Storage
	logger  *slog.Logger
}

// NewStore creates a Store persisting through storage.
func NewStore(storage store.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: storage, logger: logger}
}

// Load returns the persisted conversation handle. ok is false when nothing
// usable is stored; read failures and malformed values count as absent.
func (s *Store) Load(ctx context.Context) (domain.ConversationID, bool) {
	raw, ok, err := s.storage.Get(ctx, store.KeyConversationID)
	if err != nil {
		s.logger.Warn("failed to read conversation id", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if !handlePattern.MatchString(raw) {
		s.logger.Info("ignoring malformed conversation id", "stored", raw)
		return "", false
	}
	return domain.ConversationID(raw), true
}

// Save persists id, replacing any previous value. Saving the absent handle
// clears the stored one.
func (s *Store) Save(ctx context.Context, id domain.ConversationID) error {
	if id.IsZero() {
		return s.Clear(ctx)
	}
	if err := s.storage.Set(ctx, store.KeyConversationID, id.String()); err != nil {
		return fmt.Errorf("save conversation id: %w", err)
	}
	return nil
}

// Clear removes the persisted handle.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Remove(ctx, store.KeyConversationID); err != nil {
		return fmt.Errorf("clear conversation id: %w", err)
	}
	return nil
}
