// Package store provides durable client-side key-value persistence.
package store

import "context"

// Well-known keys persisted by the client.
const (
	KeyUserID         = "user_id"
	KeyConversationID = "conversation_id"
)

// Storage is the key-value capability the identity provider and session store
// persist through.
type Storage interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Repository is a Storage backed by a resource that must be health-checked
// and released.
type Repository interface {
	Storage

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
