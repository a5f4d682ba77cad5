package store

import "context"

// Store is the persistence surface actors use for crash recovery. Values are
// JSON blobs rewritten wholesale on every mutation; there is no query surface.
type Store interface {
	// SaveJSON marshals v and writes it under key, replacing any prior value.
	SaveJSON(ctx context.Context, key string, v any) error
	// LoadJSON reads key into dest. Returns false (and no error) when the key
	// does not exist.
	LoadJSON(ctx context.Context, key string, dest any) (bool, error)
	// SaveWake persists a wake deadline (epoch millis) for a scheduler key,
	// overwriting any prior deadline.
	SaveWake(ctx context.Context, key string, atMillis int64) error
	// LoadWake reads a persisted wake deadline. Returns false when none is set.
	LoadWake(ctx context.Context, key string) (int64, bool, error)
	// ClearWake removes a persisted wake deadline.
	ClearWake(ctx context.Context, key string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
