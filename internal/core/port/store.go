package port

import "context"

// StoreEvent is delivered to subscribers after a successful Set.
type StoreEvent struct {
	Key   string
	Value []byte
}

// KeyValueStore is the persistence collaborator: JSON values under flat
// string keys, last-writer-wins, no transactions. Set also fans out a
// change notification to subscribers in other execution contexts
// sharing the store.
type KeyValueStore interface {
	// Get unmarshals the value at key into out. Returns
	// domain.ErrNotFound when the key has never been written.
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any) error
	// Subscribe registers fn for changes to the given key. The returned
	// cancel func must be safe to call more than once.
	Subscribe(key string, fn func(StoreEvent)) (cancel func())
}
