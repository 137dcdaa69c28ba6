package kvstore

// KeyValue is the minimal client-local storage contract. Each platform plugs
// in its own implementation; everything above it is written only against this
// interface.
type KeyValue interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}
