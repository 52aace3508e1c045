package access

// LocalCache is the persistent key-value capability used for serialized
// session credentials. Get returns (nil, nil) when the key is absent.
type LocalCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}
