package prefs

import "fmt"

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBolt   = "bolt"
)

// NewStoreFromConfig creates a Store for the configured backend.
// The path is ignored by the memory backend.
func NewStoreFromConfig(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return OpenFile(path)
	case BackendBolt, "":
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: %s, %s, %s)", backend, BackendMemory, BackendFile, BackendBolt)
	}
}
