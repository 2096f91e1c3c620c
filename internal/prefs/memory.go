package prefs

import "sync"

// Memory is a Store that keeps all values in process memory. It backs tests
// and ephemeral runs where nothing should outlive the process.
type Memory struct {
	mu       sync.RWMutex
	strings  map[string]string
	booleans map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		strings:  map[string]string{},
		booleans: map[string]bool{},
	}
}

func (m *Memory) GetString(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strings[key]
}

func (m *Memory) PutString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

func (m *Memory) GetBoolean(key string, def bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.booleans[key]; ok {
		return v
	}
	return def
}

func (m *Memory) PutBoolean(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.booleans[key] = value
	return nil
}
