package inspect

import (
	"log/slog"
	"sort"
	"sync"
)

// Store is a string key/value store such as browser localStorage
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Keys() []string
}

// MemoryStore is an in-memory Store
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Access records one operation on a MonitoredStore
type Access struct {
	Op        string  `json:"op"`
	Key       string  `json:"key"`
	Sensitive bool    `json:"sensitive"`
	Matches   []Match `json:"matches,omitempty"`
}

// MonitoredStore wraps a Store, logging every access and scanning the values
// that pass through it.
type MonitoredStore struct {
	name   string
	inner  Store
	logger *slog.Logger

	mu       sync.Mutex
	accesses []Access
}

// NewMonitoredStore wraps inner. name identifies the store in log output.
func NewMonitoredStore(name string, inner Store, logger *slog.Logger) *MonitoredStore {
	return &MonitoredStore{name: name, inner: inner, logger: logger}
}

func (s *MonitoredStore) Get(key string) (string, bool) {
	v, ok := s.inner.Get(key)
	s.record("get", key, v)
	return v, ok
}

func (s *MonitoredStore) Set(key, value string) {
	s.record("set", key, value)
	s.inner.Set(key, value)
}

func (s *MonitoredStore) Keys() []string {
	return s.inner.Keys()
}

func (s *MonitoredStore) record(op, key, value string) {
	a := Access{Op: op, Key: key, Sensitive: IsSensitiveKey(key)}
	if value != "" {
		if matches, err := ScanJSON([]byte(value)); err == nil {
			a.Matches = matches
		} else {
			a.Matches = ScanText(value)
		}
	}

	s.logger.Debug("store access", "store", s.name, "op", op, "key", key)
	if a.Sensitive || len(a.Matches) > 0 {
		// never log the value itself
		s.logger.Warn("sensitive data in store", "store", s.name, "op", op, "key", key,
			"value_length", len(value), "matches", len(a.Matches))
	}

	s.mu.Lock()
	s.accesses = append(s.accesses, a)
	s.mu.Unlock()
}

// Accesses returns every recorded access in order
func (s *MonitoredStore) Accesses() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Access, len(s.accesses))
	copy(out, s.accesses)
	return out
}

// Flagged returns the accesses that touched sensitive data
func (s *MonitoredStore) Flagged() []Access {
	var out []Access
	for _, a := range s.Accesses() {
		if a.Sensitive || len(a.Matches) > 0 {
			out = append(out, a)
		}
	}
	return out
}
