package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("store: key not found")
	// ErrVersionMismatch is returned by Put when the expected version does not
	// match the current one (or the key already exists and expect was 0).
	ErrVersionMismatch = errors.New("store: version mismatch")
)

// Entry is a stored value together with its version. Versions start at 1 and
// increase by one on every successful Put.
type Entry struct {
	Value   []byte
	Version uint64
}

// KeyEntry is an Entry paired with its key, as returned by List.
type KeyEntry struct {
	Key string
	Entry
}

// KV is a versioned key-value store with per-key compare-and-swap.
// Put with expect=0 creates the key and fails if it already exists; any other
// expect value must equal the current version or the write is rejected.
// Callers build read-modify-write loops on top of this contract.
type KV interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, value []byte, expect uint64) (uint64, error)
	List(ctx context.Context, prefix string) ([]KeyEntry, error)
}

// Memory is a thread-safe in-process KV, used in tests and single-node dev.
type Memory struct {
	mu   sync.Mutex
	data map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]Entry)}
}

func (m *Memory) Get(ctx context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	cp := e
	cp.Value = append([]byte(nil), e.Value...)
	return cp, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte, expect uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	if !ok {
		if expect != 0 {
			return 0, ErrVersionMismatch
		}
		m.data[key] = Entry{Value: append([]byte(nil), value...), Version: 1}
		return 1, nil
	}
	if cur.Version != expect {
		return 0, ErrVersionMismatch
	}
	next := cur.Version + 1
	m.data[key] = Entry{Value: append([]byte(nil), value...), Version: next}
	return next, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]KeyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []KeyEntry
	for k, e := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, KeyEntry{Key: k, Entry: Entry{
				Value:   append([]byte(nil), e.Value...),
				Version: e.Version,
			}})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
