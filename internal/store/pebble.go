package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Pebble is a durable KV backed by PebbleDB. Versions are kept in an 8-byte
// big-endian prefix of the stored value. A single mutex serializes the
// read-modify-write of Put; that is enough for a single-process deployment,
// multi-process setups should use the Postgres backend instead.
type Pebble struct {
	mu sync.Mutex
	db *pebble.DB
}

func NewPebble(dir string) (*Pebble, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: d}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func encodeVersioned(value []byte, version uint64) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], version)
	copy(buf[8:], value)
	return buf
}

func decodeVersioned(raw []byte) (Entry, error) {
	if len(raw) < 8 {
		return Entry{}, fmt.Errorf("pebble: corrupt record, %d bytes", len(raw))
	}
	return Entry{
		Value:   append([]byte(nil), raw[8:]...),
		Version: binary.BigEndian.Uint64(raw[:8]),
	}, nil
}

func (p *Pebble) get(key string) (Entry, error) {
	raw, closer, err := p.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return decodeVersioned(raw)
}

func (p *Pebble) Get(ctx context.Context, key string) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.get(key)
}

func (p *Pebble) Put(ctx context.Context, key string, value []byte, expect uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, err := p.get(key)
	switch {
	case err == ErrNotFound:
		if expect != 0 {
			return 0, ErrVersionMismatch
		}
	case err != nil:
		return 0, err
	default:
		if cur.Version != expect {
			return 0, ErrVersionMismatch
		}
	}

	next := expect + 1
	if err := p.db.Set([]byte(key), encodeVersioned(value, next), pebble.Sync); err != nil {
		return 0, fmt.Errorf("pebble set: %w", err)
	}
	return next, nil
}

func (p *Pebble) List(ctx context.Context, prefix string) ([]KeyEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lower := []byte(prefix)
	upper := upperBound(prefix)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []KeyEntry
	for it.First(); it.Valid(); it.Next() {
		e, err := decodeVersioned(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, KeyEntry{Key: string(it.Key()), Entry: e})
	}
	return out, it.Error()
}

// upperBound returns the smallest key strictly greater than every key with the
// given prefix, or nil when the prefix is all 0xff.
func upperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}
