package kvs

import (
	"iter"

	"github.com/osamaeid908/pigweed/keydir"
	"github.com/osamaeid908/pigweed/monitoring"
)

// Item hands out one stored key during iteration. The value is read on
// demand, so walking a large store costs no value reads.
type Item struct {
	s   *Store
	key string
}

// Key returns the item's key.
func (it Item) Key() string { return it.key }

// Get reads the item's value into out.
func (it Item) Get(out []byte) (int, error) { return it.s.Get(it.key, out) }

// GetAt reads the item's value starting offset bytes in.
func (it Item) GetAt(offset int, out []byte) (int, error) {
	return it.s.GetAt(it.key, offset, out)
}

// Bytes reads the item's whole value into a new slice.
func (it Item) Bytes() ([]byte, error) { return it.s.GetBytes(it.key) }

// ValueSize returns the size in bytes of the item's value.
func (it Item) ValueSize() (int, error) { return it.s.ValueSize(it.key) }

// All returns an iterator over the live keys in first-written order.
// Entries whose key cannot be read back are logged and skipped. Writing
// through the store while iterating is allowed, though a garbage
// collection pass triggered mid-walk may skip or repeat keys.
func (s *Store) All() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		if !s.initialized {
			return
		}
		for i := 0; i < s.dir.Len(); i++ {
			desc := s.dir.At(i)
			if desc.State != keydir.Valid {
				continue
			}
			key, _, err := s.entryMeta(desc.Address)
			if err != nil {
				s.log.Log(monitoring.Warn, "iterate", "skipping unreadable entry", map[string]any{
					"address": desc.Address,
				})
				continue
			}
			if !yield(Item{s: s, key: string(key)}) {
				return
			}
		}
	}
}
