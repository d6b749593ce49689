// Package keydir implements the in-memory key directory of the store: a
// fixed-capacity table locating the newest flash entry for every key ever
// written. Keys are identified by a 32-bit hash alone; resolving hash
// collisions against the key text on flash is the caller's job.
//
// The table is a flat arena sized once at construction. It never grows, so
// memory use is bounded and descriptor pointers stay valid until the next
// Remove.
package keydir

import (
	"errors"
	"fmt"
	"iter"

	"github.com/osamaeid908/pigweed/flash"
	"github.com/spaolacci/murmur3"
)

// ErrFull is returned when the directory has no free slot for a new key.
var ErrFull = errors.New("keydir: directory is full")

// State is the lifecycle of a stored key.
type State uint8

const (
	// Valid marks a key whose newest entry holds a value.
	Valid State = iota

	// Deleted marks a key whose newest entry is a tombstone.
	Deleted
)

// HashFunc maps a key to its stored 32-bit hash.
type HashFunc func(key []byte) uint32

// DefaultHash is the 32-bit murmur3 hash.
func DefaultHash(key []byte) uint32 {
	return murmur3.Sum32(key)
}

// Descriptor locates the newest entry for one key.
type Descriptor struct {
	Hash          uint32
	Address       flash.Address
	TransactionID uint32
	State         State
}

// Directory is a fixed-capacity table of descriptors in insertion order.
type Directory struct {
	descs []Descriptor
	hash  HashFunc
}

// New creates a directory holding at most capacity keys. A nil hash uses
// DefaultHash.
func New(capacity int, hash HashFunc) *Directory {
	if hash == nil {
		hash = DefaultHash
	}
	return &Directory{
		descs: make([]Descriptor, 0, capacity),
		hash:  hash,
	}
}

// Hash maps key through the directory's hash function.
func (d *Directory) Hash(key []byte) uint32 {
	return d.hash(key)
}

// At returns the descriptor in slot i of the insertion order. The pointer
// is valid until the next Remove.
func (d *Directory) At(i int) *Descriptor {
	return &d.descs[i]
}

// Find returns the descriptor stored for hash. The pointer is valid until
// the next Remove.
func (d *Directory) Find(hash uint32) (*Descriptor, bool) {
	for i := range d.descs {
		if d.descs[i].Hash == hash {
			return &d.descs[i], true
		}
	}
	return nil, false
}

// Append adds desc at the end of the directory and returns its slot.
func (d *Directory) Append(desc Descriptor) (*Descriptor, error) {
	if len(d.descs) == cap(d.descs) {
		return nil, fmt.Errorf("keydir: %d of %d slots used: %w", len(d.descs), cap(d.descs), ErrFull)
	}
	d.descs = append(d.descs, desc)
	return &d.descs[len(d.descs)-1], nil
}

// Remove deletes the descriptor for hash, preserving the order of the rest.
func (d *Directory) Remove(hash uint32) bool {
	for i := range d.descs {
		if d.descs[i].Hash == hash {
			d.descs = append(d.descs[:i], d.descs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of descriptors, tombstoned keys included.
func (d *Directory) Len() int { return len(d.descs) }

// Cap returns the capacity fixed at construction.
func (d *Directory) Cap() int { return cap(d.descs) }

// LiveLen returns the number of descriptors in the Valid state.
func (d *Directory) LiveLen() int {
	n := 0
	for i := range d.descs {
		if d.descs[i].State == Valid {
			n++
		}
	}
	return n
}

// All returns descriptors in insertion order. The directory must not be
// mutated during iteration.
func (d *Directory) All() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for i := range d.descs {
			if !yield(d.descs[i]) {
				return
			}
		}
	}
}
