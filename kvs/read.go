package kvs

import (
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/entry"
	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/keydir"
)

// Get reads the value stored under key into out and returns the number of
// bytes copied. When out is shorter than the value, out is filled with a
// prefix and Get returns ErrBufferTooSmall; GetAt resumes the read.
func (s *Store) Get(key string, out []byte) (int, error) {
	return s.GetAt(key, 0, out)
}

// GetAt reads the value stored under key starting offset bytes in.
// Reading at or past the end of the value returns 0 bytes and no error.
func (s *Store) GetAt(key string, offset int, out []byte) (int, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if err := s.checkKey(key); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("kvs: negative read offset %d: %w", offset, ErrInvalidKey)
	}

	desc, err := s.liveDescriptor(key)
	if err != nil {
		return 0, err
	}

	e, _, err := s.readEntryAt(desc.Address, s.opts.VerifyOnRead)
	if err != nil {
		return 0, err
	}
	s.reg.Add(metricReads, 1)

	if offset >= len(e.Value) {
		return 0, nil
	}
	n := copy(out, e.Value[offset:])
	if n < len(e.Value)-offset {
		return n, fmt.Errorf("kvs: value is %d bytes: %w", len(e.Value), ErrBufferTooSmall)
	}
	return n, nil
}

// GetBytes reads the whole value stored under key into a new slice.
func (s *Store) GetBytes(key string) ([]byte, error) {
	n, err := s.ValueSize(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := s.Get(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValueSize returns the size in bytes of the value stored under key
// without reading the value itself.
func (s *Store) ValueSize(key string) (int, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if err := s.checkKey(key); err != nil {
		return 0, err
	}

	desc, err := s.liveDescriptor(key)
	if err != nil {
		return 0, err
	}
	return s.valueSizeAt(desc.Address)
}

// liveDescriptor resolves key for a read. Keys that are absent, deleted,
// or shadowed by a colliding stored key all read as not found.
func (s *Store) liveDescriptor(key string) (*keydir.Descriptor, error) {
	desc, err := s.findDescriptor([]byte(key))
	if err != nil {
		if errors.Is(err, ErrHashCollision) {
			return nil, fmt.Errorf("kvs: key %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	if desc.State == keydir.Deleted {
		return nil, fmt.Errorf("kvs: key %q: %w", key, ErrNotFound)
	}
	return desc, nil
}

func (s *Store) valueSizeAt(addr flash.Address) (int, error) {
	head := s.metaBuf[:entry.HeaderSize]
	if _, err := s.partition.Read(addr, head); err != nil {
		return 0, fmt.Errorf("kvs: reading entry at address %d: %w", addr, err)
	}
	h, err := entry.DecodeHeader(head, s.format)
	if err != nil {
		return 0, fmt.Errorf("kvs: entry at address %d has a corrupt header: %w", addr, ErrDataLoss)
	}
	return h.ValueLength, nil
}
