package kvs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PutObject stores v under key as its little-endian fixed-size encoding.
// T must have a fixed size as defined by encoding/binary: integers,
// floats, arrays, and structs of those.
func PutObject[T any](s *Store, key string, v T) error {
	if binary.Size(v) < 0 {
		return fmt.Errorf("kvs: %T has no fixed encoded size", v)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("kvs: encoding %T: %w", v, err)
	}
	return s.Put(key, buf.Bytes())
}

// GetObject reads the value under key and decodes it as a T. The stored
// value must be exactly the encoded size of T.
func GetObject[T any](s *Store, key string) (T, error) {
	var v T
	want := binary.Size(v)
	if want < 0 {
		return v, fmt.Errorf("kvs: %T has no fixed encoded size", v)
	}

	raw, err := s.GetBytes(key)
	if err != nil {
		return v, err
	}
	if len(raw) != want {
		return v, fmt.Errorf("kvs: value under %q is %d bytes, %T needs %d", key, len(raw), v, want)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("kvs: decoding %T: %w", v, err)
	}
	return v, nil
}
