// Package checksum defines the pluggable digest used to validate entries on
// flash, and provides the default CRC-32 implementation.
package checksum

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// ErrMismatch is returned when a stored digest does not match the bytes it
// covers.
var ErrMismatch = errors.New("checksum: digest mismatch")

// Algorithm is the running state of a digest computation. An instance is
// reused serially: Reset, any number of Updates over the covered bytes, then
// Finish.
type Algorithm interface {
	// Reset clears the running state.
	Reset()

	// Update folds b into the running state.
	Update(b []byte)

	// Size returns the digest width in bytes.
	Size() int

	// Finish returns the digest of the bytes seen since Reset. The returned
	// slice is only valid until the next Update or Reset.
	Finish() []byte
}

// Verify finishes state and compares the digest against want.
func Verify(state Algorithm, want []byte) error {
	got := state.Finish()
	if !bytes.Equal(got, want) {
		return fmt.Errorf("checksum: got %x, want %x: %w", got, want, ErrMismatch)
	}
	return nil
}

// CRC32 computes an IEEE CRC-32, stored little-endian in four bytes.
type CRC32 struct {
	crc    uint32
	digest [4]byte
}

// NewCRC32 returns a fresh CRC-32 state.
func NewCRC32() *CRC32 { return &CRC32{} }

func (c *CRC32) Reset()          { c.crc = 0 }
func (c *CRC32) Update(b []byte) { c.crc = crc32.Update(c.crc, crc32.IEEETable, b) }
func (c *CRC32) Size() int       { return 4 }

func (c *CRC32) Finish() []byte {
	binary.LittleEndian.PutUint32(c.digest[:], c.crc)
	return c.digest[:]
}
