// Package flash provides the device abstraction the key-value store is built
// on: free-form reads, aligned program operations, and sector-granular erase.
//
// A Memory describes a whole device. A Partition is a run of whole sectors
// over a Memory that adds bounds checking, an optional stricter write
// alignment, and a write permission gate. Layers above operate exclusively on
// a Partition and address it from zero.
package flash

import "errors"

// Common errors returned by flash operations.
var (
	ErrOutOfRange = errors.New("flash: address out of range")
	ErrMisaligned = errors.New("flash: unaligned address or length")
	ErrReadOnly   = errors.New("flash: partition is read-only")
	ErrTimeout    = errors.New("flash: operation timed out")
)

// Address is a byte offset within a device or partition.
type Address uint32

// Memory is a flash-like device: bytes are read freely, programmed in aligned
// chunks, and reset to the erased value only in whole sectors.
type Memory interface {
	// SectorSize returns the erase unit size in bytes.
	SectorSize() int

	// SectorCount returns the number of sectors in the device.
	SectorCount() int

	// Alignment returns the smallest programmable unit in bytes. Write
	// addresses and lengths must be multiples of it.
	Alignment() int

	// ErasedByte returns the value every byte holds after an erase,
	// typically 0xff.
	ErasedByte() byte

	// Read copies len(out) bytes starting at addr into out.
	Read(addr Address, out []byte) (int, error)

	// Write programs data at addr. The address and length must be
	// multiples of Alignment().
	Write(addr Address, data []byte) (int, error)

	// Erase resets whole sectors to the erased value, starting at addr,
	// which must be sector-aligned.
	Erase(addr Address, sectors int) error
}

// AlignDown rounds n down to a multiple of align.
func AlignDown(n, align int) int {
	return (n / align) * align
}

// AlignUp rounds n up to a multiple of align.
func AlignUp(n, align int) int {
	return AlignDown(n+align-1, align)
}
