// Package memflash implements an in-memory flash device for tests and
// simulation. It enforces the programming rules real flash imposes, so code
// that runs against it also runs against hardware: writes must be aligned and
// may only target erased bytes, and only whole sectors can be erased.
//
// Test hooks allow corrupting stored bytes in place, failing writes partway
// through, and inspecting per-sector erase counts.
package memflash

import (
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/flash"
)

// Common errors returned by the in-memory device.
var (
	ErrNotErased = errors.New("memflash: programming bytes that are not erased")
)

// Options configures an in-memory device.
type Options struct {
	// SectorSize is the erase unit size in bytes. Zero means 4096.
	SectorSize int

	// SectorCount is the number of sectors. Zero means 8.
	SectorCount int

	// Alignment is the smallest programmable unit. Zero means 1.
	Alignment int

	// ErasedByte is the value bytes hold after erase. Zero means 0xff.
	ErasedByte byte
}

// DefaultOptions returns the geometry used when no options are given.
func DefaultOptions() Options {
	return Options{
		SectorSize:  4096,
		SectorCount: 8,
		Alignment:   1,
		ErasedByte:  0xff,
	}
}

// Device is an in-memory flash device.
type Device struct {
	opts        Options
	data        []byte
	eraseCounts []int

	failAfter int
	failErr   error
}

// NewDevice creates a fully erased device. A nil opts uses DefaultOptions.
func NewDevice(opts *Options) *Device {
	o := DefaultOptions()
	if opts != nil {
		if opts.SectorSize > 0 {
			o.SectorSize = opts.SectorSize
		}
		if opts.SectorCount > 0 {
			o.SectorCount = opts.SectorCount
		}
		if opts.Alignment > 0 {
			o.Alignment = opts.Alignment
		}
		if opts.ErasedByte != 0 {
			o.ErasedByte = opts.ErasedByte
		}
	}

	d := &Device{
		opts:        o,
		data:        make([]byte, o.SectorSize*o.SectorCount),
		eraseCounts: make([]int, o.SectorCount),
	}
	for i := range d.data {
		d.data[i] = o.ErasedByte
	}
	return d
}

func (d *Device) SectorSize() int  { return d.opts.SectorSize }
func (d *Device) SectorCount() int { return d.opts.SectorCount }
func (d *Device) Alignment() int   { return d.opts.Alignment }
func (d *Device) ErasedByte() byte { return d.opts.ErasedByte }

// Read copies len(out) bytes starting at addr into out.
func (d *Device) Read(addr flash.Address, out []byte) (int, error) {
	if err := d.checkBounds(addr, len(out)); err != nil {
		return 0, err
	}
	return copy(out, d.data[addr:]), nil
}

// Write programs data at addr. Every target byte must currently hold the
// erased value; programming over live data fails with ErrNotErased and
// leaves the device unchanged.
func (d *Device) Write(addr flash.Address, data []byte) (int, error) {
	if int(addr)%d.opts.Alignment != 0 || len(data)%d.opts.Alignment != 0 {
		return 0, fmt.Errorf("memflash: write of %d bytes at address %d breaks alignment %d: %w",
			len(data), addr, d.opts.Alignment, flash.ErrMisaligned)
	}
	if err := d.checkBounds(addr, len(data)); err != nil {
		return 0, err
	}
	for i, b := range d.data[addr : int(addr)+len(data)] {
		if b != d.opts.ErasedByte {
			return 0, fmt.Errorf("memflash: address %d holds 0x%02x: %w", int(addr)+i, b, ErrNotErased)
		}
	}

	if d.failErr != nil {
		n := copy(d.data[addr:], data[:min(d.failAfter, len(data))])
		err := d.failErr
		d.failErr = nil
		d.failAfter = 0
		return n, err
	}

	return copy(d.data[addr:], data), nil
}

// Erase resets whole sectors starting at addr, which must be
// sector-aligned.
func (d *Device) Erase(addr flash.Address, sectors int) error {
	sectorSize := d.opts.SectorSize
	if int(addr)%sectorSize != 0 {
		return fmt.Errorf("memflash: erase at address %d is not on a sector boundary: %w", addr, flash.ErrMisaligned)
	}
	first := int(addr) / sectorSize
	if sectors <= 0 || first+sectors > d.opts.SectorCount {
		return fmt.Errorf("memflash: erase of %d sectors at address %d exceeds device: %w",
			sectors, addr, flash.ErrOutOfRange)
	}
	for i := first * sectorSize; i < (first+sectors)*sectorSize; i++ {
		d.data[i] = d.opts.ErasedByte
	}
	for s := first; s < first+sectors; s++ {
		d.eraseCounts[s]++
	}
	return nil
}

// FailNextWrite arranges for the next Write to program at most n bytes and
// then return err. Later writes behave normally again.
func (d *Device) FailNextWrite(n int, err error) {
	d.failAfter = n
	d.failErr = err
}

// Corrupt overwrites stored bytes directly, bypassing programming rules.
// It simulates bit rot and interrupted writes.
func (d *Device) Corrupt(addr flash.Address, b []byte) {
	copy(d.data[addr:], b)
}

// EraseCount returns how many times the given sector has been erased.
func (d *Device) EraseCount(sector int) int {
	return d.eraseCounts[sector]
}

func (d *Device) checkBounds(addr flash.Address, length int) error {
	if length < 0 || int(addr)+length > len(d.data) {
		return fmt.Errorf("memflash: %d bytes at address %d exceed device size %d: %w",
			length, addr, len(d.data), flash.ErrOutOfRange)
	}
	return nil
}
