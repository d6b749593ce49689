// Package fileflash implements a flash device persisted as a single file on
// disk. The file holds the raw flash image; sector erases rewrite the erased
// value over the region. It gives the key-value store durability across
// process restarts without real flash hardware.
package fileflash

import (
	"errors"
	"fmt"
	"os"

	"github.com/osamaeid908/pigweed/flash"
)

// ErrGeometry is returned when an existing image file does not match the
// configured sector size and count.
var ErrGeometry = errors.New("fileflash: file size does not match geometry")

// Options configures a file-backed device.
type Options struct {
	// SectorSize is the erase unit size in bytes. Zero means 4096.
	SectorSize int

	// SectorCount is the number of sectors. Zero means 16.
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
		SectorCount: 16,
		Alignment:   1,
		ErasedByte:  0xff,
	}
}

// Device is a flash device stored in a file.
type Device struct {
	f    *os.File
	opts Options
}

// Open opens the flash image at path, creating it fully erased if it does
// not exist. An existing image must match the configured geometry.
func Open(path string, opts *Options) (*Device, error) {
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

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("fileflash: failed to open file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fileflash: failed to stat file %s: %w", path, err)
	}

	d := &Device{f: f, opts: o}
	size := int64(o.SectorSize) * int64(o.SectorCount)
	switch info.Size() {
	case size:
	case 0:
		if err := d.fillErased(0, int(size)); err != nil {
			f.Close()
			return nil, err
		}
	default:
		f.Close()
		return nil, fmt.Errorf("fileflash: %s holds %d bytes, geometry wants %d: %w",
			path, info.Size(), size, ErrGeometry)
	}
	return d, nil
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
	n, err := d.f.ReadAt(out, int64(addr))
	if err != nil {
		return n, fmt.Errorf("fileflash: failed to read %d bytes at address %d: %w", len(out), addr, err)
	}
	return n, nil
}

// Write programs data at addr. The address and length must be multiples of
// Alignment().
func (d *Device) Write(addr flash.Address, data []byte) (int, error) {
	if int(addr)%d.opts.Alignment != 0 || len(data)%d.opts.Alignment != 0 {
		return 0, fmt.Errorf("fileflash: write of %d bytes at address %d breaks alignment %d: %w",
			len(data), addr, d.opts.Alignment, flash.ErrMisaligned)
	}
	if err := d.checkBounds(addr, len(data)); err != nil {
		return 0, err
	}
	n, err := d.f.WriteAt(data, int64(addr))
	if err != nil {
		return n, fmt.Errorf("fileflash: failed to write %d bytes at address %d: %w", len(data), addr, err)
	}
	return n, nil
}

// Erase rewrites whole sectors with the erased value, starting at addr,
// which must be sector-aligned.
func (d *Device) Erase(addr flash.Address, sectors int) error {
	sectorSize := d.opts.SectorSize
	if int(addr)%sectorSize != 0 {
		return fmt.Errorf("fileflash: erase at address %d is not on a sector boundary: %w", addr, flash.ErrMisaligned)
	}
	if sectors <= 0 || int(addr)/sectorSize+sectors > d.opts.SectorCount {
		return fmt.Errorf("fileflash: erase of %d sectors at address %d exceeds device: %w",
			sectors, addr, flash.ErrOutOfRange)
	}
	return d.fillErased(int64(addr), sectors*sectorSize)
}

// Sync flushes the image to stable storage.
func (d *Device) Sync() error {
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("fileflash: failed to sync: %w", err)
	}
	return nil
}

// Close syncs and closes the image file.
func (d *Device) Close() error {
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return fmt.Errorf("fileflash: failed to sync: %w", err)
	}
	return d.f.Close()
}

func (d *Device) fillErased(off int64, length int) error {
	chunk := make([]byte, min(length, 64*1024))
	for i := range chunk {
		chunk[i] = d.opts.ErasedByte
	}
	for length > 0 {
		n := min(length, len(chunk))
		if _, err := d.f.WriteAt(chunk[:n], off); err != nil {
			return fmt.Errorf("fileflash: failed to erase %d bytes at offset %d: %w", n, off, err)
		}
		off += int64(n)
		length -= n
	}
	return nil
}

func (d *Device) checkBounds(addr flash.Address, length int) error {
	size := d.opts.SectorSize * d.opts.SectorCount
	if length < 0 || int(addr)+length > size {
		return fmt.Errorf("fileflash: %d bytes at address %d exceed device size %d: %w",
			length, addr, size, flash.ErrOutOfRange)
	}
	return nil
}
