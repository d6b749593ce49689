// Package sector tracks how every flash sector's bytes split between live
// entries, stale garbage and the erased tail, and chooses sectors for new
// writes and for garbage collection.
//
// Each sector is described by two counters: valid bytes (newest copies of
// keys, tombstones included) and writable bytes (the erased tail appends land
// on). Reclaimable bytes are derived: whatever is neither valid nor writable
// is garbage an erase would recover. The invariant
//
//	valid + reclaimable + writable == sector size
//
// holds for every sector at all times.
//
// Write placement prefers topping up partially written sectors and rotates
// which empty sector is opened next, spreading erase wear across the device.
// One empty sector is always held back so garbage collection has somewhere
// to relocate live entries to.
package sector

import (
	"errors"
	"fmt"
	"iter"

	"github.com/osamaeid908/pigweed/flash"
)

// Common errors returned by sector selection.
var (
	ErrNoSpace  = errors.New("sector: no sector with enough space")
	ErrNoVictim = errors.New("sector: nothing to reclaim")
)

// Descriptor is the accounting state of one sector.
type Descriptor struct {
	validBytes    int
	writableBytes int
}

// ValidBytes returns the bytes held by newest entry copies.
func (d *Descriptor) ValidBytes() int { return d.validBytes }

// WritableBytes returns the erased tail available for appends.
func (d *Descriptor) WritableBytes() int { return d.writableBytes }

// ReclaimableBytes returns the garbage bytes an erase would recover.
func (d *Descriptor) ReclaimableBytes(sectorSize int) int {
	return sectorSize - d.validBytes - d.writableBytes
}

// Empty reports whether nothing has been written since the last erase.
func (d *Descriptor) Empty(sectorSize int) bool {
	return d.writableBytes == sectorSize
}

// HasSpace reports whether n bytes fit on the erased tail.
func (d *Descriptor) HasSpace(n int) bool {
	return d.writableBytes >= n
}

// MarkWritten records an append of n live bytes.
func (d *Descriptor) MarkWritten(n int) {
	d.writableBytes -= n
	d.validBytes += n
}

// MarkStale records that n previously valid bytes were superseded.
func (d *Descriptor) MarkStale(n int) {
	d.validBytes -= n
}

// MarkBurned records n tail bytes lost to a failed or unverified write.
// They are neither valid nor writable until the sector is erased.
func (d *Descriptor) MarkBurned(n int) {
	d.writableBytes -= n
}

// AddValid credits n bytes of newest entries found during a scan.
func (d *Descriptor) AddValid(n int) {
	d.validBytes += n
}

// SetWritable sets the erased tail found during a scan.
func (d *Descriptor) SetWritable(n int) {
	d.writableBytes = n
}

// Reset returns the sector to the fully erased state.
func (d *Descriptor) Reset(sectorSize int) {
	d.validBytes = 0
	d.writableBytes = sectorSize
}

// Table is the fixed arena of sector descriptors plus the wear cursor.
// Descriptors start with zero counters; an initial scan or Reset establishes
// their real state.
type Table struct {
	sectorSize int
	descs      []Descriptor
	lastNew    int
}

// NewTable creates a table for sectorCount sectors of sectorSize bytes.
func NewTable(sectorCount, sectorSize int) *Table {
	return &Table{
		sectorSize: sectorSize,
		descs:      make([]Descriptor, sectorCount),
	}
}

func (t *Table) SectorCount() int { return len(t.descs) }
func (t *Table) SectorSize() int  { return t.sectorSize }

// At returns the descriptor of sector i.
func (t *Table) At(i int) *Descriptor {
	return &t.descs[i]
}

// BaseAddress returns the partition address sector i starts at.
func (t *Table) BaseAddress(i int) flash.Address {
	return flash.Address(i * t.sectorSize)
}

// IndexOf returns the sector containing addr.
func (t *Table) IndexOf(addr flash.Address) int {
	return int(addr) / t.sectorSize
}

// LastNew returns the sector most recently handed out empty.
func (t *Table) LastNew() int { return t.lastNew }

// SetLastNew moves the wear cursor, typically to the sector holding the
// newest entry found by a scan.
func (t *Table) SetLastNew(i int) { t.lastNew = i }

// EmptyCount returns the number of fully erased sectors.
func (t *Table) EmptyCount() int {
	n := 0
	for i := range t.descs {
		if t.descs[i].Empty(t.sectorSize) {
			n++
		}
	}
	return n
}

// FindSpace returns the sector a size byte append should land in. Partially
// written sectors are preferred in rotation order after the wear cursor; an
// empty sector is opened only when none has space, and the last empty sector
// is held back unless bypassEmptyReserve is set. Opening an empty sector
// advances the wear cursor. A sector index equal to skip is never returned.
func (t *Table) FindSpace(size, skip int, bypassEmptyReserve bool) (int, error) {
	if size <= 0 || size > t.sectorSize {
		return -1, fmt.Errorf("sector: %d bytes cannot fit a %d byte sector: %w", size, t.sectorSize, ErrNoSpace)
	}

	firstEmpty := -1
	canUseEmpty := bypassEmptyReserve

	count := len(t.descs)
	for i := 1; i <= count; i++ {
		idx := (t.lastNew + i) % count
		if idx == skip {
			continue
		}
		d := &t.descs[idx]
		if d.Empty(t.sectorSize) {
			if firstEmpty < 0 {
				firstEmpty = idx
			} else {
				// A second empty sector means opening one still
				// leaves the reserve intact.
				canUseEmpty = true
			}
			continue
		}
		if d.HasSpace(size) {
			return idx, nil
		}
	}

	if firstEmpty >= 0 && canUseEmpty {
		t.lastNew = firstEmpty
		return firstEmpty, nil
	}
	return -1, ErrNoSpace
}

// FindToGC returns the garbage collection victim: among sectors with
// reclaimable bytes, the one with the fewest valid bytes to relocate, ties
// to the lowest index. A sector index equal to skip is never returned.
func (t *Table) FindToGC(skip int) (int, error) {
	best := -1
	for idx := range t.descs {
		if idx == skip {
			continue
		}
		d := &t.descs[idx]
		if d.ReclaimableBytes(t.sectorSize) == 0 {
			continue
		}
		if best < 0 || d.ValidBytes() < t.descs[best].ValidBytes() {
			best = idx
		}
	}
	if best < 0 {
		return -1, ErrNoVictim
	}
	return best, nil
}

// Totals sums the three counters across all sectors.
func (t *Table) Totals() (writable, valid, reclaimable int) {
	for i := range t.descs {
		writable += t.descs[i].WritableBytes()
		valid += t.descs[i].ValidBytes()
		reclaimable += t.descs[i].ReclaimableBytes(t.sectorSize)
	}
	return writable, valid, reclaimable
}

// All returns sector indexes and descriptor snapshots in address order.
func (t *Table) All() iter.Seq2[int, Descriptor] {
	return func(yield func(int, Descriptor) bool) {
		for i := range t.descs {
			if !yield(i, t.descs[i]) {
				return
			}
		}
	}
}
