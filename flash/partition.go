package flash

import "fmt"

// Options configures a Partition. The zero value spans the whole device with
// the device's own alignment, read-write.
type Options struct {
	// StartSector is the index of the first device sector in the partition.
	StartSector int

	// SectorCount is the number of sectors in the partition. Zero means all
	// sectors from StartSector to the end of the device.
	SectorCount int

	// Alignment overrides the write alignment. The effective alignment is
	// the larger of this and the device's, and must divide the sector size.
	// Zero means the device's alignment.
	Alignment int

	// ReadOnly rejects Write and Erase when set.
	ReadOnly bool
}

// Partition is a window of whole sectors on a Memory, addressed from zero.
// Bounds, alignment and permission checks all happen here so that device
// implementations stay simple.
type Partition struct {
	mem         Memory
	startSector int
	sectorCount int
	alignment   int
	readOnly    bool
}

// NewPartition creates a partition over mem. A nil opts spans the whole
// device read-write.
func NewPartition(mem Memory, opts *Options) (*Partition, error) {
	if opts == nil {
		opts = &Options{}
	}

	start := opts.StartSector
	count := opts.SectorCount
	if count == 0 {
		count = mem.SectorCount() - start
	}
	if start < 0 || count <= 0 || start+count > mem.SectorCount() {
		return nil, fmt.Errorf("flash: sectors [%d, %d) outside device with %d sectors: %w",
			start, start+count, mem.SectorCount(), ErrOutOfRange)
	}

	alignment := max(opts.Alignment, mem.Alignment())
	if alignment <= 0 || mem.SectorSize()%alignment != 0 {
		return nil, fmt.Errorf("flash: alignment %d does not divide sector size %d: %w",
			alignment, mem.SectorSize(), ErrMisaligned)
	}

	return &Partition{
		mem:         mem,
		startSector: start,
		sectorCount: count,
		alignment:   alignment,
		readOnly:    opts.ReadOnly,
	}, nil
}

func (p *Partition) SectorSize() int  { return p.mem.SectorSize() }
func (p *Partition) SectorCount() int { return p.sectorCount }
func (p *Partition) Size() int        { return p.sectorCount * p.mem.SectorSize() }
func (p *Partition) Alignment() int   { return p.alignment }
func (p *Partition) ErasedByte() byte { return p.mem.ErasedByte() }
func (p *Partition) Writable() bool   { return !p.readOnly }

// Read copies len(out) bytes starting at addr into out. Reads have no
// alignment constraint.
func (p *Partition) Read(addr Address, out []byte) (int, error) {
	if err := p.CheckBounds(addr, len(out)); err != nil {
		return 0, err
	}
	return p.mem.Read(p.device(addr), out)
}

// Write programs data at addr. The address and length must be multiples of
// Alignment().
func (p *Partition) Write(addr Address, data []byte) (int, error) {
	if p.readOnly {
		return 0, ErrReadOnly
	}
	if int(addr)%p.alignment != 0 || len(data)%p.alignment != 0 {
		return 0, fmt.Errorf("flash: write of %d bytes at address %d breaks alignment %d: %w",
			len(data), addr, p.alignment, ErrMisaligned)
	}
	if err := p.CheckBounds(addr, len(data)); err != nil {
		return 0, err
	}
	return p.mem.Write(p.device(addr), data)
}

// Erase resets whole sectors starting at addr, which must be on a sector
// boundary.
func (p *Partition) Erase(addr Address, sectors int) error {
	if p.readOnly {
		return ErrReadOnly
	}
	sectorSize := p.mem.SectorSize()
	if int(addr)%sectorSize != 0 {
		return fmt.Errorf("flash: erase at address %d is not on a sector boundary: %w", addr, ErrMisaligned)
	}
	if sectors <= 0 || int(addr)/sectorSize+sectors > p.sectorCount {
		return fmt.Errorf("flash: erase of %d sectors at address %d exceeds partition: %w",
			sectors, addr, ErrOutOfRange)
	}
	return p.mem.Erase(p.device(addr), sectors)
}

// EraseAll erases every sector in the partition.
func (p *Partition) EraseAll() error {
	return p.Erase(0, p.sectorCount)
}

// IsErased reports whether every byte in [addr, addr+length) holds the
// erased value.
func (p *Partition) IsErased(addr Address, length int) (bool, error) {
	if length <= 0 {
		return true, nil
	}
	buf := make([]byte, min(length, 512))
	for length > 0 {
		n := min(length, len(buf))
		if _, err := p.Read(addr, buf[:n]); err != nil {
			return false, err
		}
		if !p.AppearsErased(buf[:n]) {
			return false, nil
		}
		addr += Address(n)
		length -= n
	}
	return true, nil
}

// AppearsErased reports whether b reads back as erased flash.
func (p *Partition) AppearsErased(b []byte) bool {
	erased := p.mem.ErasedByte()
	for _, x := range b {
		if x != erased {
			return false
		}
	}
	return true
}

// CheckBounds reports whether [addr, addr+length) lies inside the partition.
func (p *Partition) CheckBounds(addr Address, length int) error {
	if length < 0 || int(addr)+length > p.Size() {
		return fmt.Errorf("flash: %d bytes at address %d exceed partition size %d: %w",
			length, addr, p.Size(), ErrOutOfRange)
	}
	return nil
}

// device translates a partition address to a device address.
func (p *Partition) device(addr Address) Address {
	return addr + Address(p.startSector*p.mem.SectorSize())
}
