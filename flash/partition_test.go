package flash_test

import (
	"testing"

	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/flash/memflash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPartition creates a partition over a fresh in-memory device and returns
// both halves.
func newPartition(t *testing.T, devOpts *memflash.Options, partOpts *flash.Options) (*flash.Partition, *memflash.Device) {
	t.Helper()

	dev := memflash.NewDevice(devOpts)
	p, err := flash.NewPartition(dev, partOpts)
	require.NoError(t, err)

	return p, dev
}

func TestAlign(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		align    int
		wantUp   int
		wantDown int
	}{
		{name: "zero", n: 0, align: 4, wantUp: 0, wantDown: 0},
		{name: "already aligned", n: 16, align: 4, wantUp: 16, wantDown: 16},
		{name: "one below", n: 15, align: 4, wantUp: 16, wantDown: 12},
		{name: "one above", n: 17, align: 4, wantUp: 20, wantDown: 16},
		{name: "alignment one", n: 37, align: 1, wantUp: 37, wantDown: 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantUp, flash.AlignUp(tt.n, tt.align))
			assert.Equal(t, tt.wantDown, flash.AlignDown(tt.n, tt.align))
		})
	}
}

func TestPartitionGeometry(t *testing.T) {
	p, _ := newPartition(t, &memflash.Options{SectorSize: 512, SectorCount: 4}, nil)

	assert.Equal(t, 512, p.SectorSize())
	assert.Equal(t, 4, p.SectorCount())
	assert.Equal(t, 2048, p.Size())
	assert.Equal(t, 1, p.Alignment())
	assert.Equal(t, byte(0xff), p.ErasedByte())
	assert.True(t, p.Writable())
}

func TestPartitionWindow(t *testing.T) {
	p, dev := newPartition(t,
		&memflash.Options{SectorSize: 256, SectorCount: 4},
		&flash.Options{StartSector: 1, SectorCount: 2})

	assert.Equal(t, 512, p.Size())

	// Partition address 0 is device address 256.
	_, err := p.Write(0, []byte("hello"))
	require.NoError(t, err)

	got := make([]byte, 5)
	_, err = dev.Read(256, got)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestPartitionBounds(t *testing.T) {
	p, _ := newPartition(t, &memflash.Options{SectorSize: 256, SectorCount: 2}, nil)

	buf := make([]byte, 16)
	_, err := p.Read(512, buf)
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	_, err = p.Read(500, buf)
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	_, err = p.Write(508, buf)
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	assert.NoError(t, p.CheckBounds(0, 512))
	assert.ErrorIs(t, p.CheckBounds(0, 513), flash.ErrOutOfRange)
}

func TestPartitionAlignment(t *testing.T) {
	p, _ := newPartition(t,
		&memflash.Options{SectorSize: 256, SectorCount: 2},
		&flash.Options{Alignment: 4})

	assert.Equal(t, 4, p.Alignment())

	// Misaligned address and misaligned length both fail.
	_, err := p.Write(2, make([]byte, 4))
	assert.ErrorIs(t, err, flash.ErrMisaligned)
	_, err = p.Write(0, make([]byte, 6))
	assert.ErrorIs(t, err, flash.ErrMisaligned)

	_, err = p.Write(4, make([]byte, 8))
	assert.NoError(t, err)

	// Reads have no alignment constraint.
	_, err = p.Read(3, make([]byte, 5))
	assert.NoError(t, err)
}

func TestPartitionReadOnly(t *testing.T) {
	p, _ := newPartition(t,
		&memflash.Options{SectorSize: 256, SectorCount: 2},
		&flash.Options{ReadOnly: true})

	assert.False(t, p.Writable())

	_, err := p.Write(0, make([]byte, 4))
	assert.ErrorIs(t, err, flash.ErrReadOnly)
	assert.ErrorIs(t, p.Erase(0, 1), flash.ErrReadOnly)
	assert.ErrorIs(t, p.EraseAll(), flash.ErrReadOnly)

	_, err = p.Read(0, make([]byte, 4))
	assert.NoError(t, err)
}

func TestPartitionErase(t *testing.T) {
	p, _ := newPartition(t, &memflash.Options{SectorSize: 256, SectorCount: 4}, nil)

	_, err := p.Write(0, []byte("abcd"))
	require.NoError(t, err)
	_, err = p.Write(256, []byte("efgh"))
	require.NoError(t, err)

	require.NoError(t, p.Erase(0, 1))

	erased, err := p.IsErased(0, 256)
	require.NoError(t, err)
	assert.True(t, erased)

	// The second sector is untouched.
	erased, err = p.IsErased(256, 256)
	require.NoError(t, err)
	assert.False(t, erased)

	assert.ErrorIs(t, p.Erase(100, 1), flash.ErrMisaligned)
	assert.ErrorIs(t, p.Erase(768, 2), flash.ErrOutOfRange)
	assert.ErrorIs(t, p.Erase(0, 0), flash.ErrOutOfRange)
}

func TestPartitionEraseAll(t *testing.T) {
	p, _ := newPartition(t, &memflash.Options{SectorSize: 256, SectorCount: 4}, nil)

	for addr := flash.Address(0); addr < 1024; addr += 256 {
		_, err := p.Write(addr, []byte("data"))
		require.NoError(t, err)
	}

	require.NoError(t, p.EraseAll())

	erased, err := p.IsErased(0, p.Size())
	require.NoError(t, err)
	assert.True(t, erased)
}

func TestPartitionAppearsErased(t *testing.T) {
	p, _ := newPartition(t, nil, nil)

	assert.True(t, p.AppearsErased([]byte{0xff, 0xff, 0xff}))
	assert.False(t, p.AppearsErased([]byte{0xff, 0x00, 0xff}))
	assert.True(t, p.AppearsErased(nil))
}

func TestNewPartitionValidation(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 4})

	// Window past the end of the device.
	_, err := flash.NewPartition(dev, &flash.Options{StartSector: 3, SectorCount: 2})
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	_, err = flash.NewPartition(dev, &flash.Options{StartSector: -1})
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	// Alignment that does not divide the sector size.
	_, err = flash.NewPartition(dev, &flash.Options{Alignment: 3})
	assert.ErrorIs(t, err, flash.ErrMisaligned)
}

func TestPartitionAlignmentInheritsDevice(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 4, Alignment: 8})

	p, err := flash.NewPartition(dev, &flash.Options{Alignment: 2})
	require.NoError(t, err)

	// The device's stricter alignment wins.
	assert.Equal(t, 8, p.Alignment())
}
