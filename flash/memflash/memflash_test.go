package memflash_test

import (
	"errors"
	"testing"

	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/flash/memflash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceDefaults(t *testing.T) {
	dev := memflash.NewDevice(nil)

	assert.Equal(t, 4096, dev.SectorSize())
	assert.Equal(t, 8, dev.SectorCount())
	assert.Equal(t, 1, dev.Alignment())
	assert.Equal(t, byte(0xff), dev.ErasedByte())

	// A new device reads fully erased.
	buf := make([]byte, 4096)
	_, err := dev.Read(0, buf)
	require.NoError(t, err)
	for _, b := range buf {
		require.Equal(t, byte(0xff), b)
	}
}

func TestWriteRequiresErased(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 2})

	_, err := dev.Write(0, []byte("first"))
	require.NoError(t, err)

	// Programming over live bytes fails and changes nothing.
	_, err = dev.Write(0, []byte("again"))
	assert.ErrorIs(t, err, memflash.ErrNotErased)

	got := make([]byte, 5)
	_, err = dev.Read(0, got)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	// After an erase the region is programmable again.
	require.NoError(t, dev.Erase(0, 1))
	_, err = dev.Write(0, []byte("again"))
	assert.NoError(t, err)
}

func TestWriteAlignment(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 2, Alignment: 4})

	_, err := dev.Write(2, make([]byte, 4))
	assert.ErrorIs(t, err, flash.ErrMisaligned)

	_, err = dev.Write(0, make([]byte, 5))
	assert.ErrorIs(t, err, flash.ErrMisaligned)

	_, err = dev.Write(4, make([]byte, 4))
	assert.NoError(t, err)
}

func TestBounds(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 2})

	_, err := dev.Read(500, make([]byte, 16))
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	_, err = dev.Write(512, []byte("x"))
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	assert.ErrorIs(t, dev.Erase(512, 1), flash.ErrOutOfRange)
	assert.ErrorIs(t, dev.Erase(0, 3), flash.ErrOutOfRange)
	assert.ErrorIs(t, dev.Erase(1, 1), flash.ErrMisaligned)
}

func TestCorrupt(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 2})

	_, err := dev.Write(0, []byte("hello"))
	require.NoError(t, err)

	// Corrupt bypasses programming rules and flips live bytes in place.
	dev.Corrupt(1, []byte{0x00, 0x00})

	got := make([]byte, 5)
	_, err = dev.Read(0, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 0x00, 0x00, 'l', 'o'}, got)
}

func TestFailNextWrite(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 2})
	boom := errors.New("boom")

	dev.FailNextWrite(3, boom)

	n, err := dev.Write(0, []byte("abcdef"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)

	// The interrupted write left a partial record behind.
	got := make([]byte, 6)
	_, err = dev.Read(0, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0xff, 0xff, 0xff}, got)

	// The failure is one-shot.
	_, err = dev.Write(16, []byte("ok"))
	assert.NoError(t, err)
}

func TestEraseCount(t *testing.T) {
	dev := memflash.NewDevice(&memflash.Options{SectorSize: 256, SectorCount: 3})

	require.NoError(t, dev.Erase(0, 2))
	require.NoError(t, dev.Erase(256, 1))

	assert.Equal(t, 1, dev.EraseCount(0))
	assert.Equal(t, 2, dev.EraseCount(1))
	assert.Equal(t, 0, dev.EraseCount(2))
}
