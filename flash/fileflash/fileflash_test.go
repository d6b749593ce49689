package fileflash_test

import (
	"path/filepath"
	"testing"

	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/flash/fileflash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openDevice opens a file-backed device in a per-test directory and returns
// it with its image path and a cleanup function.
func openDevice(t *testing.T, opts *fileflash.Options) (dev *fileflash.Device, path string, cleanup func()) {
	t.Helper()

	path = filepath.Join(t.TempDir(), "flash.img")
	dev, err := fileflash.Open(path, opts)
	require.NoError(t, err)

	cleanup = func() {
		require.NoError(t, dev.Close())
	}

	return dev, path, cleanup
}

func TestOpenCreatesErasedImage(t *testing.T) {
	dev, _, cleanup := openDevice(t, &fileflash.Options{SectorSize: 256, SectorCount: 4})
	defer cleanup()

	buf := make([]byte, 1024)
	_, err := dev.Read(0, buf)
	require.NoError(t, err)
	for _, b := range buf {
		require.Equal(t, byte(0xff), b)
	}
}

func TestPersistence(t *testing.T) {
	opts := &fileflash.Options{SectorSize: 256, SectorCount: 4}
	dev, path, _ := openDevice(t, opts)

	_, err := dev.Write(64, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	// Reopen the same image and read the data back.
	dev, err = fileflash.Open(path, opts)
	require.NoError(t, err)
	defer dev.Close()

	got := make([]byte, 7)
	_, err = dev.Read(64, got)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

func TestGeometryMismatch(t *testing.T) {
	dev, path, _ := openDevice(t, &fileflash.Options{SectorSize: 256, SectorCount: 4})
	require.NoError(t, dev.Close())

	_, err := fileflash.Open(path, &fileflash.Options{SectorSize: 256, SectorCount: 8})
	assert.ErrorIs(t, err, fileflash.ErrGeometry)
}

func TestErase(t *testing.T) {
	dev, _, cleanup := openDevice(t, &fileflash.Options{SectorSize: 256, SectorCount: 4})
	defer cleanup()

	_, err := dev.Write(0, []byte("gone soon"))
	require.NoError(t, err)
	require.NoError(t, dev.Erase(0, 1))

	got := make([]byte, 9)
	_, err = dev.Read(0, got)
	require.NoError(t, err)
	for _, b := range got {
		assert.Equal(t, byte(0xff), b)
	}

	assert.ErrorIs(t, dev.Erase(10, 1), flash.ErrMisaligned)
	assert.ErrorIs(t, dev.Erase(768, 2), flash.ErrOutOfRange)
}

func TestAlignmentAndBounds(t *testing.T) {
	dev, _, cleanup := openDevice(t, &fileflash.Options{SectorSize: 256, SectorCount: 2, Alignment: 4})
	defer cleanup()

	_, err := dev.Write(2, make([]byte, 4))
	assert.ErrorIs(t, err, flash.ErrMisaligned)

	_, err = dev.Write(512, make([]byte, 4))
	assert.ErrorIs(t, err, flash.ErrOutOfRange)

	_, err = dev.Read(508, make([]byte, 8))
	assert.ErrorIs(t, err, flash.ErrOutOfRange)
}
