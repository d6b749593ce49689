// Package pigweed provides a durable key-value store for small persistent
// state: device settings, counters, calibration blobs. Values live in a
// flash-style image, every update is atomic across power loss, and wear
// spreads over the image's erase sectors.
//
// Open backs the store with an image file; OpenInMemory is for tests and
// ephemeral state. The underlying engine and its building blocks are in
// the kvs, flash, entry, keydir and sector packages.
package pigweed

import (
	"errors"
	"iter"

	"github.com/osamaeid908/pigweed/cache"
	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/flash/fileflash"
	"github.com/osamaeid908/pigweed/flash/memflash"
	"github.com/osamaeid908/pigweed/kvs"
)

// DB is a key-value store open over a flash image.
type DB struct {
	store  *kvs.Store
	file   *fileflash.Device
	values *cache.Values
}

// Open opens the store backed by the flash image at path, creating the
// image fully erased if it does not exist.
//
// When the image holds corrupt data, Open returns the store together
// with an error wrapping kvs.ErrDataLoss: everything that survived is
// readable and the store accepts writes. Callers decide whether to carry
// on or to fail.
func Open(path string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev, err := fileflash.Open(path, &fileflash.Options{
		SectorSize:  o.sectorSize,
		SectorCount: o.sectorCount,
		Alignment:   o.alignment,
		ErasedByte:  o.erasedByte,
	})
	if err != nil {
		return nil, err
	}

	db, err := newDB(dev, &o)
	if db == nil {
		dev.Close()
		return nil, err
	}
	db.file = dev
	return db, err
}

// OpenInMemory opens a store on a fresh in-memory device with the same
// geometry rules as Open.
func OpenInMemory(opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev := memflash.NewDevice(&memflash.Options{
		SectorSize:  o.sectorSize,
		SectorCount: o.sectorCount,
		Alignment:   o.alignment,
		ErasedByte:  o.erasedByte,
	})
	return newDB(dev, &o)
}

func newDB(mem flash.Memory, o *options) (*DB, error) {
	part, err := flash.NewPartition(mem, nil)
	if err != nil {
		return nil, err
	}
	store, err := kvs.New(part, &o.store)
	if err != nil {
		return nil, err
	}

	db := &DB{store: store}
	if o.cacheSize > 0 {
		db.values, err = cache.New(o.cacheSize)
		if err != nil {
			return nil, err
		}
	}

	if err := store.Init(); err != nil {
		if errors.Is(err, kvs.ErrDataLoss) {
			return db, err
		}
		return nil, err
	}
	return db, nil
}

// Put stores value under key, replacing any existing value.
func (db *DB) Put(key string, value []byte) error {
	if err := db.store.Put(key, value); err != nil {
		return err
	}
	if db.values != nil {
		db.values.Invalidate(key)
	}
	return nil
}

// Get reads the value under key into out and returns the bytes copied.
func (db *DB) Get(key string, out []byte) (int, error) {
	return db.store.Get(key, out)
}

// GetBytes returns the whole value under key. With a read cache
// configured, repeated reads of a key skip the device.
func (db *DB) GetBytes(key string) ([]byte, error) {
	if db.values != nil {
		if v, ok := db.values.Get(key); ok {
			return v, nil
		}
	}

	v, err := db.store.GetBytes(key)
	if err != nil {
		return nil, err
	}
	if db.values != nil {
		db.values.Put(key, v)
	}
	return v, nil
}

// Delete removes key.
func (db *DB) Delete(key string) error {
	if err := db.store.Delete(key); err != nil {
		return err
	}
	if db.values != nil {
		db.values.Invalidate(key)
	}
	return nil
}

// Len returns the number of stored keys.
func (db *DB) Len() int { return db.store.Len() }

// All returns an iterator over the stored keys.
func (db *DB) All() iter.Seq[kvs.Item] { return db.store.All() }

// Stats reports how the image's bytes are spent.
func (db *DB) Stats() (kvs.StorageStats, error) { return db.store.Stats() }

// GarbageCollect reclaims the sector holding the most garbage.
func (db *DB) GarbageCollect() error { return db.store.GarbageCollect() }

// Store returns the underlying store for operations the wrapper does not
// expose, such as offset reads and typed accessors. Values read through
// it bypass the read cache.
func (db *DB) Store() *kvs.Store { return db.store }

// Sync flushes the backing image to stable storage. In-memory stores
// have nothing to flush.
func (db *DB) Sync() error {
	if db.file == nil {
		return nil
	}
	return db.file.Sync()
}

// Close syncs and closes the backing image. The store must not be used
// afterwards.
func (db *DB) Close() error {
	if db.values != nil {
		db.values.Purge()
	}
	if db.file == nil {
		return nil
	}
	return db.file.Close()
}
