package pigweed

import (
	"github.com/osamaeid908/pigweed/checksum"
	"github.com/osamaeid908/pigweed/kvs"
	"github.com/osamaeid908/pigweed/metrics"
	"github.com/osamaeid908/pigweed/monitoring"
)

// options defines all configuration options for an opened store.
type options struct {
	// Device geometry
	sectorSize  int  // Erase unit size in bytes
	sectorCount int  // Number of erase sectors
	alignment   int  // Smallest programmable write unit
	erasedByte  byte // Value bytes hold after an erase

	// Store behavior
	store     kvs.Options
	cacheSize int // Values held in the read cache; zero disables it
}

// Option is a function that configures an opened store.
type Option func(*options)

// WithSectorSize sets the erase sector size of the backing device.
func WithSectorSize(n int) Option {
	return func(o *options) {
		o.sectorSize = n
	}
}

// WithSectorCount sets the number of sectors of the backing device.
func WithSectorCount(n int) Option {
	return func(o *options) {
		o.sectorCount = n
	}
}

// WithAlignment sets the smallest programmable write unit.
func WithAlignment(n int) Option {
	return func(o *options) {
		o.alignment = n
	}
}

// WithErasedByte sets the value erased bytes hold, 0xff by default.
func WithErasedByte(b byte) Option {
	return func(o *options) {
		o.erasedByte = b
	}
}

// WithMaxKeys sets how many distinct keys the store tracks.
func WithMaxKeys(n int) Option {
	return func(o *options) {
		o.store.MaxKeys = n
	}
}

// WithMagic sets the format magic, letting several stores share a device
// without reading each other's entries.
func WithMagic(m uint32) Option {
	return func(o *options) {
		o.store.Magic = m
	}
}

// WithChecksum sets the per-entry checksum algorithm. A nil algorithm
// stores entries without integrity digests.
func WithChecksum(alg checksum.Algorithm) Option {
	return func(o *options) {
		o.store.Checksum = alg
	}
}

// WithReadCache keeps up to size recently read values in memory.
func WithReadCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithVerifyOnRead controls whether values are checksummed on every read.
func WithVerifyOnRead(v bool) Option {
	return func(o *options) {
		o.store.VerifyOnRead = v
	}
}

// WithVerifyOnWrite controls whether appends are read back and compared.
func WithVerifyOnWrite(v bool) Option {
	return func(o *options) {
		o.store.VerifyOnWrite = v
	}
}

// WithGCOnWrite controls whether writes may trigger garbage collection.
// When disabled, writes fail once appends run out of space until
// GarbageCollect is called.
func WithGCOnWrite(v bool) Option {
	return func(o *options) {
		o.store.GCOnWrite = v
	}
}

// WithLogger sets the logger operational events are written to.
func WithLogger(l monitoring.Logger) Option {
	return func(o *options) {
		o.store.Logger = l
	}
}

// WithMetrics sets the registry the store records metrics into.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) {
		o.store.Metrics = r
	}
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		sectorSize:  4096,
		sectorCount: 16,
		alignment:   1,
		erasedByte:  0xff,
		store:       kvs.DefaultOptions(),
		cacheSize:   0,
	}
}
