package kvs

import (
	"github.com/osamaeid908/pigweed/checksum"
	"github.com/osamaeid908/pigweed/entry"
	"github.com/osamaeid908/pigweed/keydir"
	"github.com/osamaeid908/pigweed/metrics"
	"github.com/osamaeid908/pigweed/monitoring"
)

// Options configures a Store. Build custom configurations by modifying
// DefaultOptions rather than the zero value: the zero value disables
// checksums, verification and garbage collection on write.
type Options struct {
	// Magic is the entry format identity written to flash. Zero means
	// entry.DefaultMagic.
	Magic uint32

	// Checksum validates entries on flash. Nil means entries carry no
	// digest.
	Checksum checksum.Algorithm

	// MaxKeys fixes the key directory capacity: the number of distinct
	// keys, live or tombstoned, the store can track. Zero means 256.
	MaxKeys int

	// MaxKeyLength limits key sizes. Zero means entry.MaxKeyLength.
	MaxKeyLength int

	// MaxValueLength limits value sizes. Zero means entry.MaxValueLength.
	// Values are additionally limited by what fits in one sector.
	MaxValueLength int

	// GCOnWrite reclaims one sector and retries when an append finds no
	// space. Without it Put and Delete fail with ErrFull instead.
	GCOnWrite bool

	// VerifyOnRead recomputes entry digests on Get.
	VerifyOnRead bool

	// VerifyOnWrite reads every append back and compares it before the
	// entry becomes visible.
	VerifyOnWrite bool

	// KeyHash maps keys to directory hashes. Nil means keydir.DefaultHash.
	KeyHash keydir.HashFunc

	// Logger receives scan, write and garbage collection events. Nil
	// means no logging.
	Logger monitoring.Logger

	// Metrics receives operation counters and storage gauges. Nil means
	// a private registry, reachable via Store.Metrics.
	Metrics *metrics.Registry
}

// DefaultOptions returns the configuration used when New is given nil:
// CRC-32 checksums, verification on read and write, and garbage collection
// on write.
func DefaultOptions() Options {
	return Options{
		Magic:          entry.DefaultMagic,
		Checksum:       checksum.NewCRC32(),
		MaxKeys:        256,
		MaxKeyLength:   entry.MaxKeyLength,
		MaxValueLength: entry.MaxValueLength,
		GCOnWrite:      true,
		VerifyOnRead:   true,
		VerifyOnWrite:  true,
	}
}
