package kvs

import (
	"github.com/osamaeid908/pigweed/metrics"
	"github.com/osamaeid908/pigweed/monitoring"
)

// StorageStats reports how the partition's bytes are spent. The three
// counts sum to the partition size.
type StorageStats struct {
	// WritableBytes counts space open for appends without an erase.
	WritableBytes int

	// InUseBytes counts bytes held by the newest entry of each key,
	// tombstones included.
	InUseBytes int

	// ReclaimableBytes counts stale bytes garbage collection could
	// recover.
	ReclaimableBytes int
}

// Stats reports current storage usage.
func (s *Store) Stats() (StorageStats, error) {
	if !s.initialized {
		return StorageStats{}, ErrNotInitialized
	}
	writable, inUse, reclaimable := s.sectors.Totals()
	return StorageStats{
		WritableBytes:    writable,
		InUseBytes:       inUse,
		ReclaimableBytes: reclaimable,
	}, nil
}

// TransactionCount returns the id of the newest entry written, counting
// from one. It survives restarts: Init restores it from the entries on
// flash.
func (s *Store) TransactionCount() uint32 { return s.txid }

// Len returns the number of keys with a live value.
func (s *Store) Len() int {
	if !s.initialized {
		return 0
	}
	return s.dir.LiveLen()
}

// Cap returns the most keys the store can track at once.
func (s *Store) Cap() int { return s.opts.MaxKeys }

// Metrics returns the registry the store records into.
func (s *Store) Metrics() *metrics.Registry { return s.reg }

// LogDebugInfo writes the per-sector accounting through the configured
// logger at debug level.
func (s *Store) LogDebugInfo() {
	if !s.initialized {
		s.log.Log(monitoring.Debug, "debug", "store not initialized", nil)
		return
	}
	sectorSize := s.partition.SectorSize()
	for i, d := range s.sectors.All() {
		s.log.Log(monitoring.Debug, "debug", "sector state", map[string]any{
			"sector":            i,
			"valid_bytes":       d.ValidBytes(),
			"writable_bytes":    d.WritableBytes(),
			"reclaimable_bytes": d.ReclaimableBytes(sectorSize),
		})
	}
}
