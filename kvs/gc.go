package kvs

import (
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/entry"
	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/keydir"
	"github.com/osamaeid908/pigweed/monitoring"
	"github.com/osamaeid908/pigweed/sector"
)

// GarbageCollect reclaims the sector holding the most garbage: live
// entries move to other sectors, tombstones with nothing left to shadow
// are dropped, and the sector is erased. It returns an error wrapping
// sector.ErrNoVictim when no sector holds reclaimable bytes.
func (s *Store) GarbageCollect() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.gcOnce(); err != nil {
		return err
	}
	s.recordStorageGauges()
	return nil
}

func (s *Store) gcOnce() error {
	victim, err := s.sectors.FindToGC(-1)
	if err != nil {
		return fmt.Errorf("kvs: nothing to reclaim: %w", err)
	}

	base := s.sectors.BaseAddress(victim)
	limit := base + flash.Address(s.partition.SectorSize())

	var relocated, dropped int
	for i := 0; i < s.dir.Len(); {
		desc := s.dir.At(i)
		if desc.Address < base || desc.Address >= limit {
			i++
			continue
		}

		if desc.State == keydir.Deleted {
			needed, err := s.tombstoneNeeded(desc.Hash, victim)
			if err != nil {
				return err
			}
			if !needed {
				// Nothing left to shadow; the tombstone vanishes with
				// its sector. Remove shifts the next descriptor into
				// slot i.
				s.dir.Remove(desc.Hash)
				dropped++
				continue
			}
		}

		if err := s.relocate(desc, victim); err != nil {
			return err
		}
		relocated++
		i++
	}

	if err := s.partition.Erase(base, 1); err != nil {
		return fmt.Errorf("kvs: erasing sector %d: %w", victim, err)
	}
	s.sectors.At(victim).Reset(s.partition.SectorSize())

	s.reg.Add(metricGCRuns, 1)
	s.reg.Add(metricSectorsErased, 1)
	s.log.Log(monitoring.Info, "gc", "sector reclaimed", map[string]any{
		"sector": victim, "relocated": relocated, "dropped_tombstones": dropped,
	})
	return nil
}

// relocate copies the entry behind desc into another sector and repoints
// the descriptor. The bytes move verbatim, transaction id and checksum
// included, so an interrupted relocation leaves two identical copies for
// the next scan to deduplicate.
func (s *Store) relocate(desc *keydir.Descriptor, victim int) error {
	_, size, err := s.readEntryAt(desc.Address, true)
	if err != nil {
		return err
	}
	addr, _, err := s.rawAppend(s.scratch[:size], victim, true)
	if err != nil {
		if errors.Is(err, sector.ErrNoSpace) {
			return fmt.Errorf("kvs: no room to relocate %d bytes: %w", size, ErrFull)
		}
		return err
	}
	s.sectors.At(victim).MarkStale(size)
	desc.Address = addr
	s.reg.Add(metricBytesRelocated, float64(size))
	return nil
}

// tombstoneNeeded reports whether any sector other than victim still
// holds an entry for hash. If one does, the tombstone must survive to
// shadow it on the next scan.
func (s *Store) tombstoneNeeded(hash uint32, victim int) (bool, error) {
	sectorSize := s.partition.SectorSize()
	for si := 0; si < s.partition.SectorCount(); si++ {
		if si == victim {
			continue
		}
		end := sectorSize - s.sectors.At(si).WritableBytes()
		base := s.sectors.BaseAddress(si)

		for off := 0; off+entry.HeaderSize <= end; {
			key, size, err := s.entryMeta(base + flash.Address(off))
			if err != nil {
				// Unreadable bytes could hide a copy of the key; keep
				// the tombstone.
				return true, nil
			}
			if s.dir.Hash(key) == hash {
				return true, nil
			}
			off += size
		}
	}
	return false, nil
}
