package kvs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/entry"
	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/keydir"
	"github.com/osamaeid908/pigweed/sector"
)

// Put stores value under key, replacing any existing value. The old entry
// stays on flash until garbage collection reclaims its sector, so an
// interrupted Put leaves the previous value readable.
func (s *Store) Put(key string, value []byte) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.checkKey(key); err != nil {
		return err
	}
	if len(value) > s.opts.MaxValueLength {
		return fmt.Errorf("kvs: value of %d bytes (limit %d): %w", len(value), s.opts.MaxValueLength, ErrValueTooLarge)
	}
	if size := entry.Size(s.format, len(key), len(value), s.alignment); size > s.partition.SectorSize() {
		return fmt.Errorf("kvs: entry of %d bytes exceeds the %d byte sector: %w", size, s.partition.SectorSize(), ErrValueTooLarge)
	}

	if err := s.mutate([]byte(key), value, false); err != nil {
		return err
	}
	s.reg.Add(metricWrites, 1)
	s.recordStorageGauges()
	return nil
}

// Delete removes key by appending a tombstone entry. Deleting a key that
// is not stored returns ErrNotFound.
func (s *Store) Delete(key string) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.checkKey(key); err != nil {
		return err
	}

	if err := s.mutate([]byte(key), nil, true); err != nil {
		return err
	}
	s.reg.Add(metricDeletes, 1)
	s.recordStorageGauges()
	return nil
}

// mutate validates the operation against the directory, then appends the
// entry, garbage collecting once if no sector has room.
func (s *Store) mutate(key, value []byte, deleted bool) error {
	hash := s.dir.Hash(key)

	existing, ok := s.dir.Find(hash)
	if ok {
		storedKey, _, err := s.entryMeta(existing.Address)
		if err != nil {
			return err
		}
		if !bytes.Equal(storedKey, key) {
			if deleted {
				return fmt.Errorf("kvs: key %q: %w", key, ErrNotFound)
			}
			return fmt.Errorf("kvs: key %q hashes like stored key %q: %w", key, storedKey, ErrHashCollision)
		}
	}
	if deleted && (!ok || existing.State == keydir.Deleted) {
		return fmt.Errorf("kvs: key %q: %w", key, ErrNotFound)
	}
	if !ok && s.dir.Len() == s.dir.Cap() {
		return fmt.Errorf("kvs: %d keys stored: %w", s.dir.Cap(), ErrCapacity)
	}

	err := s.writeOnce(hash, key, value, deleted)
	for attempts := 0; errors.Is(err, sector.ErrNoSpace); attempts++ {
		size := entry.Size(s.format, len(key), len(value), s.alignment)
		if !s.opts.GCOnWrite {
			return fmt.Errorf("kvs: no sector fits %d bytes: %w", size, ErrFull)
		}
		// Each pass reclaims one sector. It can take several before the
		// entry fits: relocated data fills the partial sectors first,
		// and a lone freed sector stays reserved for the next pass.
		if attempts >= 2*s.partition.SectorCount() {
			return fmt.Errorf("kvs: garbage collection made no room for %d bytes: %w", size, ErrFull)
		}
		if gcErr := s.gcOnce(); gcErr != nil {
			if errors.Is(gcErr, sector.ErrNoVictim) {
				return fmt.Errorf("kvs: no sector fits %d bytes: %w", size, ErrFull)
			}
			return gcErr
		}
		err = s.writeOnce(hash, key, value, deleted)
	}
	return err
}

// writeOnce appends one entry and repoints the directory at it. It
// resolves the descriptor fresh on every attempt: a garbage collection
// pass between attempts moves entries and reorders the directory.
func (s *Store) writeOnce(hash uint32, key, value []byte, deleted bool) error {
	existing, ok := s.dir.Find(hash)
	var oldSize int
	if ok {
		_, size, err := s.entryMeta(existing.Address)
		if err != nil {
			return err
		}
		oldSize = size
	}

	e := entry.Entry{
		TransactionID: s.txid + 1,
		Deleted:       deleted,
		Key:           key,
		Value:         value,
	}
	addr, _, err := s.appendEntry(e, -1, false)
	if err != nil {
		return err
	}
	s.txid++

	state := keydir.Valid
	if deleted {
		state = keydir.Deleted
	}
	if ok {
		s.sectors.At(s.sectors.IndexOf(existing.Address)).MarkStale(oldSize)
		existing.Address = addr
		existing.TransactionID = e.TransactionID
		existing.State = state
	} else if _, err := s.dir.Append(keydir.Descriptor{
		Hash:          hash,
		Address:       addr,
		TransactionID: e.TransactionID,
		State:         state,
	}); err != nil {
		return fmt.Errorf("kvs: %d keys stored: %w", s.dir.Cap(), ErrCapacity)
	}
	return nil
}

// appendEntry encodes e into the working buffer and appends the bytes.
func (s *Store) appendEntry(e entry.Entry, skip int, bypassReserve bool) (flash.Address, int, error) {
	n, err := entry.Encode(s.scratch, s.format, e, s.alignment)
	if err != nil {
		return 0, 0, fmt.Errorf("kvs: encoding entry: %w", err)
	}
	return s.rawAppend(s.scratch[:n], skip, bypassReserve)
}

// rawAppend writes an already encoded entry into a sector with space and
// returns where it landed. Successful bytes count as valid; bytes behind a
// failed or unverifiable write are burned until the sector is erased.
func (s *Store) rawAppend(buf []byte, skip int, bypassReserve bool) (flash.Address, int, error) {
	idx, err := s.sectors.FindSpace(len(buf), skip, bypassReserve)
	if err != nil {
		return 0, 0, err
	}
	desc := s.sectors.At(idx)
	addr := s.sectors.BaseAddress(idx) + flash.Address(s.partition.SectorSize()-desc.WritableBytes())

	if _, err := s.partition.Write(addr, buf); err != nil {
		desc.MarkBurned(len(buf))
		return 0, 0, fmt.Errorf("kvs: writing %d bytes at address %d: %w", len(buf), addr, err)
	}
	if s.opts.VerifyOnWrite {
		if err := s.verifyWrite(addr, buf); err != nil {
			desc.MarkBurned(len(buf))
			return 0, 0, err
		}
	}
	desc.MarkWritten(len(buf))
	return addr, len(buf), nil
}

// verifyWrite reads the just-written region back and compares it byte for
// byte.
func (s *Store) verifyWrite(addr flash.Address, want []byte) error {
	var chunk [256]byte
	for off := 0; off < len(want); {
		n := min(len(chunk), len(want)-off)
		at := addr + flash.Address(off)
		if _, err := s.partition.Read(at, chunk[:n]); err != nil {
			return fmt.Errorf("kvs: reading back %d bytes at address %d: %w", n, at, err)
		}
		if !bytes.Equal(chunk[:n], want[off:off+n]) {
			return fmt.Errorf("kvs: readback mismatch at address %d: %w", at, ErrDataLoss)
		}
		off += n
	}
	return nil
}
