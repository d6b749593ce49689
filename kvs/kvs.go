package kvs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/entry"
	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/keydir"
	"github.com/osamaeid908/pigweed/metrics"
	"github.com/osamaeid908/pigweed/monitoring"
	"github.com/osamaeid908/pigweed/sector"
)

// Common errors returned by store operations.
var (
	// ErrNotFound means the key is not stored, or its newest entry is a
	// tombstone.
	ErrNotFound = errors.New("kvs: key not found")

	// ErrDataLoss means bytes on flash failed validation.
	ErrDataLoss = errors.New("kvs: data corrupted on flash")

	// ErrFull means no sector had space, even after garbage collection.
	ErrFull = errors.New("kvs: storage full")

	// ErrCapacity means the fixed key directory has no free slot.
	ErrCapacity = errors.New("kvs: key directory full")

	// ErrHashCollision means a distinct key hashes like a stored one.
	ErrHashCollision = errors.New("kvs: key hash collision")

	// ErrNotInitialized means Init has not succeeded yet.
	ErrNotInitialized = errors.New("kvs: store not initialized")

	// ErrInvalidKey means the key or argument is out of range.
	ErrInvalidKey = errors.New("kvs: invalid key")

	// ErrValueTooLarge means the value exceeds the configured or physical
	// limit.
	ErrValueTooLarge = errors.New("kvs: value too large")

	// ErrBufferTooSmall means the output buffer holds only a prefix of
	// the value. The read is resumable via GetAt.
	ErrBufferTooSmall = errors.New("kvs: output buffer too small")
)

// Metric series the store records.
const (
	metricWrites         = "kvs_writes_total"
	metricDeletes        = "kvs_deletes_total"
	metricReads          = "kvs_reads_total"
	metricGCRuns         = "kvs_gc_runs_total"
	metricBytesRelocated = "kvs_gc_bytes_relocated_total"
	metricSectorsErased  = "kvs_gc_sectors_erased_total"
	metricScanCorrupt    = "kvs_scan_corrupt_sectors_total"
	metricLiveKeys       = "kvs_live_keys"
	metricWritableBytes  = "kvs_writable_bytes"
	metricInUseBytes     = "kvs_in_use_bytes"
	metricReclaimable    = "kvs_reclaimable_bytes"
)

// Store is a flash-backed key-value store. All methods must be called from
// one goroutine; the store does no internal locking.
type Store struct {
	partition *flash.Partition
	opts      Options
	format    entry.Format
	alignment int

	dir     *keydir.Directory
	sectors *sector.Table

	initialized bool
	txid        uint32

	// scratch holds one full entry during reads, appends and relocation;
	// metaBuf holds a header and key during collision checks.
	scratch []byte
	metaBuf []byte

	log monitoring.Logger
	reg *metrics.Registry
}

// New creates a store over p. A nil opts uses DefaultOptions. The store
// serves nothing until Init has scanned the partition.
func New(p *flash.Partition, opts *Options) (*Store, error) {
	if p == nil {
		return nil, errors.New("kvs: partition cannot be nil")
	}

	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Magic == 0 {
		o.Magic = entry.DefaultMagic
	}
	if o.MaxKeys <= 0 {
		o.MaxKeys = 256
	}
	if o.MaxKeyLength <= 0 {
		o.MaxKeyLength = entry.MaxKeyLength
	}
	if o.MaxValueLength <= 0 {
		o.MaxValueLength = entry.MaxValueLength
	}
	if o.MaxKeyLength > entry.MaxKeyLength {
		return nil, fmt.Errorf("kvs: max key length %d exceeds format limit %d", o.MaxKeyLength, entry.MaxKeyLength)
	}
	if o.MaxValueLength > entry.MaxValueLength {
		return nil, fmt.Errorf("kvs: max value length %d exceeds format limit %d", o.MaxValueLength, entry.MaxValueLength)
	}
	if o.Logger == nil {
		o.Logger = monitoring.Nop{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewRegistry()
	}

	if p.SectorCount() < 2 {
		return nil, errors.New("kvs: need at least two sectors")
	}
	format := entry.Format{Magic: o.Magic, Checksum: o.Checksum}
	if largest := entry.Size(format, o.MaxKeyLength, 0, p.Alignment()); largest > p.SectorSize() {
		return nil, fmt.Errorf("kvs: a max-length key entry needs %d bytes, a sector holds %d", largest, p.SectorSize())
	}

	s := &Store{
		partition: p,
		opts:      o,
		format:    format,
		alignment: p.Alignment(),
		scratch:   make([]byte, p.SectorSize()),
		metaBuf:   make([]byte, entry.HeaderSize+entry.MaxKeyLength),
		log:       o.Logger,
		reg:       o.Metrics,
	}
	s.registerMetrics()
	return s, nil
}

// Init rebuilds the in-memory state by scanning every sector. It can be
// called again to re-scan from scratch.
//
// Corruption does not stop the scan: the damaged remainder of a sector is
// counted reclaimable and Init returns ErrDataLoss, but the store
// initializes and serves what survived. Init fails without initializing
// when flash holds more distinct keys than MaxKeys (ErrCapacity), when two
// distinct keys on flash share a hash (ErrHashCollision), or on device
// errors.
func (s *Store) Init() error {
	s.initialized = false
	s.dir = keydir.New(s.opts.MaxKeys, s.opts.KeyHash)
	s.sectors = sector.NewTable(s.partition.SectorCount(), s.partition.SectorSize())
	s.txid = 0

	var (
		corruptSectors int
		newestTx       uint32
		newestAddr     flash.Address
		haveNewest     bool
	)

	sectorSize := s.partition.SectorSize()
	for si := 0; si < s.partition.SectorCount(); si++ {
		desc := s.sectors.At(si)
		base := s.sectors.BaseAddress(si)

		for off := 0; ; {
			rest := sectorSize - off
			addr := base + flash.Address(off)

			if rest < entry.HeaderSize {
				// Slack too small for another entry; it stays writable
				// if still erased, otherwise it waits for an erase.
				if rest > 0 {
					erased, err := s.partition.IsErased(addr, rest)
					if err != nil {
						return fmt.Errorf("kvs: scanning sector %d: %w", si, err)
					}
					if erased {
						desc.SetWritable(rest)
					}
				}
				break
			}

			head := s.scratch[:entry.HeaderSize]
			if _, err := s.partition.Read(addr, head); err != nil {
				return fmt.Errorf("kvs: scanning sector %d at offset %d: %w", si, off, err)
			}

			if s.partition.AppearsErased(head) {
				erased, err := s.partition.IsErased(addr, rest)
				if err != nil {
					return fmt.Errorf("kvs: scanning sector %d: %w", si, err)
				}
				if erased {
					desc.SetWritable(rest)
				} else {
					// An interrupted write: appends must not land on
					// this region again before an erase.
					corruptSectors++
					s.log.Log(monitoring.Warn, "scan", "interrupted write", map[string]any{
						"sector": si, "offset": off,
					})
				}
				break
			}

			h, err := entry.DecodeHeader(head, s.format)
			if err != nil {
				corruptSectors++
				s.log.Log(monitoring.Warn, "scan", "corrupt entry header", map[string]any{
					"sector": si, "offset": off,
				})
				break
			}
			size := h.EntrySize(s.format, s.alignment)
			if size > rest {
				corruptSectors++
				s.log.Log(monitoring.Warn, "scan", "entry overruns sector", map[string]any{
					"sector": si, "offset": off, "size": size,
				})
				break
			}

			buf := s.scratch[:size]
			if _, err := s.partition.Read(addr, buf); err != nil {
				return fmt.Errorf("kvs: scanning sector %d at offset %d: %w", si, off, err)
			}
			e, _, err := entry.Decode(buf, s.format, s.alignment, true)
			if err != nil {
				corruptSectors++
				s.log.Log(monitoring.Warn, "scan", "corrupt entry", map[string]any{
					"sector": si, "offset": off,
				})
				break
			}

			if err := s.adoptEntry(desc, addr, size, e); err != nil {
				return err
			}

			if e.TransactionID > s.txid {
				s.txid = e.TransactionID
			}
			if !haveNewest || e.TransactionID > newestTx ||
				(e.TransactionID == newestTx && addr > newestAddr) {
				newestTx, newestAddr, haveNewest = e.TransactionID, addr, true
			}

			off += size
		}
	}

	if haveNewest {
		s.sectors.SetLastNew(s.sectors.IndexOf(newestAddr))
	}

	s.initialized = true
	s.recordStorageGauges()
	s.log.Log(monitoring.Info, "init", "scan complete", map[string]any{
		"keys": s.dir.Len(), "transactions": s.txid, "corrupt_sectors": corruptSectors,
	})

	if corruptSectors > 0 {
		s.reg.Add(metricScanCorrupt, float64(corruptSectors))
		return fmt.Errorf("kvs: %d sectors hold corrupt data: %w", corruptSectors, ErrDataLoss)
	}
	return nil
}

// Initialized reports whether Init has succeeded.
func (s *Store) Initialized() bool {
	return s.initialized
}

// adoptEntry merges one scanned entry into the directory; the newest copy
// of a key wins, ties go to the higher address.
func (s *Store) adoptEntry(desc *sector.Descriptor, addr flash.Address, size int, e entry.Entry) error {
	state := keydir.Valid
	if e.Deleted {
		state = keydir.Deleted
	}
	hash := s.dir.Hash(e.Key)

	existing, ok := s.dir.Find(hash)
	if !ok {
		if _, err := s.dir.Append(keydir.Descriptor{
			Hash:          hash,
			Address:       addr,
			TransactionID: e.TransactionID,
			State:         state,
		}); err != nil {
			return fmt.Errorf("kvs: flash holds more than %d keys: %w", s.dir.Cap(), ErrCapacity)
		}
		desc.AddValid(size)
		return nil
	}

	storedKey, storedSize, err := s.entryMeta(existing.Address)
	if err != nil {
		return err
	}
	if !bytes.Equal(storedKey, e.Key) {
		return fmt.Errorf("kvs: keys %q and %q share hash %#08x: %w", storedKey, e.Key, hash, ErrHashCollision)
	}

	wins := e.TransactionID > existing.TransactionID ||
		(e.TransactionID == existing.TransactionID && addr > existing.Address)
	if !wins {
		// An older copy; its bytes stay reclaimable.
		return nil
	}

	s.sectors.At(s.sectors.IndexOf(existing.Address)).MarkStale(storedSize)
	existing.Address = addr
	existing.TransactionID = e.TransactionID
	existing.State = state
	desc.AddValid(size)
	return nil
}

// findDescriptor resolves key to its descriptor, verifying the stored key
// text so hash collisions never alias distinct keys.
func (s *Store) findDescriptor(key []byte) (*keydir.Descriptor, error) {
	desc, ok := s.dir.Find(s.dir.Hash(key))
	if !ok {
		return nil, fmt.Errorf("kvs: key %q: %w", key, ErrNotFound)
	}
	stored, _, err := s.entryMeta(desc.Address)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(stored, key) {
		return nil, fmt.Errorf("kvs: key %q hashes like stored key %q: %w", key, stored, ErrHashCollision)
	}
	return desc, nil
}

// entryMeta reads the key text and padded size of the entry at addr. The
// returned key aliases an internal buffer valid until the next call.
func (s *Store) entryMeta(addr flash.Address) ([]byte, int, error) {
	head := s.metaBuf[:entry.HeaderSize]
	if _, err := s.partition.Read(addr, head); err != nil {
		return nil, 0, fmt.Errorf("kvs: reading entry at address %d: %w", addr, err)
	}
	h, err := entry.DecodeHeader(head, s.format)
	if err != nil {
		return nil, 0, fmt.Errorf("kvs: entry at address %d has a corrupt header: %w", addr, ErrDataLoss)
	}

	key := s.metaBuf[entry.HeaderSize : entry.HeaderSize+h.KeyLength]
	if _, err := s.partition.Read(addr+entry.HeaderSize, key); err != nil {
		return nil, 0, fmt.Errorf("kvs: reading key at address %d: %w", addr, err)
	}
	return key, h.EntrySize(s.format, s.alignment), nil
}

// readEntryAt reads the whole entry at addr into the working buffer. Key
// and Value alias that buffer until the next store operation.
func (s *Store) readEntryAt(addr flash.Address, verify bool) (entry.Entry, int, error) {
	head := s.scratch[:entry.HeaderSize]
	if _, err := s.partition.Read(addr, head); err != nil {
		return entry.Entry{}, 0, fmt.Errorf("kvs: reading entry at address %d: %w", addr, err)
	}
	h, err := entry.DecodeHeader(head, s.format)
	if err != nil {
		return entry.Entry{}, 0, fmt.Errorf("kvs: entry at address %d has a corrupt header: %w", addr, ErrDataLoss)
	}

	size := h.EntrySize(s.format, s.alignment)
	sectorSize := s.partition.SectorSize()
	if size > sectorSize || int(addr)%sectorSize+size > sectorSize {
		return entry.Entry{}, 0, fmt.Errorf("kvs: entry at address %d claims %d bytes: %w", addr, size, ErrDataLoss)
	}

	buf := s.scratch[:size]
	if _, err := s.partition.Read(addr, buf); err != nil {
		return entry.Entry{}, 0, fmt.Errorf("kvs: reading entry at address %d: %w", addr, err)
	}
	e, _, err := entry.Decode(buf, s.format, s.alignment, verify)
	if err != nil {
		return entry.Entry{}, 0, fmt.Errorf("kvs: entry at address %d failed validation: %w", addr, ErrDataLoss)
	}
	return e, size, nil
}

func (s *Store) checkKey(key string) error {
	if len(key) == 0 || len(key) > s.opts.MaxKeyLength {
		return fmt.Errorf("kvs: key of %d bytes (limit %d): %w", len(key), s.opts.MaxKeyLength, ErrInvalidKey)
	}
	return nil
}

func (s *Store) registerMetrics() {
	for _, m := range []metrics.Metric{
		{Name: metricWrites, Type: metrics.Counter, Description: "Entries written by Put"},
		{Name: metricDeletes, Type: metrics.Counter, Description: "Tombstones written by Delete"},
		{Name: metricReads, Type: metrics.Counter, Description: "Entries read by Get"},
		{Name: metricGCRuns, Type: metrics.Counter, Description: "Garbage collection passes"},
		{Name: metricBytesRelocated, Type: metrics.Counter, Description: "Live bytes moved by garbage collection"},
		{Name: metricSectorsErased, Type: metrics.Counter, Description: "Sectors erased by garbage collection"},
		{Name: metricScanCorrupt, Type: metrics.Counter, Description: "Corrupt sectors found by Init"},
		{Name: metricLiveKeys, Type: metrics.Gauge, Description: "Keys with a live value"},
		{Name: metricWritableBytes, Type: metrics.Gauge, Description: "Bytes open for appends"},
		{Name: metricInUseBytes, Type: metrics.Gauge, Description: "Bytes held by newest entries"},
		{Name: metricReclaimable, Type: metrics.Gauge, Description: "Garbage bytes an erase would recover"},
	} {
		s.reg.Register(m)
	}
}

func (s *Store) recordStorageGauges() {
	writable, inUse, reclaimable := s.sectors.Totals()
	s.reg.Set(metricWritableBytes, float64(writable))
	s.reg.Set(metricInUseBytes, float64(inUse))
	s.reg.Set(metricReclaimable, float64(reclaimable))
	s.reg.Set(metricLiveKeys, float64(s.dir.LiveLen()))
}
