package entry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/osamaeid908/pigweed/checksum"
	"github.com/osamaeid908/pigweed/flash"
)

// Common errors returned while encoding and decoding entries.
var (
	ErrIncomplete  = errors.New("entry: truncated entry")
	ErrCorrupt     = errors.New("entry: corrupted entry")
	ErrKeyLength   = errors.New("entry: key length out of range")
	ErrValueLength = errors.New("entry: value too long")
	ErrShortBuffer = errors.New("entry: buffer too small for entry")
)

// Layout constants. All multi-byte fields are little-endian.
const (
	magicOffset    = 0
	txidOffset     = 4
	flagsOffset    = 8
	keyLenOffset   = 9
	valueLenOffset = 10

	// HeaderSize is the fixed prefix length of every entry.
	HeaderSize = 12

	// MaxKeyLength is the largest encodable key.
	MaxKeyLength = 255

	// MaxValueLength is the largest encodable value.
	MaxValueLength = 65535

	flagDeleted = 1 << 0
)

// DefaultMagic identifies entries written by this module's default format.
const DefaultMagic = uint32(0x504b5631) // "PKV1" in hex

// Format identifies how entries are laid out and validated. Stores reject
// entries whose magic does not match their configured format.
type Format struct {
	// Magic is the format identity written at the start of every entry.
	Magic uint32

	// Checksum computes the digest stored after the value, covering the
	// header, key and value bytes. Nil means entries carry no digest.
	Checksum checksum.Algorithm
}

// DigestSize returns the width of the stored digest in bytes.
func (f Format) DigestSize() int {
	if f.Checksum == nil {
		return 0
	}
	return f.Checksum.Size()
}

// Entry is the decoded form of one record. A tombstone is an entry with
// Deleted set and an empty value.
type Entry struct {
	TransactionID uint32
	Deleted       bool
	Key           []byte
	Value         []byte
}

// Header is the decoded fixed prefix of an entry.
type Header struct {
	Magic         uint32
	TransactionID uint32
	Deleted       bool
	KeyLength     int
	ValueLength   int
}

// EntrySize returns the padded flash footprint of the full entry this
// header begins.
func (h Header) EntrySize(f Format, alignment int) int {
	return Size(f, h.KeyLength, h.ValueLength, alignment)
}

// Size returns the padded length an entry with the given key and value
// lengths occupies on flash.
func Size(f Format, keyLen, valueLen, alignment int) int {
	return flash.AlignUp(HeaderSize+keyLen+valueLen+f.DigestSize(), alignment)
}

// Encode writes e into buf in format f, padded with zeros to alignment, and
// returns the padded length. buf must hold at least Size(...) bytes.
func Encode(buf []byte, f Format, e Entry, alignment int) (int, error) {
	if len(e.Key) == 0 || len(e.Key) > MaxKeyLength {
		return 0, fmt.Errorf("entry: key of %d bytes: %w", len(e.Key), ErrKeyLength)
	}
	if len(e.Value) > MaxValueLength {
		return 0, fmt.Errorf("entry: value of %d bytes: %w", len(e.Value), ErrValueLength)
	}

	total := Size(f, len(e.Key), len(e.Value), alignment)
	if len(buf) < total {
		return 0, fmt.Errorf("entry: %d byte buffer, entry needs %d: %w", len(buf), total, ErrShortBuffer)
	}

	var flags uint8
	if e.Deleted {
		flags |= flagDeleted
	}

	binary.LittleEndian.PutUint32(buf[magicOffset:], f.Magic)
	binary.LittleEndian.PutUint32(buf[txidOffset:], e.TransactionID)
	buf[flagsOffset] = flags
	buf[keyLenOffset] = uint8(len(e.Key))
	binary.LittleEndian.PutUint16(buf[valueLenOffset:], uint16(len(e.Value)))

	n := HeaderSize
	n += copy(buf[n:], e.Key)
	n += copy(buf[n:], e.Value)

	if f.Checksum != nil {
		f.Checksum.Reset()
		f.Checksum.Update(buf[:n])
		n += copy(buf[n:], f.Checksum.Finish())
	}

	for i := n; i < total; i++ {
		buf[i] = 0
	}
	return total, nil
}

// DecodeHeader parses the fixed prefix of an entry. It returns ErrIncomplete
// when buf is shorter than the prefix and ErrCorrupt when the magic or key
// length is invalid.
func DecodeHeader(buf []byte, f Format) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("entry: %d header bytes of %d: %w", len(buf), HeaderSize, ErrIncomplete)
	}

	magic := binary.LittleEndian.Uint32(buf[magicOffset:])
	if magic != f.Magic {
		return Header{}, fmt.Errorf("entry: magic 0x%08x, want 0x%08x: %w", magic, f.Magic, ErrCorrupt)
	}

	h := Header{
		Magic:         magic,
		TransactionID: binary.LittleEndian.Uint32(buf[txidOffset:]),
		Deleted:       buf[flagsOffset]&flagDeleted != 0,
		KeyLength:     int(buf[keyLenOffset]),
		ValueLength:   int(binary.LittleEndian.Uint16(buf[valueLenOffset:])),
	}
	if h.KeyLength == 0 {
		return Header{}, fmt.Errorf("entry: zero key length: %w", ErrCorrupt)
	}
	return h, nil
}

// Decode parses a full entry from buf and returns it with its padded flash
// footprint. Key and Value alias buf; callers copy what they keep. When
// verify is set and the format carries a checksum, the stored digest is
// recomputed and compared, failing with ErrCorrupt on mismatch.
func Decode(buf []byte, f Format, alignment int, verify bool) (Entry, int, error) {
	h, err := DecodeHeader(buf, f)
	if err != nil {
		return Entry{}, 0, err
	}

	end := HeaderSize + h.KeyLength + h.ValueLength + f.DigestSize()
	if len(buf) < end {
		return Entry{}, 0, fmt.Errorf("entry: %d bytes of %d: %w", len(buf), end, ErrIncomplete)
	}

	covered := HeaderSize + h.KeyLength + h.ValueLength
	if verify && f.Checksum != nil {
		f.Checksum.Reset()
		f.Checksum.Update(buf[:covered])
		if err := checksum.Verify(f.Checksum, buf[covered:end]); err != nil {
			return Entry{}, 0, fmt.Errorf("entry: digest over %d bytes: %w", covered, ErrCorrupt)
		}
	}

	return Entry{
		TransactionID: h.TransactionID,
		Deleted:       h.Deleted,
		Key:           buf[HeaderSize : HeaderSize+h.KeyLength],
		Value:         buf[HeaderSize+h.KeyLength : covered],
	}, h.EntrySize(f, alignment), nil
}
