// Package entry implements the binary record format the key-value store
// appends to flash. Each entry is self-describing and self-validating: a
// fixed little-endian header carrying a magic number, transaction id, flags
// and field lengths, followed by the key, the value, a digest over everything
// before it, and zero padding up to the device's write alignment.
//
// Entry layout on flash:
//
//	offset  size  field
//	0       4     magic (format identity)
//	4       4     transaction id
//	8       1     flags (bit 0: tombstone)
//	9       1     key length
//	10      2     value length
//	12      -     key bytes
//	-       -     value bytes
//	-       -     digest (width set by the format's checksum)
//	-       -     zero padding to the write alignment
//
// Basic usage:
//
//	format := entry.Format{Magic: entry.DefaultMagic, Checksum: checksum.NewCRC32()}
//
//	buf := make([]byte, entry.Size(format, 3, 5, 4))
//	n, err := entry.Encode(buf, format, entry.Entry{
//	    TransactionID: 1,
//	    Key:           []byte("key"),
//	    Value:         []byte("value"),
//	}, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	decoded, _, err := entry.Decode(buf[:n], format, 4, true)
package entry
