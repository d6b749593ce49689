// Package kvs implements a log-structured key-value store on raw flash.
//
// Entries append in order within erase sectors; updating or deleting a
// key writes a new entry instead of touching old bytes, so every mutation
// is atomic across power loss. Init replays what is on flash to rebuild
// the in-memory directory, keeping only the newest entry per key.
// Garbage collection copies live entries out of the most stale sector and
// erases it, rotating appends across sectors to spread wear.
//
// Basic usage:
//
//	dev := memflash.NewDevice(nil)
//	part, err := flash.NewPartition(dev, nil)
//	if err != nil {
//		return err
//	}
//	store, err := kvs.New(part, nil)
//	if err != nil {
//		return err
//	}
//	if err := store.Init(); err != nil {
//		return err
//	}
//
//	if err := store.Put("temperature", []byte{22, 0}); err != nil {
//		return err
//	}
//	buf := make([]byte, 2)
//	n, err := store.Get("temperature", buf)
//
// A Store is not safe for concurrent use; callers that share one across
// goroutines must serialize access.
package kvs
