package kvs_test

import (
	"fmt"

	"github.com/osamaeid908/pigweed/flash"
	"github.com/osamaeid908/pigweed/flash/memflash"
	"github.com/osamaeid908/pigweed/kvs"
)

func Example() {
	dev := memflash.NewDevice(nil)
	part, err := flash.NewPartition(dev, nil)
	if err != nil {
		panic(err)
	}
	store, err := kvs.New(part, nil)
	if err != nil {
		panic(err)
	}
	if err := store.Init(); err != nil {
		panic(err)
	}

	if err := store.Put("device_name", []byte("outdoor-sensor")); err != nil {
		panic(err)
	}
	name, err := store.GetBytes("device_name")
	if err != nil {
		panic(err)
	}
	fmt.Printf("device: %s\n", name)

	if err := kvs.PutObject(store, "boot_count", uint32(17)); err != nil {
		panic(err)
	}
	count, err := kvs.GetObject[uint32](store, "boot_count")
	if err != nil {
		panic(err)
	}
	fmt.Printf("boots: %d\n", count)

	// Output:
	// device: outdoor-sensor
	// boots: 17
}

func ExampleStore_All() {
	dev := memflash.NewDevice(nil)
	part, err := flash.NewPartition(dev, nil)
	if err != nil {
		panic(err)
	}
	store, err := kvs.New(part, nil)
	if err != nil {
		panic(err)
	}
	if err := store.Init(); err != nil {
		panic(err)
	}

	for _, key := range []string{"alpha", "beta", "gamma"} {
		if err := store.Put(key, []byte(key)); err != nil {
			panic(err)
		}
	}

	for item := range store.All() {
		size, err := item.ValueSize()
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s (%d bytes)\n", item.Key(), size)
	}

	// Output:
	// alpha (5 bytes)
	// beta (4 bytes)
	// gamma (5 bytes)
}
