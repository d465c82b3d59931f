// Package mempool keeps size-classed scratch buffers so that batch workers
// thinning one mask after another do not allocate them per image.
package mempool

import (
	"sync"
)

var (
	intPools  sync.Map // key: size class (int), value: *sync.Pool
	bytePools sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 1024, with 1024 as minimum.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	buf, ok := poolFor[T](pools, cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:cap(buf)]
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	// A buffer that grew past its class goes to the class of its capacity,
	// rounded down so every buffer in a pool satisfies the class.
	c := cap(buf)
	cls := sizeClass(c)
	if cls > c {
		cls -= 1024
	}
	if cls < 1024 {
		return
	}
	poolFor[T](pools, cls).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are small headers
}

// GetInts returns an empty []int with capacity for at least n elements.
// Return it with PutInts when done.
func GetInts(n int) []int {
	if n < 0 {
		n = 0
	}
	return get[int](&intPools, n)[:0]
}

// PutInts returns a buffer obtained from GetInts, possibly grown by append.
// It is safe to pass a nil slice.
func PutInts(buf []int) {
	put(&intPools, buf)
}

// GetBytes returns a zeroed []uint8 of length n. Return it with PutBytes.
func GetBytes(n int) []uint8 {
	if n < 0 {
		n = 0
	}
	buf := get[uint8](&bytePools, n)[:n]
	clear(buf)
	return buf
}

// PutBytes returns a buffer obtained from GetBytes. It is safe to pass a nil
// slice.
func PutBytes(buf []uint8) {
	put(&bytePools, buf)
}
