// Package common measures the time and allocations of pipeline stages for
// the benchmark suite.
package common

import (
	"fmt"
	"runtime"
	"time"
)

// MemoryStats is the part of runtime.MemStats a measurement reports.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Mallocs    uint64 `json:"mallocs"`
	NumGC      uint32 `json:"num_gc"`
}

// GetMemoryStats reads the current runtime statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
		NumGC:      m.NumGC,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Mallocs: %d, GC: %d",
		m.Alloc/1024, m.TotalAlloc/1024, m.Mallocs, m.NumGC)
}

// Measurement is the outcome of running one stage a number of times.
// TotalAlloc and Mallocs are cumulative counters, so their difference is
// what the stage allocated regardless of collections in between.
type Measurement struct {
	Name        string        `json:"name"`
	Iterations  int           `json:"iterations"`
	Duration    time.Duration `json:"duration_ns"`
	BytesPerOp  uint64        `json:"bytes_per_op"`
	AllocsPerOp uint64        `json:"allocs_per_op"`
	Err         string        `json:"error,omitempty"`

	Error error `json:"-"`
}

// PerOp returns the mean duration of one iteration.
func (m Measurement) PerOp() time.Duration {
	if m.Iterations <= 0 {
		return 0
	}
	return m.Duration / time.Duration(m.Iterations)
}

func (m Measurement) String() string {
	if m.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", m.Name, m.Error)
	}
	return fmt.Sprintf("%s: %d iterations, %v/op, %d B/op, %d allocs/op",
		m.Name, m.Iterations, m.PerOp(), m.BytesPerOp, m.AllocsPerOp)
}

// Measure runs fn up to iterations times and stops at the first error.
// Iterations in the result counts the runs that completed.
func Measure(name string, iterations int, fn func() error) Measurement {
	runtime.GC()
	before := GetMemoryStats()
	start := time.Now()

	m := Measurement{Name: name}
	for range iterations {
		if err := fn(); err != nil {
			m.Error = err
			m.Err = err.Error()
			break
		}
		m.Iterations++
	}

	m.Duration = time.Since(start)
	after := GetMemoryStats()
	if m.Iterations > 0 {
		n := uint64(m.Iterations)
		m.BytesPerOp = (after.TotalAlloc - before.TotalAlloc) / n
		m.AllocsPerOp = (after.Mallocs - before.Mallocs) / n
	}
	return m
}
