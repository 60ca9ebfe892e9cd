package state

import (
	"fmt"
	"testing"
)

// BenchmarkFileTracker_MarkSeen benchmarks the state tracker write performance
func BenchmarkFileTracker_MarkSeen(b *testing.B) {
	tracker, err := NewFileTracker(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tracker.MarkSeen(fmt.Sprintf("conv-%d", i), fmt.Sprintf("msg-%d", i)); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	if err := tracker.Close(); err != nil {
		b.Fatal(err)
	}
}

// BenchmarkFileTracker_AlreadySeen benchmarks lookup performance
func BenchmarkFileTracker_AlreadySeen(b *testing.B) {
	tracker, err := NewFileTracker(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer tracker.Close()

	for i := 0; i < 1000; i++ {
		if err := tracker.MarkSeen(fmt.Sprintf("conv-%d", i), fmt.Sprintf("msg-%d", i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tracker.AlreadySeen(fmt.Sprintf("conv-%d", i%1000))
	}
}

// BenchmarkFileTracker_Load benchmarks the state file loading performance
func BenchmarkFileTracker_Load(b *testing.B) {
	dir := b.TempDir()

	tracker, err := NewFileTracker(dir)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		if err := tracker.MarkSeen(fmt.Sprintf("conv-%d", i), fmt.Sprintf("msg-%d", i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := tracker.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker, err := NewFileTracker(dir)
		if err != nil {
			b.Fatal(err)
		}
		tracker.Close()
	}
}

// BenchmarkMemoryTracker_MarkSeen benchmarks in-memory tracker for comparison
func BenchmarkMemoryTracker_MarkSeen(b *testing.B) {
	tracker := NewMemoryTracker()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tracker.MarkSeen(fmt.Sprintf("conv-%d", i), fmt.Sprintf("msg-%d", i)); err != nil {
			b.Fatal(err)
		}
	}
}
