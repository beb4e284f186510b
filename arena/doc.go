// Package arena implements a thread-safe bump allocator that tracks every
// live allocation for leak detection.
//
// An [Arena] reserves memory from large backing chunks by advancing an
// offset, so allocation is cheap and fragmentation-free. Unlike a plain
// bump allocator it also records each handed-out pointer in a tracking
// table, which makes it a diagnostic tool: at any point the arena can say
// how many allocations are still live, how big they are and how long ago
// they were made.
//
// # Allocation
//
// Typed allocations use the package-level generic helpers:
//
//	a := arena.New(arena.Options{})
//	p := arena.Alloc[Point](a)        // *Point, zeroed
//	s := arena.AllocSlice[byte](a, n) // []byte of length n
//	arena.Free(a, p)                  // removes p from the tracking table
//
// Raw byte buffers come from [Arena.AllocBytes] and [Arena.FreeBytes].
// Allocation never fails: when the current chunk is exhausted the arena
// chains a new one. Alignment follows the element type's natural
// alignment.
//
// Freeing is bookkeeping only. The bytes are not reused until
// [Arena.Reset]; freeing an unknown, foreign or already-freed pointer is
// a silent no-op.
//
// # Leak detection
//
//	if a.HasLeaks() {
//		for _, l := range a.LeakReport() {
//			fmt.Printf("%d bytes live for %v\n", l.Size, l.Age)
//		}
//	}
//
// [Arena.LeakReport] snapshots the tracking table under a read lock;
// entries freed while the report is being consumed may still appear in it.
//
// # Concurrency
//
// Every arena operation is safe for concurrent use. Mutating operations
// (allocate, free, reset) take an exclusive lock; inspection (counts,
// leak reports, stats) takes a shared lock. [Arena.Reset] invalidates all
// outstanding pointers and is not atomic with respect to concurrent
// allocators; callers coordinate quiescence themselves.
//
// # Per-worker arenas
//
// A [Registry] hands one arena to each worker goroutine and recycles it
// on release, replacing ambient per-thread storage with an explicit
// dependency that can also be inspected across workers:
//
//	reg := arena.NewRegistry(arena.Options{})
//	a := reg.Acquire()
//	defer reg.Release(a) // resets the arena and recycles it
package arena
