package arena

import (
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/intuitivelabs/bytespool"
	"github.com/intuitivelabs/timestamp"
)

// DefaultChunkSize is the backing chunk size used when Options.ChunkSize
// is zero (1 MiB).
const DefaultChunkSize = 1 << 20

// Options configures an Arena.
type Options struct {
	// ChunkSize is the size in bytes of each backing chunk. Allocations
	// larger than this get a dedicated chunk. Defaults to
	// DefaultChunkSize.
	ChunkSize int

	// Pool optionally recycles chunk buffers across Reset calls. Buffers
	// that come back from the pool keep their old contents; the arena
	// zeroes each allocation before handing it out.
	Pool *bytespool.Bpool

	// NoPool keeps every chunk a fresh allocation. It stops a Registry
	// from wiring in its shared pool; an explicit Pool takes precedence.
	NoPool bool

	// Metrics optionally publishes allocation activity to a shared
	// counters group. Several arenas may share one Metrics.
	Metrics *Metrics
}

func (o *Options) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
}

// chunk is one backing buffer. Allocations bump off monotonically; the
// buffer is only reclaimed as a whole on Reset.
type chunk struct {
	buf []byte
	off uintptr
}

// record tracks one live allocation.
type record struct {
	size int
	at   timestamp.TS
}

// Arena is a chunked bump allocator with allocation tracking. All methods
// are safe for concurrent use. Use New to create one.
type Arena struct {
	mu   sync.RWMutex
	opts Options

	chunks []chunk

	live        map[unsafe.Pointer]record
	activeBytes int64

	// Lifetime counters are monotonic: Free does not decrement them.
	// Only Reset returns them to zero.
	lifetimeAllocs uint64
	lifetimeBytes  uint64
}

// LeakRecord describes one allocation that is still live.
type LeakRecord struct {
	Addr unsafe.Pointer
	Size int
	At   timestamp.TS
	Age  time.Duration
}

// New creates an Arena. The first chunk is reserved lazily on the first
// allocation.
func New(opts Options) *Arena {
	opts.normalize()
	return &Arena{
		opts: opts,
		live: make(map[unsafe.Pointer]record),
	}
}

// AllocBytes reserves n bytes in the arena and returns them as a zeroed
// slice. The allocation is tracked until FreeBytes or Reset. Returns nil
// if n <= 0.
func (a *Arena) AllocBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	p := a.alloc(uintptr(n), ptrAlign)
	b := unsafe.Slice((*byte)(p), n)
	clear(b)
	return b
}

// FreeBytes removes a buffer returned by AllocBytes from the tracking
// table. Unknown, foreign and repeated frees are silent no-ops.
func (a *Arena) FreeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	a.FreePtr(unsafe.Pointer(&b[0]))
}

// FreePtr removes the allocation starting at p from the tracking table.
// Unknown, foreign and repeated frees are silent no-ops; the backing
// bytes stay reserved until Reset.
func (a *Arena) FreePtr(p unsafe.Pointer) {
	if p == nil {
		return
	}
	a.mu.Lock()
	rec, ok := a.live[p]
	if ok {
		delete(a.live, p)
		a.activeBytes -= int64(rec.size)
		a.opts.Metrics.noteFree(rec.size)
	}
	a.mu.Unlock()
}

// ActiveAllocs returns the number of tracked live allocations.
func (a *Arena) ActiveAllocs() int {
	a.mu.RLock()
	n := len(a.live)
	a.mu.RUnlock()
	return n
}

// ActiveBytes returns the bytes held by tracked live allocations.
func (a *Arena) ActiveBytes() int64 {
	a.mu.RLock()
	n := a.activeBytes
	a.mu.RUnlock()
	return n
}

// HasLeaks reports whether any allocation is still live.
func (a *Arena) HasLeaks() bool {
	return a.ActiveAllocs() > 0
}

// LeakReport returns a snapshot of all live allocations, oldest first.
// The snapshot is taken under a shared lock and can be stale by the time
// it is inspected.
func (a *Arena) LeakReport() []LeakRecord {
	a.mu.RLock()
	if len(a.live) == 0 {
		a.mu.RUnlock()
		return nil
	}
	now := timestamp.Now()
	out := make([]LeakRecord, 0, len(a.live))
	for p, rec := range a.live {
		out = append(out, LeakRecord{
			Addr: p,
			Size: rec.size,
			At:   rec.at,
			Age:  now.Sub(rec.at),
		})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out
}

// Reset releases every chunk, clears the tracking table and zeroes the
// lifetime counters. All pointers previously returned by the arena become
// invalid. Reset is not atomic with respect to concurrent allocators;
// callers must quiesce first if they need a clean cut.
func (a *Arena) Reset() {
	a.mu.Lock()
	freed := len(a.live)
	freedBytes := a.activeBytes
	released := len(a.chunks)
	for i := range a.chunks {
		if a.opts.Pool != nil {
			a.opts.Pool.Put(a.chunks[i].buf)
		}
		a.chunks[i] = chunk{}
	}
	a.chunks = a.chunks[:0]
	clear(a.live)
	a.activeBytes = 0
	a.lifetimeAllocs = 0
	a.lifetimeBytes = 0
	a.opts.Metrics.noteReset(freed, freedBytes, released)
	a.mu.Unlock()
}

// alloc reserves size bytes aligned to align, records the allocation and
// returns its address. Called for size >= 1.
func (a *Arena) alloc(size, align uintptr) unsafe.Pointer {
	a.mu.Lock()
	p, grown := a.reserve(size, align)
	a.live[p] = record{size: int(size), at: timestamp.Now()}
	a.activeBytes += int64(size)
	a.lifetimeAllocs++
	a.lifetimeBytes += uint64(size)
	a.opts.Metrics.noteAlloc(int(size), grown)
	a.mu.Unlock()
	return p
}

// reserve finds room for size bytes aligned to align, growing the arena
// when the current chunk cannot fit the request. It reports how many
// chunks were added. Caller holds a.mu.
func (a *Arena) reserve(size, align uintptr) (unsafe.Pointer, int) {
	grown := 0
	if len(a.chunks) == 0 {
		a.grow(int(size + align))
		grown++
	}
	c := &a.chunks[len(a.chunks)-1]
	off, ok := alignedOffset(c, align)
	if !ok || off+size > uintptr(len(c.buf)) {
		a.grow(int(size + align))
		grown++
		c = &a.chunks[len(a.chunks)-1]
		off, _ = alignedOffset(c, align)
	}
	p := unsafe.Pointer(&c.buf[off])
	c.off = off + size
	return p, grown
}

// alignedOffset returns the next offset in c whose absolute address is
// aligned to align. ok is false when the aligned offset falls past the
// end of the chunk.
func alignedOffset(c *chunk, align uintptr) (uintptr, bool) {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(c.buf)))
	mask := align - 1
	addr := (base + c.off + mask) &^ mask
	off := addr - base
	return off, off <= uintptr(len(c.buf))
}

// grow appends a chunk of at least min bytes, preferring the recycling
// pool when one is configured.
func (a *Arena) grow(min int) {
	size := a.opts.ChunkSize
	if min > size {
		size = min
	}
	var buf []byte
	if a.opts.Pool != nil {
		// The pool may decline sizes outside its configured range.
		if b, _ := a.opts.Pool.Get(size, true); b != nil {
			buf = b
		}
	}
	if buf == nil {
		buf = make([]byte, size)
	}
	a.chunks = append(a.chunks, chunk{buf: buf})
}

// ptrAlign is the alignment used for untyped byte allocations.
const ptrAlign = unsafe.Alignof(uintptr(0))
