package arena

import "unsafe"

// Alloc reserves a zeroed T in the arena and returns a pointer to it. The
// pointer stays valid until the arena is Reset. Allocation honors T's
// natural alignment and never fails; exhausted chunks grow transparently.
func Alloc[T any](a *Arena) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		// Zero-size types still get a distinct address so that Free
		// bookkeeping stays per-allocation.
		size = 1
	}
	p := a.alloc(size, unsafe.Alignof(zero))
	b := unsafe.Slice((*byte)(p), size)
	clear(b)
	return (*T)(p)
}

// AllocN reserves n contiguous zeroed Ts and returns a pointer to the
// first. Free releases the whole run. Returns nil if n <= 0.
func AllocN[T any](a *Arena, n int) *T {
	s := AllocSlice[T](a, n)
	if s == nil {
		return nil
	}
	return &s[0]
}

// AllocSlice reserves a zeroed []T of length n in the arena. FreeSlice
// releases it. Returns nil if n <= 0.
func AllocSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero) * uintptr(n)
	if size == 0 {
		size = 1
	}
	p := a.alloc(size, unsafe.Alignof(zero))
	b := unsafe.Slice((*byte)(p), size)
	clear(b)
	return unsafe.Slice((*T)(p), n)
}

// Free removes the allocation at p from the arena's tracking table.
// Unknown, foreign and repeated frees are silent no-ops.
func Free[T any](a *Arena, p *T) {
	a.FreePtr(unsafe.Pointer(p))
}

// FreeSlice removes a slice obtained from AllocSlice from the tracking
// table. Unknown, foreign and repeated frees are silent no-ops.
func FreeSlice[T any](a *Arena, s []T) {
	a.FreePtr(unsafe.Pointer(unsafe.SliceData(s)))
}
