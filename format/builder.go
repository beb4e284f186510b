package format

import (
	"fmt"
	"unsafe"

	"github.com/probelab/vigil/arena"
)

// Builder accumulates text in arena-backed buffers, so every transient
// rendering buffer is attributable to one arena and disappears with its
// Reset. The zero Builder is not usable; call NewBuilder.
type Builder struct {
	a   *arena.Arena
	buf []byte // arena-owned backing, written prefix is buf[:n]
	n   int
}

// NewBuilder returns a Builder drawing from a.
func NewBuilder(a *arena.Arena) *Builder {
	return &Builder{a: a}
}

// Write appends p, growing the arena buffer as needed. It never fails;
// the error return satisfies io.Writer.
func (b *Builder) Write(p []byte) (int, error) {
	b.grow(len(p))
	copy(b.buf[b.n:], p)
	b.n += len(p)
	return len(p), nil
}

// WriteString appends s.
func (b *Builder) WriteString(s string) {
	b.grow(len(s))
	copy(b.buf[b.n:], s)
	b.n += len(s)
}

// WriteByte appends c. The error return satisfies io.ByteWriter.
func (b *Builder) WriteByte(c byte) error {
	b.grow(1)
	b.buf[b.n] = c
	b.n++
	return nil
}

// Writef appends fmt-formatted text.
func (b *Builder) Writef(format string, args ...any) {
	fmt.Fprintf(b, format, args...)
}

// Len returns the number of bytes written.
func (b *Builder) Len() int {
	return b.n
}

// String returns the written text without copying it out of the arena.
// The string stays valid until the arena is Reset; the arena never hands
// freed bytes out again before a reset, so even Release does not disturb
// it.
func (b *Builder) String() string {
	if b.n == 0 {
		return ""
	}
	return unsafe.String(&b.buf[0], b.n)
}

// Release returns the backing buffer to the arena's tracking table and
// empties the builder for reuse.
func (b *Builder) Release() {
	if b.buf != nil {
		b.a.FreeBytes(b.buf)
		b.buf = nil
	}
	b.n = 0
}

// grow makes room for need more bytes, moving the written prefix to a
// larger arena buffer when the current one is full.
func (b *Builder) grow(need int) {
	if b.n+need <= len(b.buf) {
		return
	}
	newCap := 2 * len(b.buf)
	if newCap < 64 {
		newCap = 64
	}
	for newCap < b.n+need {
		newCap *= 2
	}
	nb := b.a.AllocBytes(newCap)
	copy(nb, b.buf[:b.n])
	if b.buf != nil {
		b.a.FreeBytes(b.buf)
	}
	b.buf = nb
}
