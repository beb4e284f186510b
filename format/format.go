// Package format renders arbitrary Go values into human-readable
// diagnostic text, using arena-backed buffers so rendering cost is
// attributable and reclaimable.
//
// Rendering rules, most specific first:
//
//   - strings and named string types are quoted
//   - booleans, integers and unsigned integers print in decimal
//   - floats print with six significant digits, complex as "(re + imi)"
//   - fmt.Stringer and error values print their own rendering, raw
//   - pointers print as "0x..." or "nil"; they are never dereferenced
//   - slices, arrays and maps print element-wise, capped at ten entries
//     with a trailing ", ..." marker; map entries are sorted by key
//   - named integer types without a String method print as "enum(n)"
//   - structs without a String method print as "object<pkg.Type>"
//
// A value whose own String, Error or reflection access panics renders
// as "unprintable" instead of propagating the panic.
package format

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/probelab/vigil/arena"
)

// Rendering limits. Containers are capped so a huge slice in a failure
// message stays readable, and depth is capped so self-referential
// containers terminate.
const (
	maxElems = 10
	maxDepth = 8
)

// Value renders v into a string allocated from a. The result stays
// valid until a is Reset.
func Value(a *arena.Arena, v any) (out string) {
	defer func() {
		if recover() != nil {
			out = "unprintable"
		}
	}()
	b := NewBuilder(a)
	writeValue(b, v, 0)
	return b.String()
}

// Rune renders r for diagnostics: printable ASCII as the character
// itself, everything else as its U+XXXX code point.
func Rune(a *arena.Arena, r rune) string {
	b := NewBuilder(a)
	if r >= 0x20 && r <= 0x7e {
		b.WriteByte(byte(r))
	} else {
		b.Writef("U+%04X", r)
	}
	return b.String()
}

func writeValue(b *Builder, v any, depth int) {
	if v == nil {
		b.WriteString("nil")
		return
	}
	if depth > maxDepth {
		b.WriteString("...")
		return
	}

	switch x := v.(type) {
	case string:
		b.WriteString(strconv.Quote(x))
	case []byte:
		b.WriteString(strconv.Quote(string(x)))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case uintptr:
		b.Writef("0x%x", x)
	case float32:
		b.WriteString(strconv.FormatFloat(float64(x), 'g', 6, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', 6, 64))
	case complex64:
		writeComplex(b, complex128(x))
	case complex128:
		writeComplex(b, x)
	default:
		writeReflected(b, v, depth)
	}
}

func writeComplex(b *Builder, c complex128) {
	b.WriteByte('(')
	b.WriteString(strconv.FormatFloat(real(c), 'g', 6, 64))
	b.WriteString(" + ")
	b.WriteString(strconv.FormatFloat(imag(c), 'g', 6, 64))
	b.WriteString("i)")
}

// writeReflected handles everything the concrete type switch does not:
// named types, pointers, containers and structs.
func writeReflected(b *Builder, v any, depth int) {
	// A type's own rendering wins over structural rendering.
	if s, ok := v.(interface{ String() string }); ok {
		b.WriteString(s.String())
		return
	}
	if e, ok := v.(error); ok {
		b.WriteString(e.Error())
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		b.Writef("0x%x", rv.Pointer())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			b.WriteString("nil")
			return
		}
		writeSequence(b, rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		writeMap(b, rv, depth)
	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Named integers without a String method are most often enum-like
		// constants.
		b.Writef("enum(%d)", rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.Writef("enum(%d)", rv.Uint())
	case reflect.Float32:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', 6, 32))
	case reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', 6, 64))
	default:
		b.WriteString("object<")
		b.WriteString(rv.Type().String())
		b.WriteByte('>')
	}
}

func writeSequence(b *Builder, rv reflect.Value, depth int) {
	b.WriteByte('[')
	n := rv.Len()
	for i := 0; i < n && i < maxElems; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		writeValue(b, rv.Index(i).Interface(), depth+1)
	}
	if n > maxElems {
		b.WriteString(", ...")
	}
	b.WriteByte(']')
}

func writeMap(b *Builder, rv reflect.Value, depth int) {
	type entry struct {
		key string
		val any
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		kb := NewBuilder(b.a)
		writeValue(kb, iter.Key().Interface(), depth+1)
		entries = append(entries, entry{
			key: kb.String(),
			val: iter.Value().Interface(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	b.WriteByte('{')
	for i, e := range entries {
		if i >= maxElems {
			b.WriteString(", ...")
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.key)
		b.WriteString(": ")
		writeValue(b, e.val, depth+1)
	}
	b.WriteByte('}')
}
