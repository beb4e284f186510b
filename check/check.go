// Package check builds located, self-describing failure values for
// diagnostic assertions, and compares floats with layered tolerances.
package check

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/probelab/vigil/arena"
	diag "github.com/probelab/vigil/format"
	"github.com/probelab/vigil/strutil"
)

// Failure describes one failed check: what went wrong, where, when,
// and under which circumstances. It satisfies error.
type Failure struct {
	Msg     string
	File    string
	Line    int
	Context []string
	Stack   []string
	At      time.Time
}

// Newf builds a Failure located at the caller.
func Newf(format string, args ...any) *Failure {
	return newf(2, format, args...)
}

// Thatf returns nil when cond holds, and a Failure located at the
// caller otherwise. The error is nil as an interface value, so it is
// safe to return directly.
func Thatf(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return newf(2, format, args...)
}

// Unequal builds a Failure describing two values that should have been
// equal, rendering both through the diagnostic formatter. The rendered
// strings live in ar. When both values are strings the failure carries
// their edit distance as a context line.
func Unequal(ar *arena.Arena, got, want any) *Failure {
	f := newf(2, "values differ: got %s, want %s",
		diag.Value(ar, got), diag.Value(ar, want))
	if gs, ok := got.(string); ok {
		if ws, ok := want.(string); ok {
			f.WithContext("edit distance %d", strutil.EditDistanceIn(ar, gs, ws))
		}
	}
	return f
}

func newf(skip int, format string, args ...any) *Failure {
	f := &Failure{
		Msg: fmt.Sprintf(format, args...),
		At:  time.Now(),
	}
	if _, file, line, ok := runtime.Caller(skip); ok {
		f.File = filepath.Base(file)
		f.Line = line
	}
	f.Stack = captureStack(skip + 1)
	return f
}

// WithContext appends one formatted context line and returns the
// receiver, so checks can chain circumstances onto a failure.
func (f *Failure) WithContext(format string, args ...any) *Failure {
	f.Context = append(f.Context, fmt.Sprintf(format, args...))
	return f
}

// Error returns the single-line rendering, "file:line: message".
func (f *Failure) Error() string {
	if f.File == "" {
		return f.Msg
	}
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Msg)
}

// Detailed returns the multi-line rendering with timestamp, context
// lines and the captured stack.
func (f *Failure) Detailed() string {
	var sb strings.Builder
	sb.WriteString(f.Error())
	if !f.At.IsZero() {
		sb.WriteString("\n  at: ")
		sb.WriteString(f.At.Format(time.RFC3339Nano))
	}
	for _, c := range f.Context {
		sb.WriteString("\n  context: ")
		sb.WriteString(c)
	}
	if len(f.Stack) > 0 {
		sb.WriteString("\n  stack:")
		for _, fr := range f.Stack {
			sb.WriteString("\n    ")
			sb.WriteString(fr)
		}
	}
	return sb.String()
}

func captureStack(skip int) []string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	var out []string
	for {
		fr, more := frames.Next()
		out = append(out, fmt.Sprintf("%s (%s:%d)", fr.Function, filepath.Base(fr.File), fr.Line))
		if !more {
			break
		}
	}
	return out
}
