package check_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/check"
)

func TestNewfCapturesLocation(t *testing.T) {
	f := check.Newf("allocation %d leaked", 3)

	if f.Msg != "allocation 3 leaked" {
		t.Errorf("expected message %q, got %q", "allocation 3 leaked", f.Msg)
	}
	if f.File != "check_test.go" {
		t.Errorf("expected file check_test.go, got %q", f.File)
	}
	if f.Line == 0 {
		t.Error("expected a line number, got 0")
	}
	want := fmt.Sprintf("check_test.go:%d: allocation 3 leaked", f.Line)
	if got := f.Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if f.At.IsZero() {
		t.Error("expected a capture timestamp")
	}
}

func TestThatf(t *testing.T) {
	if err := check.Thatf(true, "never reported"); err != nil {
		t.Errorf("expected nil error for passing check, got %v", err)
	}

	err := check.Thatf(false, "count %d out of range", 11)
	if err == nil {
		t.Fatal("expected an error for failing check")
	}
	var f *check.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected a *check.Failure, got %T", err)
	}
	if !strings.Contains(err.Error(), "count 11 out of range") {
		t.Errorf("unexpected failure text %q", err.Error())
	}
	if f.File != "check_test.go" {
		t.Errorf("expected failure located in check_test.go, got %q", f.File)
	}
}

func TestWithContextAndDetailed(t *testing.T) {
	f := check.Newf("leak detected").
		WithContext("arena %q", "ingest").
		WithContext("active allocations: %d", 17)

	d := f.Detailed()
	if !strings.HasPrefix(d, f.Error()) {
		t.Errorf("expected detailed output to start with %q", f.Error())
	}
	if !strings.Contains(d, "at: ") {
		t.Error("expected detailed output to include the timestamp")
	}
	ctx1 := strings.Index(d, `context: arena "ingest"`)
	ctx2 := strings.Index(d, "context: active allocations: 17")
	if ctx1 < 0 || ctx2 < 0 {
		t.Fatalf("expected both context lines in %q", d)
	}
	if ctx1 > ctx2 {
		t.Error("expected context lines in the order they were added")
	}
	if !strings.Contains(d, "stack:") {
		t.Error("expected detailed output to include the stack")
	}
	if !strings.Contains(d, "TestWithContextAndDetailed") {
		t.Error("expected the stack to include the calling test")
	}
}

func TestStackLeadsWithCaller(t *testing.T) {
	f := check.Newf("probe")
	if len(f.Stack) == 0 {
		t.Fatal("expected a captured stack")
	}
	if !strings.Contains(f.Stack[0], "TestStackLeadsWithCaller") {
		t.Errorf("expected first frame to be the caller, got %q", f.Stack[0])
	}
}

func TestUnequalRendersValues(t *testing.T) {
	a := arena.New(arena.Options{})

	f := check.Unequal(a, 42, "answer")
	want := `values differ: got 42, want "answer"`
	if f.Msg != want {
		t.Errorf("expected %q, got %q", want, f.Msg)
	}
	if f.File != "check_test.go" {
		t.Errorf("expected failure located in check_test.go, got %q", f.File)
	}
	if len(f.Context) != 0 {
		t.Errorf("expected no context for mixed types, got %v", f.Context)
	}
}

func TestUnequalStringsCarryEditDistance(t *testing.T) {
	a := arena.New(arena.Options{})

	f := check.Unequal(a, "kitten", "sitting")
	if len(f.Context) != 1 {
		t.Fatalf("expected one context line, got %v", f.Context)
	}
	if f.Context[0] != "edit distance 3" {
		t.Errorf("expected %q, got %q", "edit distance 3", f.Context[0])
	}
	// The distance scratch is freed on return, so the arena only holds
	// the two rendered values.
	if got := a.ActiveAllocs(); got != 2 {
		t.Errorf("expected 2 live allocations after Unequal, got %d", got)
	}
}
