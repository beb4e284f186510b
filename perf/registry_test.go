package perf_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/probelab/vigil/perf"
)

func TestRegistryCounterIdentity(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{})

	a := reg.Counter("op.parse")
	b := reg.Counter("op.parse")
	if a != b {
		t.Error("expected the same counter for the same name")
	}
	if other := reg.Counter("op.render"); other == a {
		t.Error("expected distinct counters for distinct names")
	}
}

func TestRegistryConcurrentFirstUse(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{})

	var wg sync.WaitGroup
	workers := 20
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			reg.Counter("shared").Observe(time.Millisecond)
		}()
	}
	wg.Wait()

	if got := reg.Counter("shared").Count(); got != int64(workers) {
		t.Errorf("expected count %d, got %d", workers, got)
	}
	if got := len(reg.Names()); got != 1 {
		t.Errorf("expected 1 registered name, got %d", got)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{})
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Counter(name)
	}

	names := reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistrySnapshots(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{})
	reg.Counter("a").Observe(10 * time.Millisecond)
	reg.Counter("b").Observe(20 * time.Millisecond)
	reg.Counter("b").Observe(40 * time.Millisecond)

	snaps := reg.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Name != "a" || snaps[1].Name != "b" {
		t.Errorf("expected snapshots ordered a, b; got %q, %q", snaps[0].Name, snaps[1].Name)
	}
	if snaps[1].Count != 2 {
		t.Errorf("expected b count 2, got %d", snaps[1].Count)
	}
	if snaps[1].Mean != 30*time.Millisecond {
		t.Errorf("expected b mean 30ms, got %s", snaps[1].Mean)
	}
}

func TestRegistryReset(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{})
	for i := 0; i < 5; i++ {
		reg.Counter(fmt.Sprintf("op.%d", i)).Observe(time.Millisecond)
	}

	reg.Reset()

	if got := len(reg.Names()); got != 5 {
		t.Errorf("expected names to survive reset, got %d", got)
	}
	reg.Each(func(name string, c *perf.Counter) {
		if got := c.Count(); got != 0 {
			t.Errorf("counter %q count = %d after reset, want 0", name, got)
		}
	})
}

func TestRegistryOptionsApplyToCounters(t *testing.T) {
	reg := perf.NewRegistry(perf.Options{SampleCap: 3})

	c := reg.Counter("capped")
	for i := 0; i < 10; i++ {
		c.Observe(time.Duration(i+1) * time.Millisecond)
	}
	if got := len(c.Samples()); got != 3 {
		t.Errorf("expected 3 retained samples, got %d", got)
	}
	if got := c.Count(); got != 10 {
		t.Errorf("expected count 10, got %d", got)
	}
}
