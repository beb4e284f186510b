package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/internal/workload"
)

type stubSource struct {
	live workload.Live
}

func (s stubSource) Live() workload.Live { return s.live }

func testLive() workload.Live {
	return workload.Live{
		ElapsedMs: 1000,
		Total:     42,
		Errors:    2,
		OpsPerSec: 42.0,
		Memory: arena.RegistryStats{
			InUse: 2,
			Arena: arena.Stats{ActiveAllocs: 10, ActiveBytes: 640, Chunks: 3},
		},
	}
}

func startBroadcaster(t *testing.T, interval time.Duration) *Broadcaster {
	t.Helper()
	b := New(Options{
		Listen:   "127.0.0.1:0",
		Interval: interval,
		Source:   stubSource{live: testLive()},
	})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.Stop(ctx)
	})
	return b
}

func dial(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/live", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func TestBroadcasterPushesSnapshots(t *testing.T) {
	b := startBroadcaster(t, 20*time.Millisecond)
	conn := dial(t, b)
	defer conn.Close()

	// Initial push plus at least one tick.
	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage #%d failed: %v", i, err)
		}
		if msgType != websocket.TextMessage {
			t.Errorf("Message type = %d, want text", msgType)
		}

		var live workload.Live
		if err := json.Unmarshal(data, &live); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if live.Total != 42 {
			t.Errorf("Total = %d, want 42", live.Total)
		}
		if live.Memory.Arena.ActiveBytes != 640 {
			t.Errorf("ActiveBytes = %d, want 640", live.Memory.Arena.ActiveBytes)
		}
	}
}

func TestBroadcasterInitialSnapshotImmediate(t *testing.T) {
	// Interval far beyond the read deadline; only the attach push can
	// satisfy the read.
	b := startBroadcaster(t, 10*time.Second)
	conn := dial(t, b)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected an immediate snapshot on attach: %v", err)
	}
	var live workload.Live
	if err := json.Unmarshal(data, &live); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if live.OpsPerSec != 42.0 {
		t.Errorf("OpsPerSec = %f, want 42.0", live.OpsPerSec)
	}
}

func TestBroadcasterTracksViewers(t *testing.T) {
	b := startBroadcaster(t, 20*time.Millisecond)

	conn := dial(t, b)
	deadline := time.Now().Add(2 * time.Second)
	for b.Viewers() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := b.Viewers(); got != 1 {
		t.Fatalf("Viewers = %d after attach, want 1", got)
	}

	conn.Close()
	for b.Viewers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := b.Viewers(); got != 0 {
		t.Errorf("Viewers = %d after close, want 0", got)
	}
}

func TestBroadcasterStopClosesViewers(t *testing.T) {
	b := New(Options{
		Listen:   "127.0.0.1:0",
		Interval: 20 * time.Millisecond,
		Source:   stubSource{live: testLive()},
	})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	conn := dial(t, b)
	defer conn.Close()

	// Drain the attach push first.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Initial read failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// The server closed the socket; reads must fail once buffered
	// frames run out.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var err error
	for i := 0; i < 10; i++ {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	if err == nil {
		t.Error("Expected reads to fail after Stop")
	}

	// Stop again is a no-op.
	if err := b.Stop(ctx); err != nil {
		t.Errorf("Second Stop() error = %v", err)
	}
}

func TestBroadcasterRejectsPlainHTTP(t *testing.T) {
	b := startBroadcaster(t, time.Second)

	resp, err := http.Get("http://" + b.Addr() + "/live")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d for plain GET, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
