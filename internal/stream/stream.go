// Package stream serves live run statistics over websockets. Every
// connected viewer receives the current snapshot as a JSON text message
// once per interval, plus one immediately on attach.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/probelab/vigil/internal/workload"
)

// writeWait bounds a single snapshot write. A viewer that cannot drain a
// small JSON frame in this window is dropped.
const writeWait = 5 * time.Second

// Source yields the snapshot to broadcast. *workload.Runner satisfies it.
type Source interface {
	Live() workload.Live
}

// Options configures a Broadcaster.
type Options struct {
	Listen   string // host:port to serve on
	Interval time.Duration
	Source   Source
}

// Broadcaster accepts websocket viewers on /live and pushes snapshots.
type Broadcaster struct {
	opt      Options
	upgrader websocket.Upgrader
	srv      *http.Server
	ln       net.Listener
	active   int32
	done     chan struct{}
	finished chan struct{}

	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

// viewer serializes writes to one connection; gorilla conns allow only a
// single concurrent writer.
type viewer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (v *viewer) write(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return v.conn.WriteMessage(websocket.TextMessage, data)
}

// New creates a Broadcaster. Interval defaults to one second.
func New(opt Options) *Broadcaster {
	if opt.Interval <= 0 {
		opt.Interval = time.Second
	}
	return &Broadcaster{
		opt: opt,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		viewers:  make(map[*viewer]struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start binds the listen address and begins serving and broadcasting.
func (b *Broadcaster) Start() error {
	if !atomic.CompareAndSwapInt32(&b.active, 0, 1) {
		return nil // already running
	}

	ln, err := net.Listen("tcp", b.opt.Listen)
	if err != nil {
		atomic.StoreInt32(&b.active, 0)
		return fmt.Errorf("stream: listening on %s: %w", b.opt.Listen, err)
	}
	b.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/live", b.handleLive)
	b.srv = &http.Server{Handler: mux}

	go func() {
		// Serve returns ErrServerClosed on Stop; nothing to do either way.
		_ = b.srv.Serve(ln)
	}()
	go b.broadcast()
	return nil
}

// Addr returns the bound address, useful when Listen used port 0.
func (b *Broadcaster) Addr() string {
	if b.ln == nil {
		return b.opt.Listen
	}
	return b.ln.Addr().String()
}

// Viewers returns the number of attached connections.
func (b *Broadcaster) Viewers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

// Stop halts broadcasting, closes every viewer and shuts the server down.
func (b *Broadcaster) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.active, 1, 0) {
		return nil
	}
	close(b.done)
	<-b.finished

	for _, v := range b.attached() {
		_ = v.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait),
		)
		v.conn.Close()
		b.remove(v)
	}
	return b.srv.Shutdown(ctx)
}

func (b *Broadcaster) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the HTTP error
	}
	v := &viewer{conn: conn}
	b.add(v)
	go b.reader(v)

	// Push the current snapshot so a fresh viewer does not wait a tick.
	if data, err := b.snapshot(); err == nil {
		if err := v.write(data); err != nil {
			b.drop(v)
		}
	}
}

// reader drains incoming frames so close frames are processed and dead
// connections are noticed.
func (b *Broadcaster) reader(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			b.drop(v)
			return
		}
	}
}

func (b *Broadcaster) broadcast() {
	defer close(b.finished)
	ticker := time.NewTicker(b.opt.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			data, err := b.snapshot()
			if err != nil {
				continue
			}
			for _, v := range b.attached() {
				if err := v.write(data); err != nil {
					b.drop(v)
				}
			}
		case <-b.done:
			return
		}
	}
}

func (b *Broadcaster) snapshot() ([]byte, error) {
	return json.Marshal(b.opt.Source.Live())
}

func (b *Broadcaster) attached() []*viewer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*viewer, 0, len(b.viewers))
	for v := range b.viewers {
		out = append(out, v)
	}
	return out
}

func (b *Broadcaster) add(v *viewer) {
	b.mu.Lock()
	b.viewers[v] = struct{}{}
	b.mu.Unlock()
}

func (b *Broadcaster) remove(v *viewer) {
	b.mu.Lock()
	delete(b.viewers, v)
	b.mu.Unlock()
}

func (b *Broadcaster) drop(v *viewer) {
	b.remove(v)
	v.conn.Close()
}
