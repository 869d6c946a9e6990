package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shapebot/internal/bus"
	"shapebot/internal/domain"

	"go.uber.org/goleak"
)

type recordingHandler struct {
	mu      sync.Mutex
	seen    []string
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	failOn  string
	panicOn string
}

func (h *recordingHandler) Handle(_ context.Context, msg domain.IncomingMessage) error {
	n := h.active.Add(1)
	defer h.active.Add(-1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(h.delay)

	h.mu.Lock()
	h.seen = append(h.seen, msg.ID)
	h.mu.Unlock()

	if msg.ID == h.panicOn {
		panic("boom")
	}
	if msg.ID == h.failOn {
		return errors.New("failed")
	}
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestLoop_ProcessesAllUntilBusClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := bus.New(10, testLogger())
	h := &recordingHandler{delay: 5 * time.Millisecond, failOn: "m2", panicOn: "m3"}
	loop := NewLoop(LoopConfig{Bus: b, Handler: h, Concurrency: 2, Logger: testLogger()})

	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		b.Publish(domain.IncomingMessage{ID: id})
	}

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for h.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("expected 5 handled messages, got %d", h.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after bus close")
	}
	if p := h.peak.Load(); p > 2 {
		t.Fatalf("concurrency limit exceeded: peak %d", p)
	}
}

func TestLoop_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := bus.New(1, testLogger())
	defer b.Close()
	loop := NewLoop(LoopConfig{Bus: b, Handler: &recordingHandler{}, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestNewLoop_DefaultConcurrency(t *testing.T) {
	loop := NewLoop(LoopConfig{Logger: testLogger()})
	if loop.concurrency != defaultConcurrency {
		t.Fatalf("expected default concurrency %d, got %d", defaultConcurrency, loop.concurrency)
	}
}
