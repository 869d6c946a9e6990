package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"shapebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.IncomingMessage{ID: "1"})
	b.Publish(domain.IncomingMessage{ID: "2"})

	in := b.Subscribe()
	for _, want := range []string{"1", "2"} {
		select {
		case got := <-in:
			if got.ID != want {
				t.Fatalf("expected %q, got %q", want, got.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestBus_DefaultBufferSize(t *testing.T) {
	b := New(0, testLogger())
	defer b.Close()
	if cap(b.inbound) != 100 {
		t.Fatalf("expected default buffer 100, got %d", cap(b.inbound))
	}
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	b := New(1, testLogger())
	b.Close()

	// Must not panic on a closed channel.
	b.Publish(domain.IncomingMessage{ID: "late"})

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed channel")
	}
}

func TestBus_CloseTwice(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close()
}

func TestBus_FullBufferDropsAfterTimeout(t *testing.T) {
	b := New(1, testLogger())
	defer b.Close()
	b.timeout = 20 * time.Millisecond

	b.Publish(domain.IncomingMessage{ID: "kept"})

	start := time.Now()
	b.Publish(domain.IncomingMessage{ID: "dropped"})
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("publish should wait for the timeout before dropping")
	}

	got := <-b.Subscribe()
	if got.ID != "kept" {
		t.Fatalf("expected 'kept', got %q", got.ID)
	}
	select {
	case extra := <-b.Subscribe():
		t.Fatalf("expected dropped message, got %q", extra.ID)
	default:
	}
}
