package sessionlog

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func TestBufferKeepsMostRecent(t *testing.T) {
	b := NewBuffer(3)
	for i := range 5 {
		b.Add(Entry{Message: fmt.Sprintf("m%d", i)})
	}

	entries := b.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if entries[i].Message != want {
			t.Fatalf("Entries()[%d] = %q, want %q", i, entries[i].Message, want)
		}
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
}

func TestBufferEntriesIsCopy(t *testing.T) {
	b := NewBuffer(2)
	b.Add(Entry{Message: "a"})
	got := b.Entries()
	got[0].Message = "mutated"
	if b.Entries()[0].Message != "a" {
		t.Fatal("Entries() exposes internal storage")
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(1)
	b.Add(Entry{Message: "a"})
	b.Add(Entry{Message: "b"})
	b.Clear()
	if len(b.Entries()) != 0 || b.Dropped() != 0 {
		t.Fatalf("after Clear: entries=%v dropped=%d", b.Entries(), b.Dropped())
	}
}

func TestNewBufferDefaultLimit(t *testing.T) {
	b := NewBuffer(0)
	for range DefaultLimit + 1 {
		b.Add(Entry{})
	}
	if len(b.Entries()) != DefaultLimit {
		t.Fatalf("len(Entries()) = %d, want %d", len(b.Entries()), DefaultLimit)
	}
}

func TestBufferAsTeeCallback(t *testing.T) {
	b := NewBuffer(10)
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelWarn, b.Add))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			logger.Warn("concurrent", "n", i)
		})
	}
	wg.Wait()
	logger.Info("not captured")

	if got := len(b.Entries()); got != 8 {
		t.Fatalf("len(Entries()) = %d, want 8", got)
	}
}
