package logging

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferKeepsNewestReloads(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		buf.Add(LogEntry{Level: LevelInfo, Message: "asset reloaded", Context: map[string]string{
			"asset_id": fmt.Sprintf("shader-%d", i),
		}})
	}

	entries := buf.List()
	require.Len(t, entries, 3)
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.Context["asset_id"])
	}
	assert.Equal(t, []string{"shader-3", "shader-4", "shader-5"}, ids)
}

func TestLogBufferListIsACopy(t *testing.T) {
	buf := NewLogBuffer(2)
	buf.Add(LogEntry{Level: LevelWarning, Message: "asset reload failed"})

	entries := buf.List()
	entries[0].Message = "mutated"
	assert.Equal(t, "asset reload failed", buf.List()[0].Message)
}

func TestLogBufferNonPositiveSizeKeepsLatest(t *testing.T) {
	buf := NewLogBuffer(0)
	buf.Add(LogEntry{Message: "watching assets"})
	buf.Add(LogEntry{Message: "asset loaded"})

	entries := buf.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "asset loaded", entries[0].Message)
}

func TestNilLogBufferIsSafe(t *testing.T) {
	var buf *LogBuffer
	buf.Add(LogEntry{Message: "ignored"})
	assert.Nil(t, buf.List())
}

func TestLogBufferReadersDuringWrites(t *testing.T) {
	buf := NewLogBuffer(16)

	var wg sync.WaitGroup
	for writer := 0; writer < 4; writer++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				buf.Add(LogEntry{Level: LevelDebug, Message: fmt.Sprintf("tick %d.%d", writer, i)})
			}
		}(writer)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.LessOrEqual(t, len(buf.List()), 16)
		}
	}()
	wg.Wait()

	assert.Len(t, buf.List(), 16)
}

func TestLogHubBroadcast(t *testing.T) {
	hub := NewLogHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(LogEntry{Message: "hello"})

	select {
	case got := <-ch:
		if got.Message != "hello" {
			t.Fatalf("expected message hello, got %q", got.Message)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for log entry")
	}
}

func TestLogHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewLogHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(LogEntry{Message: "first"})
	hub.Broadcast(LogEntry{Message: "second"})

	got := <-ch
	if got.Message != "first" {
		t.Fatalf("expected first, got %q", got.Message)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second entry to be dropped, got %q", extra.Message)
	default:
	}
}

func TestLogHubCloseClosesSubscribers(t *testing.T) {
	hub := NewLogHub()
	ch, _ := hub.Subscribe(1)
	hub.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel closed")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for close")
	}
}
