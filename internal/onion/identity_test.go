package onion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestWaitReadsPublishedIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	if err := os.WriteFile(path, []byte("AbCdEf.onion\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 0, time.Millisecond)
	identity, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if identity != "abcdef.onion" {
		t.Errorf("expected lowercased identity, got %q", identity)
	}
}

func TestWaitIgnoresExtraLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	if err := os.WriteFile(path, []byte("abcdef.onion\n# key material\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 0, time.Millisecond)
	identity, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if identity != "abcdef.onion" {
		t.Errorf("got %q", identity)
	}
}

func TestWaitRetriesUntilFilePublished(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")

	go func() {
		time.Sleep(30 * time.Millisecond)
		os.WriteFile(path, []byte("late.onion\n"), 0o600)
	}()

	w := NewWatcher(path, 100, 5*time.Millisecond)
	identity, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if identity != "late.onion" {
		t.Errorf("got %q", identity)
	}
}

func TestWaitExhaustsRetryBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")

	w := NewWatcher(path, 2, time.Millisecond)
	start := time.Now()
	_, err := w.Wait(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing identity file")
	}
	if time.Since(start) > time.Second {
		t.Error("retry budget took far too long")
	}
}

func TestWaitRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 1, time.Millisecond)
	if _, err := w.Wait(context.Background()); err == nil {
		t.Fatal("expected an error for an empty identity file")
	}
}

func TestWaitRejectsInvalidIdentifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	if err := os.WriteFile(path, []byte("not a hostname\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 1, time.Millisecond)
	if _, err := w.Wait(context.Background()); err == nil {
		t.Fatal("expected an error for an identifier with whitespace")
	}
}

func TestWaitBacksOffWithInjectedClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	mock := clock.NewMock()

	w := NewWatcherWithClock(path, 3, time.Minute, mock)
	done := make(chan error, 1)
	go func() {
		_, err := w.Wait(context.Background())
		done <- err
	}()

	// Advance the mock clock until the retry budget is spent. Real time
	// never passes, so a long configured backoff stays cheap to test.
	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err == nil {
				t.Fatal("expected an error for a missing identity file")
			}
			return
		default:
			time.Sleep(5 * time.Millisecond)
			mock.Add(time.Minute)
		}
	}
	t.Fatal("watcher did not finish under the mock clock")
}

func TestWaitHonorsCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWatcher(path, 1000, time.Hour)
	if _, err := w.Wait(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
