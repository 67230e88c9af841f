// Package onion consumes the interface the external hidden-service daemon
// exposes: a file that, once the daemon is ready, holds the generated public
// host identifier on its first line.
package onion

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Watcher waits for the daemon's hostname file with a bounded retry budget.
// A missing or invalid file past the budget is a misconfiguration, not a
// transient error.
type Watcher struct {
	path    string
	retries int
	backoff time.Duration
	clock   clock.Clock
}

func NewWatcher(path string, retries int, backoff time.Duration) *Watcher {
	return NewWatcherWithClock(path, retries, backoff, clock.New())
}

func NewWatcherWithClock(path string, retries int, backoff time.Duration, c clock.Clock) *Watcher {
	return &Watcher{path: path, retries: retries, backoff: backoff, clock: c}
}

// Wait blocks until the identity file holds a valid host identifier, the
// retry budget is spent, or ctx is canceled. The identifier is returned
// lowercased.
func (w *Watcher) Wait(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			t := w.clock.Timer(w.backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}

		identity, err := readIdentity(w.path)
		if err == nil {
			return identity, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("hidden-service identity not published after %d attempts: %w", w.retries+1, lastErr)
}

func readIdentity(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("identity file %s is empty", path)
	}
	if strings.ContainsAny(line, " \t") {
		return "", fmt.Errorf("identity file %s holds an invalid host identifier", path)
	}
	return strings.ToLower(line), nil
}
