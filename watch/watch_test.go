package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a detector whose token the test sets directly.
type counter struct{ v atomic.Int64 }

func (c *counter) detect(context.Context) (int64, error) { return c.v.Load(), nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func start(t *testing.T, w *Watcher, fireFirst bool, action func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.OnChange(ctx, fireFirst, action)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	var c counter
	var reloads atomic.Int32
	w := New(Options{Interval: 10 * time.Millisecond, Detector: c.detect})
	start(t, w, false, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	waitFor(t, "first poll", func() bool { return w.Stats().Checks > 0 })

	c.v.Store(1)
	waitFor(t, "first reload", func() bool { return reloads.Load() == 1 })

	c.v.Store(2)
	waitFor(t, "second reload", func() bool { return reloads.Load() == 2 })

	// No change, no extra reload.
	time.Sleep(60 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
	if w.Version() != 2 {
		t.Fatalf("version = %d, want 2", w.Version())
	}
}

func TestOnChange_FireFirst(t *testing.T) {
	var c counter
	c.v.Store(7)
	var reloads atomic.Int32
	w := New(Options{Interval: 10 * time.Millisecond, Detector: c.detect})
	start(t, w, true, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	waitFor(t, "initial reload", func() bool { return reloads.Load() == 1 })
	if w.Version() != 7 {
		t.Fatalf("version = %d, want 7", w.Version())
	}
}

func TestOnChange_Debounce(t *testing.T) {
	var c counter
	var reloads atomic.Int32
	w := New(Options{
		Interval: 10 * time.Millisecond,
		Debounce: 150 * time.Millisecond,
		Detector: c.detect,
	})
	start(t, w, false, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	waitFor(t, "first poll", func() bool { return w.Stats().Checks > 0 })

	// Rapid changes inside one debounce window.
	for i := 1; i <= 5; i++ {
		c.v.Store(int64(i))
		time.Sleep(20 * time.Millisecond)
	}
	if got := reloads.Load(); got != 0 {
		t.Fatalf("expected 0 reloads during debounce, got %d", got)
	}

	waitFor(t, "debounced reload", func() bool { return reloads.Load() >= 1 })
	time.Sleep(200 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 debounced reload, got %d", got)
	}
	if w.Version() != 5 {
		t.Fatalf("version = %d, want 5", w.Version())
	}
}

func TestOnChange_ErrorDoesNotAdvanceVersion(t *testing.T) {
	var c counter
	var calls atomic.Int32
	w := New(Options{Interval: 10 * time.Millisecond, Detector: c.detect})
	start(t, w, false, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("simulated failure")
		}
		return nil
	})
	waitFor(t, "first poll", func() bool { return w.Stats().Checks > 0 })

	c.v.Store(1)
	waitFor(t, "retry after failure", func() bool { return w.Version() == 1 })
	if got := calls.Load(); got < 2 {
		t.Fatalf("expected at least 2 calls, got %d", got)
	}

	s := w.Stats()
	if s.Errors == 0 || s.Reloads == 0 || s.ChangesDetected == 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestOnChange_NoDetector(t *testing.T) {
	w := New(Options{})
	if err := w.OnChange(context.Background(), false, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error without a detector")
	}
}

func TestDirFingerprint(t *testing.T) {
	dir := t.TempDir()
	det := DirFingerprint(dir, ".pdf")
	ctx := context.Background()

	v0, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "belay.pdf")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	v1, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v1 == v0 {
		t.Fatal("adding a PDF did not change the fingerprint")
	}

	// Other extensions and subdirectories are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if v, _ := det(ctx); v != v1 {
		t.Fatal("ignored entries changed the fingerprint")
	}

	// Same name, new size.
	if err := os.WriteFile(path, []byte("one two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if v, _ := det(ctx); v == v1 {
		t.Fatal("rewriting a PDF did not change the fingerprint")
	}

	if _, err := DirFingerprint(filepath.Join(dir, "missing"), ".pdf")(ctx); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
