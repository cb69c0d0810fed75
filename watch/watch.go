// Package watch provides a generic "poll, detect change, debounce, act" loop.
// The version token comes from a pluggable detector; DirFingerprint watches
// a directory of files.
//
// Typical usage:
//
//	w := watch.New(watch.Options{Interval: 2*time.Second, Debounce: time.Second,
//		Detector: watch.DirFingerprint(dir, ".pdf")})
//	go w.OnChange(ctx, func(ctx context.Context) error { return lib.Refresh(ctx) })
package watch

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token. Two calls that return different
// values mean "something changed"; the values need not be ordered.
type ChangeDetector func(ctx context.Context) (int64, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// action fires. If more changes arrive during the window the timer
	// resets. 0 means fire immediately.
	Debounce time.Duration
	// Detector produces the version token. Required.
	Detector ChangeDetector
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a detector and runs an action when the token changes.
// It is safe for concurrent use.
type Watcher struct {
	opts Options

	version atomic.Int64
	seeded  atomic.Bool

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(opts Options) *Watcher {
	opts.defaults()
	return &Watcher{opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last version the action completed for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled, polling at opts.Interval. When the
// detector reports a new token and the debounce window passes without
// further changes, action is called.
//
// If fireFirst is set the action also runs once for the initial state.
// If action returns an error the version is not advanced and the action is
// retried on the next poll cycle.
func (w *Watcher) OnChange(ctx context.Context, fireFirst bool, action func(context.Context) error) error {
	if w.opts.Detector == nil {
		return errors.New("watch: no detector")
	}
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else if fireFirst {
		w.fire(ctx, log, action, v)
	} else {
		w.setVersion(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		debounceTimer *time.Timer
		debounceCh    <-chan time.Time
		pending       int64
		hasPending    bool
	)

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if w.seeded.Load() && cur == w.version.Load() {
				if hasPending && debounceTimer != nil {
					// Changed and changed back inside the window.
					debounceTimer.Stop()
					debounceCh, hasPending = nil, false
				}
				continue
			}
			if hasPending && cur == pending {
				continue
			}
			w.changes.Add(1)
			pending, hasPending = cur, true

			if w.opts.Debounce <= 0 {
				w.fire(ctx, log, action, pending)
				hasPending = false
				continue
			}
			// Restart only when the pending token actually changed.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceCh:
			debounceCh = nil
			if hasPending {
				w.fire(ctx, log, action, pending)
				hasPending = false
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, log *slog.Logger, action func(context.Context) error, ver int64) {
	log.Info("watch: reloading", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.setVersion(ver)
	log.Info("watch: reload complete", "version", ver, "duration", elapsed)
}

func (w *Watcher) setVersion(v int64) {
	w.version.Store(v)
	w.seeded.Store(true)
}

// DirFingerprint returns a detector that hashes the names, sizes and
// modification times of the regular files in dir whose extension matches
// ext (case-insensitive, empty for all files). Subdirectories are ignored.
func DirFingerprint(dir, ext string) ChangeDetector {
	return func(ctx context.Context) (int64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0, err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		h := fnv.New64a()
		var buf [8]byte
		for _, e := range entries {
			if e.IsDir() || (ext != "" && !strings.EqualFold(filepath.Ext(e.Name()), ext)) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				// Removed between ReadDir and Info; the next poll sees it gone.
				continue
			}
			h.Write([]byte(e.Name()))
			h.Write([]byte{0})
			binary.LittleEndian.PutUint64(buf[:], uint64(info.Size()))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], uint64(info.ModTime().UnixNano()))
			h.Write(buf[:])
		}
		return int64(h.Sum64()), nil
	}
}
