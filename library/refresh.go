// CLAUDE:SUMMARY Refresh and Watch extract chapters that are new or modified since their cache record, once or on every directory change.
package library

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hazyhaar/chapterkb/watch"
)

// RefreshReport counts what a Refresh did.
type RefreshReport struct {
	Extracted []string `json:"extracted"`
	Failed    []string `json:"failed"`
	UpToDate  int      `json:"up_to_date"`
}

// Refresh extracts every chapter with no cache record or with a PDF modified
// after its record was written. A failing chapter is logged and skipped; only
// cancellation and a missing chapters directory are errors.
func (l *Library) Refresh(ctx context.Context) (*RefreshReport, error) {
	names, err := l.listPDFs()
	if err != nil {
		return nil, err
	}
	rep := &RefreshReport{Extracted: []string{}, Failed: []string{}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		stale, err := l.stale(ctx, name)
		if err != nil {
			l.logger.Warn("library: refresh check failed", "chapter", name, "error", err)
			rep.Failed = append(rep.Failed, name)
			continue
		}
		if !stale {
			rep.UpToDate++
			continue
		}
		if _, err := l.ExtractChapter(ctx, name, true); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			l.logger.Warn("library: refresh extract failed", "chapter", name, "error", err)
			rep.Failed = append(rep.Failed, name)
			continue
		}
		rep.Extracted = append(rep.Extracted, name)
	}
	l.logger.Info("library: refreshed",
		"extracted", len(rep.Extracted),
		"failed", len(rep.Failed),
		"up_to_date", rep.UpToDate,
	)
	return rep, nil
}

func (l *Library) stale(ctx context.Context, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(l.cfg.ChaptersDir, name))
	if err != nil {
		return false, err
	}
	c, err := l.load(ctx, name)
	if err != nil {
		return false, err
	}
	return c == nil || info.ModTime().After(c.ExtractedAt), nil
}

// Watch refreshes the library now and again whenever the set of PDFs in the
// chapters directory changes. It blocks until ctx is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	w := watch.New(watch.Options{
		Interval: l.cfg.Watch.Interval,
		Debounce: max(l.cfg.Watch.Debounce, 0),
		Detector: watch.DirFingerprint(l.cfg.ChaptersDir, ".pdf"),
		Logger:   l.logger,
	})
	return w.OnChange(ctx, true, func(ctx context.Context) error {
		_, err := l.Refresh(ctx)
		return err
	})
}
