// CLAUDE:SUMMARY JSON HTTP API over the library operations, routed with chi.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/chapterkb/shield"
)

// Router returns the HTTP API:
//
//	GET  /health
//	GET  /api/chapters
//	POST /api/chapters/{id}/extract?force=true
//	POST /api/refresh
//	GET  /api/search?q=...&max_results=3&include_images=false
//	GET  /api/chapters/{id}/section?topic=...&level=brief
//	GET  /api/chapters/{id}/text?start=0&length=1000
//	GET  /api/chapters/{id}/visual?pages=1,3-4&topic=...
//
// Errors are {"error": true, "message": "..."}. Requests pass through the
// shield stack: request ids, security headers, body limit and, when
// configured, per-client rate limiting.
func (l *Library) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(shield.Options{
		MaxBody:   l.cfg.HTTP.MaxBody,
		RateLimit: l.cfg.HTTP.RateLimit,
		Exclude:   []string{"/health"},
	}) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "images_enabled": l.ImagesEnabled()})
	})

	r.Get("/api/chapters", l.handle("list_chapters", func(ctx context.Context, _ *http.Request) (any, error) {
		return l.ListChapters(ctx)
	}))

	r.Post("/api/refresh", l.handle("refresh", func(ctx context.Context, _ *http.Request) (any, error) {
		return l.Refresh(ctx)
	}))

	r.Get("/api/search", l.handle("search_content", func(ctx context.Context, r *http.Request) (any, error) {
		q := r.URL.Query()
		return l.SearchContent(ctx, q.Get("q"), queryInt(r, "max_results", 0), queryBool(r, "include_images") && l.ImagesEnabled())
	}))

	r.Route("/api/chapters/{id}", func(r chi.Router) {
		r.Post("/extract", l.handle("extract_chapter", func(ctx context.Context, r *http.Request) (any, error) {
			return l.ExtractChapter(ctx, chi.URLParam(r, "id"), queryBool(r, "force"))
		}))
		r.Get("/section", l.handle("get_chapter_section", func(ctx context.Context, r *http.Request) (any, error) {
			q := r.URL.Query()
			return l.GetChapterSection(ctx, chi.URLParam(r, "id"), q.Get("topic"), q.Get("level"))
		}))
		r.Get("/text", l.handle("get_chapter_text", func(ctx context.Context, r *http.Request) (any, error) {
			return l.GetChapterText(ctx, chi.URLParam(r, "id"), queryInt(r, "start", 0), queryInt(r, "length", DefaultTextLength))
		}))
		r.Get("/visual", l.handle("get_visual_content", func(ctx context.Context, r *http.Request) (any, error) {
			pages, err := parsePages(r.URL.Query().Get("pages"))
			if err != nil {
				return nil, err
			}
			return l.GetVisualContent(ctx, chi.URLParam(r, "id"), pages, r.URL.Query().Get("topic"))
		}))
	})
	return r
}

func (l *Library) handle(op string, fn func(context.Context, *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ep := l.endpoint(op, func(ctx context.Context, _ any) (any, error) {
			return fn(ctx, r)
		})
		resp, err := ep(r.Context(), nil)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrChapterNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotExtracted), errors.Is(err, ErrImagesDisabled):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": true, "message": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
