package shield

import (
	"net/http"

	"github.com/hazyhaar/chapterkb/idgen"
	"github.com/hazyhaar/chapterkb/kit"
)

// RequestID tags each request with an id, taken from the X-Request-ID header
// or generated, and echoes it back. The id and the "http" transport are put
// in the context for kit middleware.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = idgen.RequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
