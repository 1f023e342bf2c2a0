package middleware

import (
	"net/http"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. Bodies that declare a
// larger Content-Length are refused with 413 before the handler runs; for
// the rest the body reader fails with *http.MaxBytesError once the limit is
// hit, which httputil.DecodeError turns into a 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
