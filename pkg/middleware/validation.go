package middleware

import (
	"net/http"
	"strings"

	"examhub/pkg/api"
)

// ValidateRequest rejects malformed requests before they reach a handler.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				api.Fail(w, http.StatusBadRequest, "invalid Content-Type, expected application/json", nil)
				return
			}

			if r.ContentLength == 0 {
				api.Fail(w, http.StatusBadRequest, "request body cannot be empty", nil)
				return
			}
		}

		// Cap request bodies at 10MB.
		const maxSize = 10 << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		next.ServeHTTP(w, r)
	})
}
