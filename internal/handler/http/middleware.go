package http

import (
	"net/http"
	"strings"

	"github.com/obaraelijah/LeafLine-Server/pkg/httputil"
	"github.com/obaraelijah/LeafLine-Server/pkg/logger"
)

// ContentTypeJSON rejects request bodies declared as anything other than
// JSON. A missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					StatusCode: http.StatusUnsupportedMediaType,
					Message:    "Content-Type must be application/json",
					RequestID:  logger.CorrelationIDFromContext(r.Context()),
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
