package blob

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
)

// Handler serves object bytes at "<mount>/<id>". Mount it with
// http.StripPrefix so the remaining path is the handle id.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(req.URL.Path, "/")
		obj, err := r.Lookup(req.Context(), id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.ErrorContext(req.Context(), "blob lookup failed", "id", id, "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.NotFound(w, req)
			return
		}

		if obj.MIMEType != "" {
			w.Header().Set("Content-Type", obj.MIMEType)
		}
		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, req, "", obj.CreatedAt, bytes.NewReader(obj.Data))
	})
}
