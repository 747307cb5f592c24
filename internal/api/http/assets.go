package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coe/internal/storage"
)

// MountFiles serves stored evaluator sheets as raw JSON. Only the bundles/
// prefix is reachable; master keys under keys/ never leave the server.
func MountFiles(r chi.Router, bs storage.BlobStore) {
	// GET /files/bundles/{cycleID}/{date}_{slot}.json
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")        // everything after /files/
		key = strings.TrimPrefix(key, "/") // normalize
		if !strings.HasPrefix(key, "bundles/") || strings.Contains(key, "..") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		rc, err := bs.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment")
		_, _ = io.Copy(w, rc)
	})
}
