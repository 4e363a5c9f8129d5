package httpapi

import (
	"database/sql"
	"net/http"

	"weathervision/internal/metrics"
)

// NewMux registers the process-level routes. Feature modules add theirs to
// the returned mux.
func NewMux(db *sql.DB, staticDir string, m *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/", http.StatusFound)
	})
	return mux
}
