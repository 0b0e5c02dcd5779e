package router

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/itchan-dev/tinychan/internal/middleware"
	"github.com/itchan-dev/tinychan/internal/middleware/metrics"
	"github.com/itchan-dev/tinychan/internal/setup"
)

// New creates the router. Static sites serve pre-rendered pages from the
// public root; dynamic sites render board and thread pages per request.
func New(deps *setup.Dependencies) http.Handler {
	cfg := &deps.Config.Public
	h := deps.Handler

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5, "text/html", "text/css", "application/javascript"))
	r.Use(mw.SecurityHeadersWithCSP(cfg.SecureCookies, mw.DefaultCSP))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mw.Sessions(deps.Sessions, mw.SessionConfig{
			SecureCookies: cfg.SecureCookies,
			MaxAge:        int(cfg.SessionTTL.Seconds()),
		}))

		r.Get("/rules", h.Rules)

		submit := r.With(mw.ValidateCSRFToken(mw.FormConfig{
			CSRFEnabled:    cfg.CSRF(),
			MaxRequestSize: h.MaxRequestSize(),
			OnError:        h.WriteError,
		}))
		submit.Post("/post", h.Submit)
		submit.Post("/board.php", h.Submit)

		if !cfg.Static() {
			r.Get("/", h.Index)
			if cfg.MultiBoard {
				r.Get("/{board}/", h.Board)
			}
		}
	})

	r.Handle("/*", staticFiles(deps.Files.Root()))
	return r
}

// staticFiles serves the public root without directory listings: a
// directory is only served when it has an index.html.
func staticFiles(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			index := filepath.Join(root, filepath.FromSlash(path.Clean(r.URL.Path)), "index.html")
			if _, err := os.Stat(index); err != nil {
				http.NotFound(w, r)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
