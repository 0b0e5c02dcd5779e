package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/render"
	"github.com/itchan-dev/tinychan/internal/service"
	"github.com/itchan-dev/tinychan/internal/validation"
)

// formOverhead is the room left for text fields and multipart framing on
// top of the largest accepted file.
const formOverhead = 1 << 20

// PostReader serves the dynamic page routes.
type PostReader interface {
	CountThreads(ctx context.Context, board domain.BoardId) (int, error)
	ListThreads(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error)
	GetThread(ctx context.Context, id domain.PostId) (*domain.Thread, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	posts    service.PostService
	reader   PostReader
	health   HealthChecker
	renderer *render.Renderer
	cfg      *config.Public
}

func New(posts service.PostService, reader PostReader, health HealthChecker, renderer *render.Renderer, cfg *config.Public) *Handler {
	return &Handler{
		posts:    posts,
		reader:   reader,
		health:   health,
		renderer: renderer,
		cfg:      cfg,
	}
}

// MaxRequestSize caps a whole submission: the file plus the form around it.
func (h *Handler) MaxRequestSize() int64 {
	return validation.CalculateMaxRequestSize(h.cfg.MaxFileSize, formOverhead)
}

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready returns 503 while the database cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
