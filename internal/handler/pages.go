package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/service"
)

var errNotFound = &internal_errors.ErrorWithStatusCode{Message: "Not found", StatusCode: http.StatusNotFound}

// Index serves "/" on a dynamic site: the board list on multi-board sites,
// the board itself otherwise.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.MultiBoard {
		h.serveBoard(w, r, h.cfg.DefaultBoard)
		return
	}
	page, err := h.renderer.Home(h.cfg.Boards(), h.options(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// Board serves "/{board}/" on a dynamic multi-board site.
func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")
	if !h.cfg.MultiBoard || !h.cfg.HasBoard(board) {
		h.writeError(w, r, errNotFound, "")
		return
	}
	h.serveBoard(w, r, board)
}

// serveBoard renders ?thread=ID when given, else page ?page=N of the index.
func (h *Handler) serveBoard(w http.ResponseWriter, r *http.Request, board domain.BoardId) {
	query := r.URL.Query()
	if raw := query.Get("thread"); raw != "" {
		h.serveThread(w, r, board, parseId(raw))
		return
	}

	ctx := r.Context()
	count, err := h.reader.CountThreads(ctx, board)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	perPage := h.cfg.ThreadsPerPage
	pages := service.PageCount(count, perPage)

	current := 1
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > pages {
			h.writeError(w, r, errNotFound, h.renderer.Links().Board(board, 1))
			return
		}
		current = n
	}

	threads, err := h.reader.ListThreads(ctx, board, perPage, (current-1)*perPage)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	opts := h.options(r)
	opts.Preview = true
	page, err := h.renderer.BoardIndex(board, threads, current, pages, opts)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (h *Handler) serveThread(w http.ResponseWriter, r *http.Request, board domain.BoardId, id domain.PostId) {
	back := h.renderer.Links().Board(board, 1)
	if id <= 0 {
		h.writeError(w, r, errNotFound, back)
		return
	}
	thread, err := h.reader.GetThread(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	if thread.Op.Board != board {
		h.writeError(w, r, errNotFound, back)
		return
	}
	page, err := h.renderer.Thread(board, thread, h.options(r))
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// Rules shows the accepted upload types and size limit.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	page, err := h.renderer.Rules("", h.options(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeHTML(w, http.StatusOK, page)
}
