package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/logger"
	mw "github.com/itchan-dev/tinychan/internal/middleware"
	"github.com/itchan-dev/tinychan/internal/render"
)

// isPartial reports an AJAX navigation request that only wants the main block.
func isPartial(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (h *Handler) options(r *http.Request) render.Options {
	opts := render.Options{Partial: isPartial(r)}
	if h.cfg.CSRF() {
		opts.CSRFToken = mw.GetCSRFTokenFromContext(r)
	}
	return opts
}

func writeHTML(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(page)
}

// parseId reads a positive id. Anything else is 0, which the form treats as
// "new thread".
func parseId(s string) domain.PostId {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// firstValue returns the first non-empty form value among the aliases.
func firstValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

// WriteError renders the page for a failed request. Upload failures get the
// upload rules page, everything else the generic error page. Internal detail
// never reaches the client.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err, h.backURL(r))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, back string) {
	status := internal_errors.StatusCode(err)
	message := internal_errors.UserMessage(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Error("request failed", "component", "http", "path", r.URL.Path, "error", err)
	}

	opts := h.options(r)
	var (
		page      []byte
		renderErr error
	)
	if internal_errors.Is[*internal_errors.UploadError](err) {
		page, renderErr = h.renderer.Rules(message, opts)
	} else {
		page, renderErr = h.renderer.Error(message, back, opts)
	}
	if renderErr != nil {
		logger.Log.Error("failed to render error page", "component", "http", "error", renderErr)
		http.Error(w, message, status)
		return
	}

	// htmx does not swap error responses; the fragment must arrive as a 200
	if opts.Partial {
		w.Header().Set("X-Post-Status", strconv.Itoa(status))
		status = http.StatusOK
	}
	writeHTML(w, status, page)
}

// backURL points at the page the form was submitted from.
func (h *Handler) backURL(r *http.Request) string {
	links := h.renderer.Links()
	board := strings.TrimSpace(r.FormValue("board"))
	if !h.cfg.HasBoard(board) {
		board = h.cfg.DefaultBoard
	}
	if parent := parseId(r.FormValue("parent")); parent > 0 {
		return links.Thread(board, parent)
	}
	return links.Board(board, 1)
}
