package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/itchan-dev/tinychan/internal/domain"
	mw "github.com/itchan-dev/tinychan/internal/middleware"
	"github.com/itchan-dev/tinychan/internal/validation"
)

// Submit handles the post form. The form is normally parsed (and its CSRF
// token checked) by middleware already.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Form == nil {
		if err := validation.ValidateAndParseForm(r, w, h.MaxRequestSize()); err != nil {
			h.WriteError(w, r, validation.FormError(r, err, h.MaxRequestSize()))
			return
		}
	}

	// a POST without the submit button is not a post
	if firstValue(r, "submit_post", "post") == "" {
		http.Redirect(w, r, h.renderer.Links().Home(), http.StatusSeeOther)
		return
	}

	form := domain.PostForm{
		Parent:  parseId(r.FormValue("parent")),
		Board:   r.FormValue("board"),
		Name:    r.FormValue("name"),
		Subject: r.FormValue("subject"),
		Message: firstValue(r, "message", "body"),
	}
	upload := formUpload(r, "file", "image")

	result, err := h.posts.Submit(r.Context(), mw.GetSessionFromContext(r), form, upload)
	if err != nil {
		back := h.backURL(r)
		if result.PostId != 0 {
			// committed, only the pages are stale
			back = h.resultURL(result)
		}
		h.writeError(w, r, err, back)
		return
	}

	http.Redirect(w, r, h.resultURL(result), http.StatusSeeOther)
}

// resultURL is where a successful post lands: the board index for a new
// thread, the thread page for a reply.
func (h *Handler) resultURL(result domain.SubmitResult) string {
	links := h.renderer.Links()
	if result.IsThread {
		return links.Board(result.Board, 1)
	}
	return links.Thread(result.Board, result.ThreadId)
}

// formUpload returns the first file field present under any of the names, or
// nil when the form has no file field at all.
func formUpload(r *http.Request, names ...string) *domain.Upload {
	if r.MultipartForm == nil {
		return nil
	}
	for _, name := range names {
		files := r.MultipartForm.File[name]
		if len(files) == 0 {
			continue
		}
		return fileUpload(files[0])
	}
	return nil
}

func fileUpload(fh *multipart.FileHeader) *domain.Upload {
	return &domain.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
