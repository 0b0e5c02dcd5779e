package fs

import (
	"fmt"
	"path"
	"strconv"

	"github.com/itchan-dev/tinychan/internal/domain"
)

// Layout maps boards, pages and media to slash separated paths relative to the
// public root. The same paths double as URLs in static mode.
//
//	multi-board:  <board>/index.html, <board>/2.html, <board>/res/<id>.html,
//	              <board>/src/<id>.<ext>, <board>/thumb/<id>s.jpg
//	single-board: index.html, 2.html, res/<id>.html,
//	              uploads/<id>.<ext>, uploads/thumb/<id>s.jpg
type Layout struct {
	MultiBoard bool
}

func (l Layout) boardDir(board domain.BoardId) string {
	if l.MultiBoard {
		return board
	}
	return ""
}

// BoardPage is the file holding page n (1 based) of a board index.
func (l Layout) BoardPage(board domain.BoardId, page int) string {
	name := "index.html"
	if page > 1 {
		name = strconv.Itoa(page) + ".html"
	}
	return path.Join(l.boardDir(board), name)
}

func (l Layout) ThreadPage(board domain.BoardId, id domain.PostId) string {
	return path.Join(l.boardDir(board), "res", fmt.Sprintf("%d.html", id))
}

// HomePage lists the boards. Single-board sites have no separate home page.
func (l Layout) HomePage() string {
	return "index.html"
}

func (l Layout) MediaDir(board domain.BoardId) string {
	if l.MultiBoard {
		return path.Join(board, "src")
	}
	return "uploads"
}

func (l Layout) ThumbDir(board domain.BoardId) string {
	if l.MultiBoard {
		return path.Join(board, "thumb")
	}
	return path.Join("uploads", "thumb")
}

// MediaName is the id derived name an upload is stored under.
func MediaName(id domain.PostId, ext string) string {
	return fmt.Sprintf("%d.%s", id, ext)
}

func ThumbName(id domain.PostId) string {
	return fmt.Sprintf("%ds.jpg", id)
}

// URL turns a relative path into an absolute URL path.
func URL(rel string) string {
	return "/" + rel
}

// BoardURL is the public address of a board index page. Page 1 is addressed by
// its directory.
func (l Layout) BoardURL(board domain.BoardId, page int) string {
	if page <= 1 {
		if dir := l.boardDir(board); dir != "" {
			return "/" + dir + "/"
		}
		return "/"
	}
	return URL(l.BoardPage(board, page))
}

func (l Layout) ThreadURL(board domain.BoardId, id domain.PostId) string {
	return URL(l.ThreadPage(board, id))
}
