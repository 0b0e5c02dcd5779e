package render

import (
	"fmt"
	"path"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/storage/fs"
)

const (
	PostURL  = "/post"
	RulesURL = "/rules"
)

// Links builds every URL a page points to. Static and dynamic sites address
// boards and threads differently but share media paths.
type Links interface {
	Home() string
	Board(board domain.BoardId, page int) string
	Thread(board domain.BoardId, id domain.PostId) string
	Media(board domain.BoardId, name string) string
	Thumb(board domain.BoardId, name string) string
}

// StaticLinks points at the pre-rendered files.
type StaticLinks struct {
	Layout fs.Layout
}

func (l StaticLinks) Home() string { return "/" }

func (l StaticLinks) Board(board domain.BoardId, page int) string {
	return l.Layout.BoardURL(board, page)
}

func (l StaticLinks) Thread(board domain.BoardId, id domain.PostId) string {
	return l.Layout.ThreadURL(board, id)
}

func (l StaticLinks) Media(board domain.BoardId, name string) string {
	return fs.URL(path.Join(l.Layout.MediaDir(board), name))
}

func (l StaticLinks) Thumb(board domain.BoardId, name string) string {
	return fs.URL(path.Join(l.Layout.ThumbDir(board), name))
}

// DynamicLinks addresses pages by query string: /<board>/?page=2, /?thread=7.
type DynamicLinks struct {
	StaticLinks
}

func (l DynamicLinks) Board(board domain.BoardId, page int) string {
	base := l.Layout.BoardURL(board, 1)
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}

func (l DynamicLinks) Thread(board domain.BoardId, id domain.PostId) string {
	return fmt.Sprintf("%s?thread=%d", l.Layout.BoardURL(board, 1), id)
}

// LinksFor picks the link scheme of the configured mode.
func LinksFor(cfg *config.Public) Links {
	static := StaticLinks{Layout: fs.Layout{MultiBoard: cfg.MultiBoard}}
	if cfg.Static() {
		return static
	}
	return DynamicLinks{static}
}
