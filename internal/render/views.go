package render

import (
	"html/template"
	"path"
	"strconv"
	"strings"

	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/markup"
)

// TemplateData wraps page-specific data with common template data.
// Templates access page data via .Data and common data via .Common.
type TemplateData struct {
	Data   any
	Common CommonData
}

type CommonData struct {
	Title        string
	Board        domain.BoardId
	MultiBoard   bool
	Dynamic      bool
	CSRFToken    string
	PostURL      string
	RulesURL     string
	HomeURL      string
	BoardURL     string
	MessageMax   int
	SubjectMax   int
	NameMax      int
	MaxFileMB    float64
	Extensions   string
	ReplyUploads bool
	Error        string
}

type MediaView struct {
	URL      string
	ThumbURL string
	Name     string
	IsVideo  bool
	Width    int
	Height   int
}

type PostView struct {
	Id        domain.PostId
	Parent    domain.PostId
	Name      string
	Subject   string
	Message   template.HTML
	Truncated bool
	Time      string
	Media     *MediaView
	URL       string
}

type ThreadView struct {
	Op         PostView
	Replies    []PostView
	ReplyCount int
	URL        string
}

type PageLink struct {
	Number  int
	URL     string
	Current bool
}

type BoardView struct {
	Board   domain.BoardId
	Threads []ThreadView
	Page    int
	Pages   []PageLink
}

type BoardLink struct {
	Id  domain.BoardId
	URL string
}

type HomeView struct {
	Boards []BoardLink
}

type RulesView struct {
	Extensions []string
	MaxFileMB  float64
}

type ErrorView struct {
	Message string
	Back    string
}

const timeLayout = "2006-01-02 15:04:05"

type displaySize struct{ width, height int }

func (r *Renderer) postView(p *domain.Post, size displaySize, preview bool) PostView {
	view := PostView{
		Id:      p.Id,
		Parent:  p.Parent,
		Name:    p.Name,
		Subject: p.Subject,
		Time:    p.CreatedAt().UTC().Format(timeLayout),
		URL:     r.links.Thread(p.Board, p.ThreadId()) + "#p" + strconv.FormatInt(p.Id, 10),
	}
	text := p.Message
	if preview {
		text, view.Truncated = markup.Preview(text, r.cfg.PreviewMaxLen)
	}
	view.Message = r.formatter.Format(text)

	if p.Image != "" {
		m := &MediaView{
			URL:     r.links.Media(p.Board, p.Image),
			Name:    p.Image,
			IsVideo: strings.EqualFold(path.Ext(p.Image), ".mp4"),
			Width:   size.width,
			Height:  size.height,
		}
		m.ThumbURL = m.URL
		if p.Thumb != "" {
			m.ThumbURL = r.links.Thumb(p.Board, p.Thumb)
		}
		view.Media = m
	}
	return view
}

func pageLinks(links Links, board domain.BoardId, current, pages int) []PageLink {
	out := make([]PageLink, 0, pages)
	for i := 1; i <= pages; i++ {
		out = append(out, PageLink{Number: i, URL: links.Board(board, i), Current: i == current})
	}
	return out
}
