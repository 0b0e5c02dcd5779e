// Package render turns posts into HTML pages. It does no I/O: callers decide
// whether the bytes go to a file or to a response.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/markup"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	baseTemplate     = "base.html"
	partialsTemplate = "partials.html"
	mainBlock        = "main"
)

var pageTemplates = []string{"board.html", "thread.html", "home.html", "rules.html", "error.html"}

// Options vary a single render.
type Options struct {
	// Partial renders only the main block, for AJAX navigation.
	Partial bool
	// CSRFToken is embedded in post forms when set.
	CSRFToken string
	// Preview shortens messages on board indexes.
	Preview bool
}

type Renderer struct {
	cfg       *config.Public
	links     Links
	formatter *markup.Formatter
	templates map[string]*template.Template
}

func New(cfg *config.Public, links Links, formatter *markup.Formatter) (*Renderer, error) {
	funcs := template.FuncMap{
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
		"dict": dict,
	}

	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		tmpl, err := template.New(baseTemplate).Funcs(funcs).ParseFS(templateFS,
			"templates/"+baseTemplate,
			"templates/"+partialsTemplate,
			"templates/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	return &Renderer{cfg: cfg, links: links, formatter: formatter, templates: templates}, nil
}

func (r *Renderer) Links() Links {
	return r.links
}

func (r *Renderer) common(board domain.BoardId, opts Options) CommonData {
	c := CommonData{
		Title:        r.cfg.BoardTitle,
		Board:        board,
		MultiBoard:   r.cfg.MultiBoard,
		Dynamic:      !r.cfg.Static(),
		CSRFToken:    opts.CSRFToken,
		PostURL:      PostURL,
		RulesURL:     RulesURL,
		HomeURL:      r.links.Home(),
		MessageMax:   r.cfg.MessageMaxLen,
		SubjectMax:   r.cfg.SubjectMaxLen,
		NameMax:      r.cfg.NameMaxLen,
		MaxFileMB:    float64(r.cfg.MaxFileSize) / (1 << 20),
		Extensions:   "." + strings.Join(r.cfg.AllowedExtensions, ",."),
		ReplyUploads: r.cfg.ReplyUploads,
	}
	if board != "" {
		c.BoardURL = r.links.Board(board, 1)
		if r.cfg.MultiBoard {
			c.Title = fmt.Sprintf("/%s/ - %s", board, r.cfg.BoardTitle)
		}
	}
	return c
}

func (r *Renderer) execute(page string, data TemplateData, opts Options) ([]byte, error) {
	tmpl, ok := r.templates[page]
	if !ok {
		return nil, fmt.Errorf("template %s not found", page)
	}
	name := baseTemplate
	if opts.Partial {
		name = mainBlock
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

// BoardIndex renders page (1 based) of pages of a board index.
func (r *Renderer) BoardIndex(board domain.BoardId, threads []domain.ThreadSummary, page, pages int, opts Options) ([]byte, error) {
	size := displaySize{r.cfg.ThumbnailWidth, r.cfg.ThumbnailHeight}
	view := BoardView{
		Board:   board,
		Threads: make([]ThreadView, 0, len(threads)),
		Page:    page,
		Pages:   pageLinks(r.links, board, page, pages),
	}
	for i := range threads {
		op := threads[i].Post
		view.Threads = append(view.Threads, ThreadView{
			Op:         r.postView(&op, size, opts.Preview),
			ReplyCount: threads[i].ReplyCount,
			URL:        r.links.Thread(board, op.Id),
		})
	}
	return r.execute("board.html", TemplateData{Data: view, Common: r.common(board, opts)}, opts)
}

// Thread renders a thread root followed by all its replies.
func (r *Renderer) Thread(board domain.BoardId, thread *domain.Thread, opts Options) ([]byte, error) {
	size := displaySize{r.cfg.FullsizeWidth, r.cfg.FullsizeHeight}
	view := ThreadView{
		Op:         r.postView(thread.Op, size, false),
		Replies:    make([]PostView, 0, len(thread.Replies)),
		ReplyCount: len(thread.Replies),
		URL:        r.links.Thread(board, thread.Op.Id),
	}
	for _, reply := range thread.Replies {
		view.Replies = append(view.Replies, r.postView(reply, size, false))
	}
	return r.execute("thread.html", TemplateData{Data: view, Common: r.common(board, opts)}, opts)
}

func (r *Renderer) Home(boards []domain.BoardId, opts Options) ([]byte, error) {
	view := HomeView{Boards: make([]BoardLink, 0, len(boards))}
	for _, b := range boards {
		view.Boards = append(view.Boards, BoardLink{Id: b, URL: r.links.Board(b, 1)})
	}
	return r.execute("home.html", TemplateData{Data: view, Common: r.common("", opts)}, opts)
}

// Rules lists what uploads are accepted, with the reason a file was
// rejected when there is one.
func (r *Renderer) Rules(rejection string, opts Options) ([]byte, error) {
	view := RulesView{
		Extensions: r.cfg.AllowedExtensions,
		MaxFileMB:  float64(r.cfg.MaxFileSize) / (1 << 20),
	}
	common := r.common("", opts)
	common.Error = rejection
	return r.execute("rules.html", TemplateData{Data: view, Common: common}, opts)
}

func (r *Renderer) Error(message, back string, opts Options) ([]byte, error) {
	if back == "" {
		back = r.links.Home()
	}
	view := ErrorView{Message: message, Back: back}
	return r.execute("error.html", TemplateData{Data: view, Common: r.common("", opts)}, opts)
}

func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("invalid dict call: number of arguments must be even")
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings")
		}
		m[key] = values[i+1]
	}
	return m, nil
}
