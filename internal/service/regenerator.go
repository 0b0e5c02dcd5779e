package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/render"
)

type RegenStorage interface {
	CountThreads(ctx context.Context, board domain.BoardId) (int, error)
	ListThreads(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error)
	GetThread(ctx context.Context, id domain.PostId) (*domain.Thread, error)
	ThreadIds(ctx context.Context, board domain.BoardId) ([]domain.PostId, error)
}

type PageStorage interface {
	WritePage(filePath string, content []byte) error
	BoardPage(board domain.BoardId, page int) string
	ThreadPage(board domain.BoardId, id domain.PostId) string
	HomePage() string
}

type PageRenderer interface {
	BoardIndex(board domain.BoardId, threads []domain.ThreadSummary, page, pages int, opts render.Options) ([]byte, error)
	Thread(board domain.BoardId, thread *domain.Thread, opts render.Options) ([]byte, error)
	Home(boards []domain.BoardId, opts render.Options) ([]byte, error)
}

// Regenerator rewrites the static pages of a board from the post store.
// Every call rewrites whole pages, nothing is patched in place.
type Regenerator struct {
	storage  RegenStorage
	pages    PageStorage
	renderer PageRenderer
	cfg      *config.Public
}

func NewRegenerator(storage RegenStorage, pages PageStorage, renderer PageRenderer, cfg *config.Public) *Regenerator {
	return &Regenerator{storage: storage, pages: pages, renderer: renderer, cfg: cfg}
}

// PageCount is ceil(threads/perPage), at least 1 so an empty board still gets
// its index page.
func PageCount(threads, perPage int) int {
	if threads <= 0 {
		return 1
	}
	return (threads + perPage - 1) / perPage
}

// RegenerateBoardPages rewrites every index page of board.
func (g *Regenerator) RegenerateBoardPages(ctx context.Context, board domain.BoardId) error {
	count, err := g.storage.CountThreads(ctx, board)
	if err != nil {
		return &internal_errors.RegenerationError{Board: board, Err: err}
	}
	perPage := g.cfg.ThreadsPerPage
	pages := PageCount(count, perPage)

	for page := 1; page <= pages; page++ {
		threads, err := g.storage.ListThreads(ctx, board, perPage, (page-1)*perPage)
		if err != nil {
			return &internal_errors.RegenerationError{Board: board, Err: err}
		}
		html, err := g.renderer.BoardIndex(board, threads, page, pages, render.Options{})
		if err != nil {
			return &internal_errors.RegenerationError{Board: board, Err: err}
		}
		if err := g.pages.WritePage(g.pages.BoardPage(board, page), html); err != nil {
			return &internal_errors.RegenerationError{Board: board, Err: err}
		}
	}
	return nil
}

// RegenerateThreadPage rewrites the page of one thread.
func (g *Regenerator) RegenerateThreadPage(ctx context.Context, board domain.BoardId, threadId domain.PostId) error {
	thread, err := g.storage.GetThread(ctx, threadId)
	if err != nil {
		return &internal_errors.RegenerationError{Board: board, Err: err}
	}
	html, err := g.renderer.Thread(board, thread, render.Options{})
	if err != nil {
		return &internal_errors.RegenerationError{Board: board, Err: err}
	}
	if err := g.pages.WritePage(g.pages.ThreadPage(board, threadId), html); err != nil {
		return &internal_errors.RegenerationError{Board: board, Err: err}
	}
	return nil
}

// RegenerateHome rewrites the board list. Single-board sites use the board
// index as home page and have nothing to do here.
func (g *Regenerator) RegenerateHome(ctx context.Context) error {
	if !g.cfg.MultiBoard {
		return nil
	}
	html, err := g.renderer.Home(g.cfg.Boards(), render.Options{})
	if err != nil {
		return &internal_errors.RegenerationError{Err: err}
	}
	if err := g.pages.WritePage(g.pages.HomePage(), html); err != nil {
		return &internal_errors.RegenerationError{Err: err}
	}
	return nil
}

// RegeneratePass runs one scheduled pass: the board indexes, then each
// affected thread. A failing thread does not stop the others.
func (g *Regenerator) RegeneratePass(ctx context.Context, board domain.BoardId, threadIds []domain.PostId) error {
	start := time.Now()
	defer func() {
		regenerationDuration.WithLabelValues(board).Observe(time.Since(start).Seconds())
	}()

	if err := g.RegenerateBoardPages(ctx, board); err != nil {
		return err
	}
	var errs []error
	for _, id := range threadIds {
		if err := g.RegenerateThreadPage(ctx, board, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegenerateAll rebuilds the whole site.
func (g *Regenerator) RegenerateAll(ctx context.Context) error {
	if err := g.RegenerateHome(ctx); err != nil {
		return err
	}
	for _, board := range g.cfg.Boards() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := g.storage.ThreadIds(ctx, board)
		if err != nil {
			return &internal_errors.RegenerationError{Board: board, Err: err}
		}
		if err := g.RegeneratePass(ctx, board, ids); err != nil {
			return fmt.Errorf("rebuild board %s: %w", board, err)
		}
		logger.Log.Debug("board rebuilt", "component", "regen", "board", board, "threads", len(ids))
	}
	return nil
}
