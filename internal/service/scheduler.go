package service

import (
	"context"
	"sync"

	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/logger"
)

type PassRunner interface {
	RegeneratePass(ctx context.Context, board domain.BoardId, threadIds []domain.PostId) error
}

// Scheduler serialises regeneration per board. At most one pass per board runs
// at a time; requests made while it runs are merged into the next pass, which
// reads the store only after all of them have committed.
type Scheduler struct {
	runner PassRunner
	ctx    context.Context

	mu     sync.Mutex
	boards map[domain.BoardId]*boardQueue
	wg     sync.WaitGroup
}

type boardQueue struct {
	running bool
	pending *pass
}

type pass struct {
	threads map[domain.PostId]struct{}
	done    chan struct{}
	err     error
}

// NewScheduler runs passes on ctx, not on the context of whoever asked, so a
// client going away cannot abort a rewrite halfway.
func NewScheduler(ctx context.Context, runner PassRunner) *Scheduler {
	return &Scheduler{
		runner: runner,
		ctx:    ctx,
		boards: make(map[domain.BoardId]*boardQueue),
	}
}

// Request schedules board (and threadId, when non-zero) for regeneration and
// waits for the pass that covers it.
func (s *Scheduler) Request(ctx context.Context, board domain.BoardId, threadId domain.PostId) error {
	s.mu.Lock()
	q, ok := s.boards[board]
	if !ok {
		q = &boardQueue{}
		s.boards[board] = q
	}
	if q.pending == nil {
		q.pending = &pass{threads: make(map[domain.PostId]struct{}), done: make(chan struct{})}
	} else {
		regenerationCoalescedTotal.Inc()
	}
	p := q.pending
	if threadId != 0 {
		p.threads[threadId] = struct{}{}
	}
	if !q.running {
		q.running = true
		s.wg.Add(1)
		go s.run(board, q)
	}
	s.mu.Unlock()

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(board domain.BoardId, q *boardQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		p := q.pending
		if p == nil {
			q.running = false
			s.mu.Unlock()
			return
		}
		q.pending = nil
		s.mu.Unlock()

		ids := make([]domain.PostId, 0, len(p.threads))
		for id := range p.threads {
			ids = append(ids, id)
		}
		p.err = s.runner.RegeneratePass(s.ctx, board, ids)
		if p.err != nil {
			regenerationFailuresTotal.Inc()
			logger.Log.Error("regeneration failed", "component", "regen", "board", board, "error", p.err)
		}
		close(p.done)
	}
}

// Wait blocks until every started pass has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
