package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/jmoiron/sqlx"
)

const postColumns = "id, board, parent, name, subject, message, image, thumb, timestamp, bumped"

// CreatePost inserts a post, attaches its media and bumps the parent thread as
// one unit. On any failure the transaction is rolled back, so a failed post
// never shows up. Ids are never handed out twice, even when the transaction
// that took one rolls back.
func (s *Storage) CreatePost(ctx context.Context, data domain.PostCreationData, attach domain.AttachFunc) (domain.PostId, error) {
	if err := data.Check(); err != nil {
		return 0, err
	}

	var id domain.PostId
	if s.driver == DriverSQLite {
		var err error
		if id, err = s.allocateId(ctx); err != nil {
			return 0, classify("allocate post id", err)
		}
	}

	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if !data.IsThread() {
			board, err := s.threadBoard(ctx, tx, data.Parent)
			if err != nil {
				return err
			}
			if board != data.Board {
				return fmt.Errorf("reply board %s does not match thread board %s", data.Board, board)
			}
		}

		var err error
		id, err = s.insertPost(ctx, tx, id, data)
		if err != nil {
			return err
		}

		if attach != nil {
			media, err := attach(id)
			if err != nil {
				return err
			}
			if !media.IsZero() {
				if err := s.setMedia(ctx, tx, id, media); err != nil {
					return err
				}
			}
		}

		if !data.IsThread() {
			return s.bumpThread(ctx, tx, data.Parent, data.CreatedAt.Unix())
		}
		return nil
	})
	if err != nil {
		return 0, classify("create post", err)
	}
	return id, nil
}

// classify keeps the pipeline's typed errors and wraps everything else as a
// storage failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, internal_errors.ErrParentNotFound),
		internal_errors.Is[*internal_errors.UploadError](err),
		internal_errors.Is[*internal_errors.ValidationError](err),
		internal_errors.Is[*internal_errors.StorageError](err):
		return err
	default:
		return &internal_errors.StorageError{Op: op, Err: err}
	}
}

// allocateId reserves the next post id in its own committed transaction.
// SQLite rolls its AUTOINCREMENT counter back together with a failed insert,
// which would give the id, and the media file names derived from it, to the
// next post while the failed request is still cleaning up. The counter never
// falls behind ids already in the table.
func (s *Storage) allocateId(ctx context.Context) (domain.PostId, error) {
	var id domain.PostId
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE post_seq SET value = MAX(value, (SELECT COALESCE(MAX(id), 0) FROM posts)) + 1 WHERE name = 'posts'`)
		if err != nil {
			return fmt.Errorf("failed to advance post id sequence: %w", err)
		}
		if err := tx.GetContext(ctx, &id, `SELECT value FROM post_seq WHERE name = 'posts'`); err != nil {
			return fmt.Errorf("failed to read post id sequence: %w", err)
		}
		return nil
	})
	return id, err
}

// insertPost stores the row under id when one was allocated, otherwise the
// engine assigns it.
func (s *Storage) insertPost(ctx context.Context, q Querier, id domain.PostId, data domain.PostCreationData) (domain.PostId, error) {
	ts := data.CreatedAt.Unix()
	if id != 0 {
		query := `INSERT INTO posts (id, board, parent, name, subject, message, image, thumb, timestamp, bumped)
			VALUES (?, ?, ?, ?, ?, ?, '', '', ?, ?)`
		_, err := q.ExecContext(ctx, q.Rebind(query), id, data.Board, data.Parent, data.Name, data.Subject, data.Message, ts, ts)
		if err != nil {
			return 0, fmt.Errorf("failed to insert post: %w", err)
		}
		return id, nil
	}

	query := `INSERT INTO posts (board, parent, name, subject, message, image, thumb, timestamp, bumped)
		VALUES (?, ?, ?, ?, ?, '', '', ?, ?)`
	args := []interface{}{data.Board, data.Parent, data.Name, data.Subject, data.Message, ts, ts}

	if s.driver == DriverPostgres {
		var id domain.PostId
		if err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert post: %w", err)
		}
		return id, nil
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted post id: %w", err)
	}
	return id, nil
}

func (s *Storage) setMedia(ctx context.Context, q Querier, id domain.PostId, media domain.Media) error {
	_, err := q.ExecContext(ctx, q.Rebind("UPDATE posts SET image = ?, thumb = ? WHERE id = ?"), media.Image, media.Thumb, id)
	if err != nil {
		return fmt.Errorf("failed to attach media to post %d: %w", id, err)
	}
	return nil
}

// bumpThread moves a thread to the top of its board. Existence was checked in
// the same transaction, so no rows-affected check: MySQL reports 0 when the
// value does not change.
func (s *Storage) bumpThread(ctx context.Context, q Querier, threadId domain.PostId, bumped int64) error {
	_, err := q.ExecContext(ctx, q.Rebind("UPDATE posts SET bumped = ? WHERE id = ? AND parent = 0"), bumped, threadId)
	if err != nil {
		return fmt.Errorf("failed to bump thread %d: %w", threadId, err)
	}
	return nil
}

func (s *Storage) threadBoard(ctx context.Context, q Querier, id domain.PostId) (domain.BoardId, error) {
	if id <= 0 {
		return "", internal_errors.ErrParentNotFound
	}
	var board domain.BoardId
	err := q.GetContext(ctx, &board, q.Rebind("SELECT board FROM posts WHERE id = ? AND parent = 0"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", internal_errors.ErrParentNotFound
		}
		return "", fmt.Errorf("failed to look up thread %d: %w", id, err)
	}
	return board, nil
}

// ThreadBoard returns the board of thread root id, or ErrParentNotFound.
func (s *Storage) ThreadBoard(ctx context.Context, id domain.PostId) (domain.BoardId, error) {
	board, err := s.threadBoard(ctx, s.db, id)
	if err != nil {
		return "", classify("thread board", err)
	}
	return board, nil
}

func (s *Storage) GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	var post domain.Post
	err := s.db.GetContext(ctx, &post, s.db.Rebind("SELECT "+postColumns+" FROM posts WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Post not found", StatusCode: http.StatusNotFound}
		}
		return nil, &internal_errors.StorageError{Op: "get post", Err: err}
	}
	return &post, nil
}

func (s *Storage) CountThreads(ctx context.Context, board domain.BoardId) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM posts WHERE board = ? AND parent = 0"), board)
	if err != nil {
		return 0, &internal_errors.StorageError{Op: "count threads", Err: err}
	}
	return count, nil
}

// ListThreads returns one page of a board index: thread roots by last bump,
// ties in creation order.
func (s *Storage) ListThreads(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error) {
	query := `SELECT p.id, p.board, p.parent, p.name, p.subject, p.message, p.image, p.thumb, p.timestamp, p.bumped,
			(SELECT COUNT(*) FROM posts r WHERE r.parent = p.id) AS reply_count
		FROM posts p
		WHERE p.board = ? AND p.parent = 0
		ORDER BY p.bumped DESC, p.id ASC
		LIMIT ? OFFSET ?`
	threads := []domain.ThreadSummary{}
	if err := s.db.SelectContext(ctx, &threads, s.db.Rebind(query), board, limit, offset); err != nil {
		return nil, &internal_errors.StorageError{Op: "list threads", Err: err}
	}
	return threads, nil
}

// ThreadIds lists every thread root of a board.
func (s *Storage) ThreadIds(ctx context.Context, board domain.BoardId) ([]domain.PostId, error) {
	ids := []domain.PostId{}
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind("SELECT id FROM posts WHERE board = ? AND parent = 0 ORDER BY id"), board)
	if err != nil {
		return nil, &internal_errors.StorageError{Op: "list thread ids", Err: err}
	}
	return ids, nil
}

// GetThread loads a thread root with all replies in posting order.
func (s *Storage) GetThread(ctx context.Context, id domain.PostId) (*domain.Thread, error) {
	var op domain.Post
	err := s.db.GetContext(ctx, &op, s.db.Rebind("SELECT "+postColumns+" FROM posts WHERE id = ? AND parent = 0"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Thread not found", StatusCode: http.StatusNotFound}
		}
		return nil, &internal_errors.StorageError{Op: "get thread", Err: err}
	}

	replies := []*domain.Post{}
	err = s.db.SelectContext(ctx, &replies,
		s.db.Rebind("SELECT "+postColumns+" FROM posts WHERE parent = ? ORDER BY timestamp ASC, id ASC"), id)
	if err != nil {
		return nil, &internal_errors.StorageError{Op: "get replies", Err: err}
	}
	return &domain.Thread{Op: &op, Replies: replies}, nil
}

// MediaNames lists every stored upload and thumbnail name of a board.
func (s *Storage) MediaNames(ctx context.Context, board domain.BoardId) ([]string, error) {
	var rows []struct {
		Image string `db:"image"`
		Thumb string `db:"thumb"`
	}
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind("SELECT image, thumb FROM posts WHERE board = ? AND image <> ''"), board)
	if err != nil {
		return nil, &internal_errors.StorageError{Op: "list media", Err: err}
	}
	names := make([]string, 0, 2*len(rows))
	for _, m := range rows {
		names = append(names, m.Image)
		if m.Thumb != "" {
			names = append(names, m.Thumb)
		}
	}
	return names, nil
}
