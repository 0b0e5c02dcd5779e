package service

import (
	"context"
	"errors"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/logger"
)

type PostService interface {
	Submit(ctx context.Context, sess *domain.Session, form domain.PostForm, upload *domain.Upload) (domain.SubmitResult, error)
}

type PostStorage interface {
	CreatePost(ctx context.Context, data domain.PostCreationData, attach domain.AttachFunc) (domain.PostId, error)
}

type PostValidator interface {
	Validate(ctx context.Context, form domain.PostForm, now time.Time) (domain.PostCreationData, error)
}

// RegenerationScheduler is nil on dynamic sites.
type RegenerationScheduler interface {
	Request(ctx context.Context, board domain.BoardId, threadId domain.PostId) error
}

type Post struct {
	storage   PostStorage
	validator PostValidator
	media     MediaService
	regen     RegenerationScheduler
	cfg       *config.Public
	now       func() time.Time
}

func NewPost(storage PostStorage, validator PostValidator, media MediaService, regen RegenerationScheduler, cfg *config.Public) *Post {
	return &Post{
		storage:   storage,
		validator: validator,
		media:     media,
		regen:     regen,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit runs the whole post pipeline: cooldown, validation, the store
// transaction with the upload attached, then regeneration of the affected
// pages. A regeneration error is returned together with a valid result: the
// post is committed by then.
func (p *Post) Submit(ctx context.Context, sess *domain.Session, form domain.PostForm, upload *domain.Upload) (domain.SubmitResult, error) {
	now := p.now()

	var release func()
	if sess != nil {
		var ok bool
		release, ok = sess.ReservePost(now, p.cfg.PostCooldown)
		if !ok {
			return domain.SubmitResult{}, p.reject(internal_errors.ErrRateLimited)
		}
	}
	accepted := false
	defer func() {
		if !accepted && release != nil {
			release()
		}
	}()

	data, err := p.validator.Validate(ctx, form, now)
	if err != nil {
		return domain.SubmitResult{}, p.reject(err)
	}
	if !data.IsThread() && !p.cfg.ReplyUploads {
		upload = nil
	}

	var stored domain.Media
	id, err := p.storage.CreatePost(ctx, data, func(id domain.PostId) (domain.Media, error) {
		media, err := p.media.Accept(upload, data.Board, id)
		stored = media
		return media, err
	})
	if err != nil {
		// the row is gone, the files must follow
		if !stored.IsZero() {
			p.media.Discard(data.Board, stored)
		}
		return domain.SubmitResult{}, p.reject(err)
	}
	accepted = true

	result := domain.SubmitResult{
		PostId:   id,
		Board:    data.Board,
		ThreadId: id,
		IsThread: data.IsThread(),
	}
	if !data.IsThread() {
		result.ThreadId = data.Parent
	}
	postsCreatedTotal.WithLabelValues(postKind(result.IsThread)).Inc()
	logger.Log.Info("post created", "component", "post", "post_id", id, "board", data.Board, "thread_id", result.ThreadId)

	if p.regen != nil {
		if err := p.regen.Request(ctx, result.Board, result.ThreadId); err != nil {
			if !internal_errors.Is[*internal_errors.RegenerationError](err) {
				err = &internal_errors.RegenerationError{Board: result.Board, Err: err}
			}
			return result, err
		}
	}
	return result, nil
}

func (p *Post) reject(err error) error {
	postRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
	var storageErr *internal_errors.StorageError
	if errors.As(err, &storageErr) {
		logger.Log.Error("post failed", "component", "post", "error", err)
	} else {
		logger.Log.Debug("post rejected", "component", "post", "error", err)
	}
	return err
}
