package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
)

// ThreadLookup resolves a thread root id to its board. It must return
// errors.ErrParentNotFound when no thread root has that id.
type ThreadLookup interface {
	ThreadBoard(ctx context.Context, id domain.PostId) (domain.BoardId, error)
}

// PostValidator applies the submission rules in a fixed order, the first
// violation wins.
type PostValidator struct {
	cfg      *config.Public
	threads  ThreadLookup
	validate *validator.Validate
}

func NewPostValidator(cfg *config.Public, threads ThreadLookup) *PostValidator {
	return &PostValidator{
		cfg:      cfg,
		threads:  threads,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *PostValidator) Validate(ctx context.Context, form domain.PostForm, now time.Time) (domain.PostCreationData, error) {
	data := domain.PostCreationData{
		Parent:    form.Parent,
		Message:   strings.TrimSpace(form.Message),
		CreatedAt: now,
	}

	if err := v.checkLength(data.Message, v.cfg.MessageMaxLen, internal_errors.ErrEmptyMessage, internal_errors.ErrMessageTooLong); err != nil {
		return domain.PostCreationData{}, err
	}

	if data.IsThread() {
		data.Subject = strings.TrimSpace(form.Subject)
		if err := v.checkLength(data.Subject, v.cfg.SubjectMaxLen, internal_errors.ErrMissingSubject, internal_errors.ErrSubjectTooLong); err != nil {
			return domain.PostCreationData{}, err
		}
		board, err := v.board(form.Board)
		if err != nil {
			return domain.PostCreationData{}, err
		}
		data.Board = board
	} else {
		// replies live on their thread's board whatever the form says
		board, err := v.threads.ThreadBoard(ctx, form.Parent)
		if err != nil {
			if errors.Is(err, internal_errors.ErrParentNotFound) {
				return domain.PostCreationData{}, err
			}
			return domain.PostCreationData{}, &internal_errors.StorageError{Op: "lookup parent", Err: err}
		}
		data.Board = board
	}

	data.Name = v.name(form.Name)
	return data, nil
}

func (v *PostValidator) checkLength(value string, maxLen int, emptyErr, tooLongErr error) error {
	if err := v.validate.Var(value, "required"); err != nil {
		return internal_errors.NewValidationError(emptyErr)
	}
	if err := v.validate.Var(value, fmt.Sprintf("max=%d", maxLen)); err != nil {
		return internal_errors.NewValidationError(tooLongErr)
	}
	return nil
}

func (v *PostValidator) board(submitted string) (domain.BoardId, error) {
	board := strings.TrimSpace(submitted)
	if !v.cfg.MultiBoard || board == "" {
		return v.cfg.DefaultBoard, nil
	}
	if !v.cfg.HasBoard(board) {
		return "", internal_errors.NewValidationError(internal_errors.ErrUnknownBoard)
	}
	return board, nil
}

func (v *PostValidator) name(submitted string) string {
	name := strings.TrimSpace(submitted)
	if name == "" {
		return domain.DefaultName
	}
	if v.cfg.NameMaxLen > 0 && utf8.RuneCountInString(name) > v.cfg.NameMaxLen {
		name = strings.TrimSpace(string([]rune(name)[:v.cfg.NameMaxLen]))
	}
	return name
}
