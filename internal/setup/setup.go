package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/handler"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/markup"
	"github.com/itchan-dev/tinychan/internal/render"
	"github.com/itchan-dev/tinychan/internal/service"
	"github.com/itchan-dev/tinychan/internal/session"
	"github.com/itchan-dev/tinychan/internal/storage/db"
	"github.com/itchan-dev/tinychan/internal/storage/fs"
	"github.com/itchan-dev/tinychan/internal/validation"
)

const sessionCleanupInterval = 10 * time.Minute

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config      *config.Config
	Storage     *db.Storage
	Files       *fs.Storage
	Sessions    *session.Store
	Regenerator *service.Regenerator
	// Scheduler is nil on dynamic sites.
	Scheduler *service.Scheduler
	Handler   *handler.Handler

	cancel context.CancelFunc
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store, err := db.Connect(ctx, &cfg.Private.DB, db.DefaultConnectionConfig())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	public := &cfg.Public
	layout := fs.Layout{MultiBoard: public.MultiBoard}
	files, err := fs.New(public.PublicRoot, layout)
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("failed to initialize public root: %w", err)
	}

	renderer, err := render.New(public, render.LinksFor(public), markup.New())
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	regenerator := service.NewRegenerator(store, files, renderer, public)
	var scheduler *service.Scheduler
	var regen service.RegenerationScheduler
	if public.Static() {
		// passes outlive the request that asked for them
		scheduler = service.NewScheduler(context.WithoutCancel(ctx), regenerator)
		regen = scheduler
	}

	sessions := session.NewStore(public.SessionTTL, public.MaxSessions)
	sessions.StartBackgroundCleanup(ctx, sessionCleanupInterval)

	if public.MediaGCInterval > 0 {
		gc := service.NewMediaGarbageCollector(store, files, public.Boards(), public.MediaGCGrace)
		gc.StartBackgroundCleanup(ctx, public.MediaGCInterval)
	}

	media := service.NewMedia(files, public)
	posts := service.NewPost(store, validation.NewPostValidator(public, store), media, regen, public)
	h := handler.New(posts, store, store, renderer, public)

	logger.Log.Info("dependencies initialized",
		"mode", public.Mode,
		"multi_board", public.MultiBoard,
		"public_root", files.Root(),
		"csrf", public.CSRF())

	return &Dependencies{
		Config:      cfg,
		Storage:     store,
		Files:       files,
		Sessions:    sessions,
		Regenerator: regenerator,
		Scheduler:   scheduler,
		Handler:     h,
		cancel:      cancel,
	}, nil
}

// Cleanup stops background work, waits for running regeneration passes and
// closes the database.
func (d *Dependencies) Cleanup() {
	d.cancel()
	if d.Scheduler != nil {
		d.Scheduler.Wait()
	}
	if err := d.Storage.Close(); err != nil {
		logger.Log.Error("failed to close database", "error", err)
	}
}
