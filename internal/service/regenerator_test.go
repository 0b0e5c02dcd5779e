package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/markup"
	"github.com/itchan-dev/tinychan/internal/render"
	"github.com/itchan-dev/tinychan/internal/storage/db"
	"github.com/itchan-dev/tinychan/internal/storage/fs"
	"github.com/itchan-dev/tinychan/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	cases := []struct{ threads, perPage, want int }{
		{0, 5, 1},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{12, 5, 3},
		{15, 5, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PageCount(c.threads, c.perPage), "%d threads", c.threads)
	}
}

// Mocks for the unit tests below
type MockRegenStorage struct {
	CountThreadsFunc func(ctx context.Context, board domain.BoardId) (int, error)
	ListThreadsFunc  func(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error)
	GetThreadFunc    func(ctx context.Context, id domain.PostId) (*domain.Thread, error)
	ThreadIdsFunc    func(ctx context.Context, board domain.BoardId) ([]domain.PostId, error)
}

func (m *MockRegenStorage) CountThreads(ctx context.Context, board domain.BoardId) (int, error) {
	if m.CountThreadsFunc != nil {
		return m.CountThreadsFunc(ctx, board)
	}
	return 0, nil
}

func (m *MockRegenStorage) ListThreads(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error) {
	if m.ListThreadsFunc != nil {
		return m.ListThreadsFunc(ctx, board, limit, offset)
	}
	return nil, nil
}

func (m *MockRegenStorage) GetThread(ctx context.Context, id domain.PostId) (*domain.Thread, error) {
	if m.GetThreadFunc != nil {
		return m.GetThreadFunc(ctx, id)
	}
	return &domain.Thread{Op: &domain.Post{Id: id, Board: "1"}}, nil
}

func (m *MockRegenStorage) ThreadIds(ctx context.Context, board domain.BoardId) ([]domain.PostId, error) {
	if m.ThreadIdsFunc != nil {
		return m.ThreadIdsFunc(ctx, board)
	}
	return nil, nil
}

type MockPageRenderer struct{}

func (MockPageRenderer) BoardIndex(board domain.BoardId, threads []domain.ThreadSummary, page, pages int, opts render.Options) ([]byte, error) {
	return []byte(fmt.Sprintf("board %s page %d/%d threads %d", board, page, pages, len(threads))), nil
}

func (MockPageRenderer) Thread(board domain.BoardId, thread *domain.Thread, opts render.Options) ([]byte, error) {
	return []byte(fmt.Sprintf("thread %d", thread.Op.Id)), nil
}

func (MockPageRenderer) Home(boards []domain.BoardId, opts render.Options) ([]byte, error) {
	return []byte(strings.Join(boards, ",")), nil
}

func newMockRegenerator(t *testing.T, storage *MockRegenStorage) (*Regenerator, *fs.Storage) {
	t.Helper()
	cfg := config.Default()
	cfg.BoardCount = 2
	pages, err := fs.New(t.TempDir(), fs.Layout{MultiBoard: true})
	require.NoError(t, err)
	return NewRegenerator(storage, pages, MockPageRenderer{}, &cfg), pages
}

func readPage(t *testing.T, pages *fs.Storage, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(pages.Root(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRegenerateBoardPagesEmptyBoard(t *testing.T) {
	g, pages := newMockRegenerator(t, &MockRegenStorage{})
	require.NoError(t, g.RegenerateBoardPages(context.Background(), "1"))
	assert.Equal(t, "board 1 page 1/1 threads 0", readPage(t, pages, "1/index.html"))
}

func TestRegenerateBoardPagesOffsets(t *testing.T) {
	var offsets []int
	storage := &MockRegenStorage{
		CountThreadsFunc: func(ctx context.Context, board domain.BoardId) (int, error) { return 11, nil },
		ListThreadsFunc: func(ctx context.Context, board domain.BoardId, limit, offset int) ([]domain.ThreadSummary, error) {
			offsets = append(offsets, offset)
			n := min(limit, 11-offset)
			return make([]domain.ThreadSummary, n), nil
		},
	}
	g, pages := newMockRegenerator(t, storage)
	require.NoError(t, g.RegenerateBoardPages(context.Background(), "2"))

	assert.Equal(t, []int{0, 5, 10}, offsets)
	assert.Equal(t, "board 2 page 1/3 threads 5", readPage(t, pages, "2/index.html"))
	assert.Equal(t, "board 2 page 3/3 threads 1", readPage(t, pages, "2/3.html"))
}

func TestRegenerateErrorsAreRegenerationErrors(t *testing.T) {
	storage := &MockRegenStorage{
		CountThreadsFunc: func(ctx context.Context, board domain.BoardId) (int, error) {
			return 0, errors.New("database is locked")
		},
	}
	g, _ := newMockRegenerator(t, storage)
	err := g.RegenerateBoardPages(context.Background(), "1")
	var regenErr *internal_errors.RegenerationError
	require.ErrorAs(t, err, &regenErr)
	assert.Equal(t, "1", regenErr.Board)
}

func TestRegeneratePassContinuesAfterThreadFailure(t *testing.T) {
	storage := &MockRegenStorage{
		GetThreadFunc: func(ctx context.Context, id domain.PostId) (*domain.Thread, error) {
			if id == 2 {
				return nil, errors.New("gone")
			}
			return &domain.Thread{Op: &domain.Post{Id: id}}, nil
		},
	}
	g, pages := newMockRegenerator(t, storage)
	err := g.RegeneratePass(context.Background(), "1", []domain.PostId{1, 2, 3})
	assert.True(t, internal_errors.Is[*internal_errors.RegenerationError](err))
	assert.Equal(t, "thread 1", readPage(t, pages, "1/res/1.html"))
	assert.Equal(t, "thread 3", readPage(t, pages, "1/res/3.html"))
}

func TestRegenerateAll(t *testing.T) {
	storage := &MockRegenStorage{
		ThreadIdsFunc: func(ctx context.Context, board domain.BoardId) ([]domain.PostId, error) {
			if board == "2" {
				return []domain.PostId{8}, nil
			}
			return nil, nil
		},
	}
	g, pages := newMockRegenerator(t, storage)
	require.NoError(t, g.RegenerateAll(context.Background()))
	assert.Equal(t, "1,2", readPage(t, pages, "index.html"))
	assert.Equal(t, "board 1 page 1/1 threads 0", readPage(t, pages, "1/index.html"))
	assert.Equal(t, "thread 8", readPage(t, pages, "2/res/8.html"))
}

// site wires the real store, files and templates behind the post pipeline.
type site struct {
	cfg   *config.Public
	store *db.Storage
	files *fs.Storage
	posts *Post
}

func newSite(t *testing.T) *site {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.BoardCount = 3

	store, err := db.Connect(ctx, &config.DB{Driver: db.DriverSQLite, Dbname: filepath.Join(t.TempDir(), "posts.db")}, db.DefaultConnectionConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	layout := fs.Layout{MultiBoard: true}
	files, err := fs.New(t.TempDir(), layout)
	require.NoError(t, err)
	renderer, err := render.New(&cfg, render.StaticLinks{Layout: layout}, markup.New())
	require.NoError(t, err)

	regen := NewRegenerator(store, files, renderer, &cfg)
	scheduler := NewScheduler(ctx, regen)
	t.Cleanup(scheduler.Wait)

	posts := NewPost(store, validation.NewPostValidator(&cfg, store), NewMedia(files, &cfg), scheduler, &cfg)
	return &site{cfg: &cfg, store: store, files: files, posts: posts}
}

func TestStaticSiteEveryThreadListedOnce(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()

	var ids []domain.PostId
	for i := 0; i < 12; i++ {
		result, err := s.posts.Submit(ctx, nil, domain.PostForm{
			Board: "1", Subject: fmt.Sprintf("thread %d", i), Message: "op text",
		}, nil)
		require.NoError(t, err)
		ids = append(ids, result.PostId)
	}
	reply, err := s.posts.Submit(ctx, nil, domain.PostForm{Parent: ids[0], Message: "bump"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ids[0], reply.ThreadId)

	var all strings.Builder
	for _, page := range []string{"1/index.html", "1/2.html", "1/3.html"} {
		all.WriteString(readPage(t, s.files, page))
	}
	assert.NoFileExists(t, filepath.Join(s.files.Root(), "1", "4.html"))
	for _, id := range ids {
		assert.Equal(t, 1, strings.Count(all.String(), fmt.Sprintf(`id="t%d"`, id)), "thread %d", id)
	}

	// the bumped thread leads the first page
	first := readPage(t, s.files, "1/index.html")
	assert.Equal(t, strings.Index(first, `id="t`), strings.Index(first, fmt.Sprintf(`id="t%d"`, ids[0])))

	thread := readPage(t, s.files, fmt.Sprintf("1/res/%d.html", ids[0]))
	assert.Contains(t, thread, fmt.Sprintf(`id="p%d"`, reply.PostId))
	assert.Contains(t, thread, "bump")
}

func TestStaticSiteRejectsDisguisedExecutable(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()

	exe := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), make([]byte, 120)...)
	_, err := s.posts.Submit(ctx, nil, domain.PostForm{Board: "1", Subject: "Hello", Message: "World"}, newUpload("setup.png", exe))
	require.Error(t, err)
	assert.True(t, errors.Is(err, internal_errors.ErrContentMismatch))

	count, err := s.store.CountThreads(ctx, "1")
	require.NoError(t, err)
	assert.Zero(t, count, "no row for a rejected upload")
	entries, _ := os.ReadDir(filepath.Join(s.files.Root(), "1", "src"))
	assert.Empty(t, entries, "no file for a rejected upload")
	assert.NoFileExists(t, filepath.Join(s.files.Root(), "1", "index.html"))
}

func TestStaticSiteStoresImage(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()

	result, err := s.posts.Submit(ctx, nil, domain.PostForm{Board: "2", Subject: "Pic", Message: "look"}, newUpload("pic.jpg", jpegBytes(t, 400, 400)))
	require.NoError(t, err)

	post, err := s.store.GetPost(ctx, result.PostId)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d.jpg", result.PostId), post.Image)
	assert.Equal(t, fmt.Sprintf("%ds.jpg", result.PostId), post.Thumb)
	assert.FileExists(t, filepath.Join(s.files.Root(), "2", "src", post.Image))
	assert.FileExists(t, filepath.Join(s.files.Root(), "2", "thumb", post.Thumb))

	index := readPage(t, s.files, "2/index.html")
	assert.Contains(t, index, "/2/thumb/"+post.Thumb)
}
