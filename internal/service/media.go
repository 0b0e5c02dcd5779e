package service

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/domain"
	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/service/utils"
	"github.com/itchan-dev/tinychan/internal/storage/fs"
)

type MediaStorage interface {
	// Save writes data to dir/filename and returns the relative path.
	Save(data io.Reader, dir, filename string) (string, error)
	// Read opens a file for reading given its relative path.
	Read(filePath string) (io.ReadCloser, error)
	// DeleteFile removes a single file.
	DeleteFile(filePath string) error

	MediaDir(board domain.BoardId) string
	ThumbDir(board domain.BoardId) string
}

// MediaService is the upload guard.
type MediaService interface {
	Accept(upload *domain.Upload, board domain.BoardId, id domain.PostId) (domain.Media, error)
	Discard(board domain.BoardId, media domain.Media)
}

type Media struct {
	storage MediaStorage
	cfg     *config.Public
}

func NewMedia(storage MediaStorage, cfg *config.Public) *Media {
	return &Media{storage: storage, cfg: cfg}
}

// Accept checks an upload and stores it as <id>.<ext> in the board's media
// directory. Any rejection leaves no file behind.
func (m *Media) Accept(upload *domain.Upload, board domain.BoardId, id domain.PostId) (domain.Media, error) {
	if !upload.Present() {
		return domain.Media{}, nil
	}
	if upload.Size > m.cfg.MaxFileSize {
		return domain.Media{}, internal_errors.NewUploadError(internal_errors.ErrFileTooLarge,
			fmt.Sprintf("max %.0f MB", float64(m.cfg.MaxFileSize)/(1<<20)))
	}
	ext := upload.Extension()
	if !slices.Contains(m.cfg.AllowedExtensions, ext) {
		return domain.Media{}, internal_errors.NewUploadError(internal_errors.ErrUnsupportedType, "."+ext)
	}

	imagePath, err := m.store(upload, board, id, ext)
	if err != nil {
		return domain.Media{}, err
	}

	if err := m.verifyContent(imagePath, ext); err != nil {
		if delErr := m.storage.DeleteFile(imagePath); delErr != nil {
			logger.Log.Error("failed to delete rejected upload", "component", "upload", "path", imagePath, "error", delErr)
		}
		return domain.Media{}, err
	}

	media := domain.Media{Image: fs.MediaName(id, ext)}
	if m.wantsThumbnail(ext) {
		thumb, err := m.thumbnail(imagePath, board, id)
		if err != nil {
			m.storage.DeleteFile(imagePath)
			return domain.Media{}, err
		}
		media.Thumb = thumb
	}
	uploadsTotal.WithLabelValues(ext).Inc()
	return media, nil
}

func (m *Media) store(upload *domain.Upload, board domain.BoardId, id domain.PostId, ext string) (string, error) {
	if upload.Open == nil {
		return "", internal_errors.NewUploadError(internal_errors.ErrUploadTransport, "no file data")
	}
	src, err := upload.Open()
	if err != nil {
		logger.Log.Warn("failed to open upload", "component", "upload", "post_id", id, "error", err)
		return "", internal_errors.NewUploadError(internal_errors.ErrUploadTransport, "")
	}
	defer src.Close()

	path, err := m.storage.Save(src, m.storage.MediaDir(board), fs.MediaName(id, ext))
	if err != nil {
		return "", &internal_errors.StorageError{Op: "store upload", Err: err}
	}
	return path, nil
}

// verifyContent sniffs the stored bytes instead of trusting the extension.
func (m *Media) verifyContent(path, ext string) error {
	f, err := m.storage.Read(path)
	if err != nil {
		return &internal_errors.StorageError{Op: "read upload", Err: err}
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return &internal_errors.StorageError{Op: "sniff upload", Err: err}
	}
	if !contentMatches(ext, mtype) {
		return internal_errors.NewUploadError(internal_errors.ErrContentMismatch,
			fmt.Sprintf("detected %s for .%s", mtype.String(), ext))
	}
	return nil
}

func contentMatches(ext string, mtype *mimetype.MIME) bool {
	switch ext {
	case "mp4":
		return mtype.Is("video/mp4")
	default:
		for t := mtype; t != nil; t = t.Parent() {
			if strings.HasPrefix(t.String(), "image/") {
				return true
			}
		}
		return false
	}
}

func (m *Media) wantsThumbnail(ext string) bool {
	switch m.cfg.Thumbnails {
	case config.ThumbnailsJPEG:
		return ext == "jpg" || ext == "jpeg"
	case config.ThumbnailsImages:
		return ext != "mp4"
	default:
		return false
	}
}

// thumbnail writes <id>s.jpg. An image that cannot be decoded simply gets no
// thumbnail, the sniffed content is already trusted.
func (m *Media) thumbnail(imagePath string, board domain.BoardId, id domain.PostId) (string, error) {
	f, err := m.storage.Read(imagePath)
	if err != nil {
		return "", &internal_errors.StorageError{Op: "read upload", Err: err}
	}
	data, err := utils.MakeThumbnail(f, m.cfg.ThumbMaxSize, m.cfg.ThumbQuality, utils.DefaultMaxDecodedSize)
	f.Close()
	if err != nil {
		logger.Log.Warn("no thumbnail generated", "component", "upload", "post_id", id, "error", err)
		return "", nil
	}

	if _, err := m.storage.Save(bytes.NewReader(data), m.storage.ThumbDir(board), fs.ThumbName(id)); err != nil {
		return "", &internal_errors.StorageError{Op: "store thumbnail", Err: err}
	}
	return fs.ThumbName(id), nil
}

// Discard removes the files of a post that was not committed.
func (m *Media) Discard(board domain.BoardId, media domain.Media) {
	if media.Image != "" {
		m.remove(m.storage.MediaDir(board) + "/" + media.Image)
	}
	if media.Thumb != "" {
		m.remove(m.storage.ThumbDir(board) + "/" + media.Thumb)
	}
}

func (m *Media) remove(path string) {
	if err := m.storage.DeleteFile(path); err != nil {
		logger.Log.Error("failed to discard media", "component", "upload", "path", path, "error", err)
	}
}
