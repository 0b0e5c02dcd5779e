package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Storage owns the public root: generated pages and uploaded media.
type Storage struct {
	Layout
	rootPath string
}

func New(rootPath string, layout Layout) (*Storage, error) {
	// Use filepath.Clean to prevent path traversal issues like "media/../"
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}

	return &Storage{Layout: layout, rootPath: p}, nil
}

func (s *Storage) Root() string {
	return s.rootPath
}

// fullPath resolves rel inside the root and refuses anything escaping it.
func (s *Storage) fullPath(rel string) (string, error) {
	full := filepath.Join(s.rootPath, filepath.FromSlash(rel))
	if full != s.rootPath && !strings.HasPrefix(full, s.rootPath+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return full, nil
}

// Save writes data to dir/filename and returns the relative path.
func (s *Storage) Save(data io.Reader, dir, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	relativePath := filepath.ToSlash(filepath.Join(dir, filename))
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create subdirectories: %w", err)
	}

	// O_EXCL: destination names come from fresh post ids, an existing file is a bug
	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, data); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close destination file: %w", err)
	}

	return relativePath, nil
}

// Read opens a stored file.
func (s *Storage) Read(filePath string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// DeleteFile removes a single file. A missing file is not an error.
func (s *Storage) DeleteFile(filePath string) error {
	fullPath, err := s.fullPath(filePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// WritePage replaces a generated page. Readers see either the old or the new
// content, never a partial file.
func (s *Storage) WritePage(filePath string, content []byte) error {
	fullPath, err := s.fullPath(filePath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create page directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp page: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write page %s: %w", filePath, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod page %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close page %s: %w", filePath, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to replace page %s: %w", filePath, err)
	}
	return nil
}

// ListFiles returns the regular files directly inside dir as relative paths.
// A missing directory holds no files.
func (s *Storage) ListFiles(dir string) ([]string, error) {
	fullPath, err := s.fullPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, path.Join(dir, e.Name()))
	}
	return files, nil
}

func (s *Storage) ModTime(filePath string) (time.Time, error) {
	fullPath, err := s.fullPath(filePath)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	return info.ModTime(), nil
}
