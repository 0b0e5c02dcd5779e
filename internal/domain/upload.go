package domain

import (
	"io"
	"path/filepath"
	"strings"
)

// Upload describes a file received with a post. A nil *Upload means no file
// field was sent at all.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Present reports whether the client actually sent something to process.
func (u *Upload) Present() bool {
	return u != nil && u.Filename != ""
}

// Extension is the lowercased suffix of the original filename without the dot.
func (u *Upload) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
}
