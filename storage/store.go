// Package storage keeps uploaded proof images and hands back their URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidUpload is returned for files that are not acceptable images
var ErrInvalidUpload = errors.New("invalid upload")

// ImageStore persists an object under key and returns a URL that serves it
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps objects on the local filesystem below Root
type LocalStore struct {
	Root    string
	BaseURL string // prefix of returned URLs, e.g. http://localhost:8080/uploads
}

// Put writes r to Root/key
func (l LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(l.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(abs)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimRight(l.BaseURL, "/") + "/" + (&url.URL{Path: clean}).EscapedPath(), nil
}

// Delete removes Root/key. A missing object is not an error.
func (l LocalStore) Delete(_ context.Context, key string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Open returns a stored object
func (l LocalStore) Open(key string) (*os.File, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(l.Root, filepath.FromSlash(clean)))
}

// Handler serves stored objects read-only
func (l LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(l.Root))
}

// cleanKey rejects keys that would escape the store root
func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidUpload
	}
	return clean, nil
}
