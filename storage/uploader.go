package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// File is one uploaded image
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Uploader validates images and stores them under a key prefix
type Uploader struct {
	store    ImageStore
	prefix   string
	maxBytes int64
	logger   *slog.Logger
}

// NewUploader creates an uploader
func NewUploader(store ImageStore, prefix string, maxBytes int64, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{store: store, prefix: strings.Trim(prefix, "/"), maxBytes: maxBytes, logger: logger}
}

// Save stores every file and returns their URLs in input order.
// Files must be images no larger than the configured limit. Every file is
// checked before the first one is stored, and a failed batch removes what it stored.
func (u *Uploader) Save(ctx context.Context, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidUpload)
	}

	prepared := make([]sniffedFile, 0, len(files))
	for _, f := range files {
		p, err := u.sniff(f)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}

	urls := make([]string, 0, len(prepared))
	stored := make([]string, 0, len(prepared))
	for _, p := range prepared {
		key := u.key(p.Name, p.contentType)
		url, err := u.store.Put(ctx, key, p.body, p.Size, p.contentType)
		if err != nil {
			u.discard(ctx, stored)
			return nil, fmt.Errorf("failed to store %s: %w", p.Name, err)
		}
		u.logger.Info("image stored", "key", key, "bytes", p.Size)
		stored = append(stored, key)
		urls = append(urls, url)
	}
	return urls, nil
}

// sniffedFile is a File whose leading bytes were read to detect its type
type sniffedFile struct {
	File
	body        io.Reader
	contentType string
}

func (u *Uploader) sniff(f File) (sniffedFile, error) {
	if u.maxBytes > 0 && f.Size > u.maxBytes {
		return sniffedFile{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidUpload, f.Name, u.maxBytes)
	}
	br := bufio.NewReaderSize(f.Reader, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return sniffedFile{}, fmt.Errorf("%w: %s is %s, not an image", ErrInvalidUpload, f.Name, contentType)
	}
	return sniffedFile{File: f, body: br, contentType: contentType}, nil
}

// discard removes keys stored by a batch that did not complete
func (u *Uploader) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := u.store.Delete(ctx, key); err != nil {
			u.logger.Warn("failed to remove image of failed upload", "key", key, "error", err)
			continue
		}
		u.logger.Info("image removed after failed upload", "key", key)
	}
}

// key builds prefix/<uuid><ext>, taking the extension from the file name or the sniffed type
func (u *Uploader) key(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	key := uuid.New().String() + ext
	if u.prefix == "" {
		return key
	}
	return u.prefix + "/" + key
}
