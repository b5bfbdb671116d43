package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestLocalStorePut(t *testing.T) {
	root := t.TempDir()
	store := LocalStore{Root: root, BaseURL: "http://localhost:8080/uploads/"}

	url, err := store.Put(context.Background(), "job-proofs/a.png", bytes.NewReader(pngPixel), int64(len(pngPixel)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/job-proofs/a.png", url)

	data, err := os.ReadFile(filepath.Join(root, "job-proofs", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)

	f, err := store.Open("job-proofs/a.png")
	require.NoError(t, err)
	f.Close()
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store := LocalStore{Root: t.TempDir()}
	for _, key := range []string{"../etc/passwd", "a/../../b", ""} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, ErrInvalidUpload, key)
	}
}

type memStore struct {
	objects map[string][]byte
	puts    int
	failAt  int // 1-based Put that fails; 0 never fails
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	m.puts++
	if m.puts == m.failAt {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestUploaderSave(t *testing.T) {
	mem := &memStore{objects: map[string][]byte{}}
	u := NewUploader(mem, "/job-proofs/", 1024, nil)

	urls, err := u.Save(context.Background(), []File{
		{Name: "proof.PNG", Size: int64(len(pngPixel)), Reader: bytes.NewReader(pngPixel)},
		{Name: "noext", Size: int64(len(pngPixel)), Reader: bytes.NewReader(pngPixel)},
	})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.True(t, strings.HasPrefix(urls[0], "mem://job-proofs/"))
	assert.True(t, strings.HasSuffix(urls[0], ".png"))
	assert.True(t, strings.HasSuffix(urls[1], ".png"))

	for _, data := range mem.objects {
		assert.Equal(t, pngPixel, data)
	}
}

func TestUploaderRejects(t *testing.T) {
	u := NewUploader(&memStore{objects: map[string][]byte{}}, "job-proofs", 16, nil)

	_, err := u.Save(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = u.Save(context.Background(), []File{{Name: "a.png", Size: int64(len(pngPixel)), Reader: bytes.NewReader(pngPixel)}})
	assert.ErrorIs(t, err, ErrInvalidUpload, "too large")

	_, err = u.Save(context.Background(), []File{{Name: "a.txt", Size: 5, Reader: strings.NewReader("hello")}})
	assert.ErrorIs(t, err, ErrInvalidUpload, "not an image")
}

func TestUploaderChecksEveryFileBeforeStoring(t *testing.T) {
	mem := &memStore{objects: map[string][]byte{}}
	u := NewUploader(mem, "job-proofs", 1024, nil)

	_, err := u.Save(context.Background(), []File{
		{Name: "a.png", Size: int64(len(pngPixel)), Reader: bytes.NewReader(pngPixel)},
		{Name: "b.txt", Size: 5, Reader: strings.NewReader("hello")},
	})
	assert.ErrorIs(t, err, ErrInvalidUpload)
	assert.Zero(t, mem.puts)
	assert.Empty(t, mem.objects)
}

func TestUploaderRemovesStoredFilesOnFailure(t *testing.T) {
	mem := &memStore{objects: map[string][]byte{}, failAt: 3}
	u := NewUploader(mem, "job-proofs", 1024, nil)

	files := make([]File, 3)
	for i := range files {
		files[i] = File{Name: "p.png", Size: int64(len(pngPixel)), Reader: bytes.NewReader(pngPixel)}
	}
	_, err := u.Save(context.Background(), files)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidUpload)
	assert.Equal(t, 3, mem.puts)
	assert.Empty(t, mem.objects)
}

func TestLocalStoreDelete(t *testing.T) {
	root := t.TempDir()
	store := LocalStore{Root: root}
	ctx := context.Background()

	_, err := store.Put(ctx, "job-proofs/a.png", bytes.NewReader(pngPixel), int64(len(pngPixel)), "image/png")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "job-proofs/a.png"))
	_, err = os.Stat(filepath.Join(root, "job-proofs", "a.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "job-proofs/a.png"), "already gone")
	assert.ErrorIs(t, store.Delete(ctx, "../outside.png"), ErrInvalidUpload)
}
