package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"container-dispatch/storage"
)

// multipartOverhead is allowed on top of the image bytes for form boundaries and headers
const multipartOverhead = 1 << 20

// maxUploadFiles caps the number of images in one request
const maxUploadFiles = 10

// UploadHandler stores proof-of-delivery images
type UploadHandler struct {
	uploader *storage.Uploader
	maxBytes int64
}

// NewUploadHandler creates a new upload handler. maxBytes bounds a single image.
func NewUploadHandler(uploader *storage.Uploader, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes}
}

// UploadResponse lists the stored image URLs in request order
type UploadResponse struct {
	URLs []string `json:"urls"`
}

// Upload handles POST /api/upload with multipart field "images"
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*maxUploadFiles+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", storage.ErrInvalidUpload, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) > maxUploadFiles {
		writeError(w, r, fmt.Errorf("%w: at most %d images per request", storage.ErrInvalidUpload, maxUploadFiles))
		return
	}

	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", storage.ErrInvalidUpload, err))
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, storage.File{Name: fh.Filename, Size: fh.Size, Reader: f})
	}

	urls, err := h.uploader.Save(r.Context(), files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{URLs: urls})
}
