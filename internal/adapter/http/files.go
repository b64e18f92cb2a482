package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/bnema/tribora/internal/infrastructure/logger"
)

// SignedObjects serves objects behind signed URLs issued by the local blob
// backend.
type SignedObjects interface {
	VerifySignedURL(objectPath string, expires int64, sig string) error
	Download(ctx context.Context, objectPath string) (io.ReadCloser, error)
}

type FileHandler struct {
	objects SignedObjects
}

func NewFileHandler(objects SignedObjects) *FileHandler {
	return &FileHandler{objects: objects}
}

func (h *FileHandler) Serve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objectPath := r.PathValue("path")
		q := r.URL.Query()

		expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid link", http.StatusForbidden)
			return
		}
		if err := h.objects.VerifySignedURL(objectPath, expires, q.Get("sig")); err != nil {
			logger.Warn.Printf("signed url rejected for %s: %v", logger.SanitizeForLog(objectPath), err)
			http.Error(w, "Invalid or expired link", http.StatusForbidden)
			return
		}

		rc, err := h.objects.Download(r.Context(), objectPath)
		if err != nil {
			writeError(w, err)
			return
		}
		defer rc.Close() //nolint:errcheck

		contentType := mime.TypeByExtension(path.Ext(objectPath))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "private, no-store")

		// Files support range requests, which media players rely on.
		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, path.Base(objectPath), time.Time{}, rs)
			return
		}
		if _, err := io.Copy(w, rc); err != nil {
			logger.Error.Printf("stream %s: %v", logger.SanitizeForLog(objectPath), err)
		}
	}
}
