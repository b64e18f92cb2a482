package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/tribora/internal/adapter/http/middleware"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"github.com/bnema/tribora/internal/service"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

type ContentService interface {
	Upload(ctx context.Context, req service.UploadRequest) (*domain.Content, error)
	CreateTextNote(ctx context.Context, req service.TextNoteRequest) (*domain.Content, error)
	Get(ctx context.Context, orgID, id string) (*domain.Content, error)
	List(ctx context.Context, filter port.ContentFilter) ([]*domain.Content, int, error)
	SoftDelete(ctx context.Context, orgID, id, userID, reason string) error
	Restore(ctx context.Context, orgID, id string) error
	Purge(ctx context.Context, orgID, id string) error
	Retry(ctx context.Context, orgID, id string) (*domain.Content, error)
	Jobs(ctx context.Context, orgID, id string) ([]*domain.Job, error)
	SignedURL(ctx context.Context, orgID, id string, kind domain.StorageKind, ttl time.Duration) (string, error)
}

type SearchService interface {
	Search(ctx context.Context, orgID, query string, limit int) ([]service.SearchResult, error)
}

type Handlers struct {
	contentSvc ContentService
	searchSvc  SearchService
	limits     domain.Limits
	urlTTL     time.Duration
}

func NewHandlers(contentSvc ContentService, searchSvc SearchService, limits domain.Limits, urlTTL time.Duration) *Handlers {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Handlers{
		contentSvc: contentSvc,
		searchSvc:  searchSvc,
		limits:     limits,
		urlTTL:     urlTTL,
	}
}

type jobView struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Chain        string     `json:"chain"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	RunAt        time.Time  `json:"run_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type matchView struct {
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	FrameIndex *int    `json:"frame_index,omitempty"`
}

type searchResultView struct {
	Content *domain.Content `json:"content"`
	Score   float64         `json:"score"`
	Best    matchView       `json:"best"`
	Frame   *matchView      `json:"frame,omitempty"`
}

type listResponse struct {
	Items []*domain.Content `json:"items"`
	Total int               `json:"total"`
}

type noteRequest struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Markdown bool              `json:"markdown"`
	Metadata map[string]string `json:"metadata"`
}

func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, fmt.Errorf("%w: request body", domain.ErrTooLarge))
				return
			}
			writeError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrValidation))
			return
		}
		defer r.MultipartForm.RemoveAll() //nolint:errcheck

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: missing file", domain.ErrValidation))
			return
		}
		defer file.Close() //nolint:errcheck

		metadata, err := parseMetadata(r.FormValue("metadata"))
		if err != nil {
			writeError(w, err)
			return
		}

		content, err := h.contentSvc.Upload(r.Context(), service.UploadRequest{
			OrgID:       id.OrgID,
			UserID:      id.UserID,
			Filename:    header.Filename,
			Size:        header.Size,
			Body:        file,
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Metadata:    metadata,
			ContentType: domain.ContentType(r.FormValue("content_type")),
		})
		if err != nil {
			logger.Warn.Printf("upload of %s rejected: %v", logger.SanitizeForLog(header.Filename), err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, content)
	}
}

func (h *Handlers) CreateNote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		r.Body = http.MaxBytesReader(w, r.Body, h.limits.Text*2+4096)

		var req noteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation))
			return
		}

		content, err := h.contentSvc.CreateTextNote(r.Context(), service.TextNoteRequest{
			OrgID:    id.OrgID,
			UserID:   id.UserID,
			Title:    req.Title,
			Content:  req.Content,
			Markdown: req.Markdown,
			Metadata: req.Metadata,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, content)
	}
}

func (h *Handlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := port.ContentFilter{
			OrgID:       identity(r).OrgID,
			Status:      domain.ContentStatus(q.Get("status")),
			ContentType: domain.ContentType(q.Get("content_type")),
			Query:       q.Get("q"),
		}
		switch q.Get("deleted") {
		case "include":
			filter.IncludeDeleted = true
		case "only":
			filter.OnlyDeleted = true
		}

		var err error
		if filter.Limit, err = queryInt(q.Get("limit"), 50); err != nil {
			writeError(w, err)
			return
		}
		if filter.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
			writeError(w, err)
			return
		}

		items, total, err := h.contentSvc.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []*domain.Content{}
		}
		writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total})
	}
}

func (h *Handlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := h.contentSvc.Get(r.Context(), identity(r).OrgID, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	}
}

// Delete soft-deletes a record, or removes it with its objects when
// purge=true.
func (h *Handlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		contentID := r.PathValue("id")

		var err error
		if r.URL.Query().Get("purge") == "true" {
			err = h.contentSvc.Purge(r.Context(), id.OrgID, contentID)
		} else {
			err = h.contentSvc.SoftDelete(r.Context(), id.OrgID, contentID, id.UserID, r.URL.Query().Get("reason"))
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) Restore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := identity(r).OrgID
		contentID := r.PathValue("id")
		if err := h.contentSvc.Restore(r.Context(), orgID, contentID); err != nil {
			writeError(w, err)
			return
		}
		content, err := h.contentSvc.Get(r.Context(), orgID, contentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	}
}

func (h *Handlers) Retry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := h.contentSvc.Retry(r.Context(), identity(r).OrgID, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, content)
	}
}

func (h *Handlers) Jobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.contentSvc.Jobs(r.Context(), identity(r).OrgID, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, jobView{
				ID:           j.ID,
				Type:         string(j.Type),
				Chain:        string(j.Chain),
				Status:       string(j.Status),
				Attempt:      j.Attempt,
				RunAt:        j.RunAt,
				ErrorMessage: j.ErrorMessage,
				CreatedAt:    j.CreatedAt,
				StartedAt:    j.StartedAt,
				CompletedAt:  j.CompletedAt,
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (h *Handlers) SignedURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := domain.StorageKind(r.URL.Query().Get("kind"))
		switch kind {
		case "":
			kind = domain.StorageRaw
		case domain.StorageRaw, domain.StorageProcessed:
		default:
			writeError(w, fmt.Errorf("%w: unknown kind %q", domain.ErrValidation, kind))
			return
		}

		expiresAt := time.Now().UTC().Add(h.urlTTL)
		url, err := h.contentSvc.SignedURL(r.Context(), identity(r).OrgID, r.PathValue("id"), kind, h.urlTTL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "expires_at": expiresAt})
	}
}

func (h *Handlers) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r.URL.Query().Get("limit"), 10)
		if err != nil {
			writeError(w, err)
			return
		}
		results, err := h.searchSvc.Search(r.Context(), identity(r).OrgID, r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, err)
			return
		}

		views := make([]searchResultView, 0, len(results))
		for _, res := range results {
			v := searchResultView{
				Content: res.Content,
				Score:   res.Score,
				Best:    toMatchView(res.Best),
			}
			if res.Frame != nil {
				fv := toMatchView(*res.Frame)
				v.Frame = &fv
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (h *Handlers) maxUploadBytes() int64 {
	largest := h.limits.Video
	for _, l := range []int64{h.limits.Audio, h.limits.Document, h.limits.Text} {
		if l > largest {
			largest = l
		}
	}
	// Room for the multipart envelope and form fields.
	return largest + 1<<20
}

func toMatchView(m service.SearchMatch) matchView {
	v := matchView{Source: string(m.Source), Text: m.Text, Score: m.Score}
	if m.Source == domain.EmbeddingSourceFrame {
		idx := m.FrameIndex
		v.FrameIndex = &idx
	}
	return v
}

func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

func parseMetadata(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object of strings", domain.ErrValidation)
	}
	return m, nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid number %q", domain.ErrValidation, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrActiveJob):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error.Printf("request failed: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
