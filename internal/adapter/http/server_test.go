package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bnema/tribora/internal/adapter/blob/local"
	"github.com/bnema/tribora/internal/adapter/http/middleware"
	"github.com/bnema/tribora/internal/adapter/http/ratelimit"
	"github.com/bnema/tribora/internal/adapter/storage/sqlite"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port/mocks"
	"github.com/bnema/tribora/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var mp3Body = append([]byte("ID3\x04\x00\x00"), bytes.Repeat([]byte{0}, 64)...)

type testAPI struct {
	srv      *Server
	bus      *service.EventBus
	embedder *mocks.EmbedderMock
}

func newTestAPI(t *testing.T, uploadsPerMinute int) *testAPI {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	queue := sqlite.NewJobQueue(store)

	blobs, err := local.New(t.TempDir(), "http://localhost/files", []byte("test-secret"))
	require.NoError(t, err)

	bus := service.NewEventBus()
	embedder := mocks.NewEmbedderMock(t)
	contentSvc := service.NewContentService(store, store, queue, blobs, nil, bus, domain.DefaultLimits())
	searchSvc := service.NewSearchService(store, store, embedder, service.DefaultSearchWeights())

	limiter := ratelimit.New(uploadsPerMinute, time.Minute, time.Minute)
	t.Cleanup(limiter.Close)

	srv := NewServer(
		NewHandlers(contentSvc, searchSvc, domain.DefaultLimits(), time.Minute),
		NewSSEHandler(bus, contentSvc),
		NewFileHandler(blobs),
		limiter,
	)
	return &testAPI{srv: srv, bus: bus, embedder: embedder}
}

func (a *testAPI) do(t *testing.T, req *http.Request, orgID string) *httptest.ResponseRecorder {
	t.Helper()
	if orgID != "" {
		req.Header.Set(middleware.HeaderOrgID, orgID)
		req.Header.Set(middleware.HeaderUserID, "user-1")
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, body []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/content", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func noteRequestBody(t *testing.T, title, content string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]any{"title": title, "content": content, "markdown": true})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewReader(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) upload(t *testing.T, orgID string) domain.Content {
	t.Helper()
	rec := a.do(t, uploadRequest(t, "standup.mp3", mp3Body, map[string]string{
		"title":    "Daily standup",
		"metadata": `{"team":"core"}`,
	}), orgID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Content](t, rec)
}

func TestServer_RequiresIdentity(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_Healthz(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_UploadAndInspect(t *testing.T) {
	api := newTestAPI(t, 0)

	c := api.upload(t, "org-1")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.ContentTypeAudio, c.ContentType)
	assert.Equal(t, "Daily standup", c.Title)
	assert.Equal(t, "core", c.Metadata["team"])
	assert.False(t, c.Status.IsTerminal())

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID, nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, c.ID, decode[domain.Content](t, rec).ID)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID+"/jobs", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]jobView](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(domain.JobStatusPending), jobs[0].Status)
	assert.Equal(t, string(domain.ChainMain), jobs[0].Chain)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
}

func TestServer_UploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     []byte
		fields   map[string]string
		status   int
	}{
		{"unsupported extension", "setup.exe", []byte("MZ\x90\x00"), nil, http.StatusUnsupportedMediaType},
		{"content does not match extension", "clip.mp4", []byte("just some plain text"), nil, http.StatusUnsupportedMediaType},
		{"empty file", "call.mp3", nil, nil, http.StatusBadRequest},
		{"bad metadata", "call.mp3", mp3Body, map[string]string{"metadata": "[1,2]"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, 0)

			rec := api.do(t, uploadRequest(t, tt.filename, tt.body, tt.fields), "org-1")

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec), "error")

			rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "org-1")
			assert.Equal(t, 0, decode[listResponse](t, rec).Total)
		})
	}
}

func TestServer_OrgScoping(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	for _, path := range []string{"/api/content/" + c.ID, "/api/content/" + c.ID + "/jobs", "/api/content/" + c.ID + "/url"} {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, path, nil), "org-2")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "org-2")
	assert.Equal(t, 0, decode[listResponse](t, rec).Total)
}

func TestServer_CreateNote(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(t, noteRequestBody(t, "Retro", "# Retro\n\nShip smaller changes."), "org-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[domain.Content](t, rec)
	assert.Equal(t, domain.ContentTypeText, c.ContentType)
	assert.Equal(t, "md", c.FileType)

	bad := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader("{"))
	rec = api.do(t, bad, "org-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListQuery(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(t, noteRequestBody(t, "Sprint Retro", "# Retro"), "org-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	retro := decode[domain.Content](t, rec)
	rec = api.do(t, noteRequestBody(t, "Planning", "# Planning"), "org-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content?q=retro", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, retro.ID, list.Items[0].ID)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "org-1")
	assert.Equal(t, 2, decode[listResponse](t, rec).Total)
}

func TestServer_DeleteRestoreAndPurge(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	rec := api.do(t, httptest.NewRequest(http.MethodDelete, "/api/content/"+c.ID+"?reason=duplicate", nil), "org-1")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content", nil), "org-1")
	assert.Equal(t, 0, decode[listResponse](t, rec).Total)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content?deleted=only", nil), "org-1")
	deleted := decode[listResponse](t, rec)
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, "duplicate", deleted.Items[0].DeleteReason)

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/content/"+c.ID+"/restore", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[domain.Content](t, rec).DeletedAt)

	rec = api.do(t, httptest.NewRequest(http.MethodDelete, "/api/content/"+c.ID+"?purge=true", nil), "org-1")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID, nil), "org-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RetryWithoutFailureConflicts(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	rec := api.do(t, httptest.NewRequest(http.MethodPost, "/api/content/"+c.ID+"/retry", nil), "org-1")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_SignedURLServesFile(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID+"/url", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	link, err := url.Parse(decode[map[string]string](t, rec)["url"])
	require.NoError(t, err)
	assert.Equal(t, "localhost", link.Host)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, link.RequestURI(), nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mp3Body, rec.Body.Bytes())

	q := link.Query()
	q.Set("sig", strings.Repeat("0", len(q.Get("sig"))))
	rec = api.do(t, httptest.NewRequest(http.MethodGet, link.Path+"?"+q.Encode(), nil), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID+"/url?kind=processed", nil), "org-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID+"/url?kind=thumbnail", nil), "org-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UploadsAreThrottledPerOrg(t *testing.T) {
	api := newTestAPI(t, 2)

	for i := 0; i < 2; i++ {
		rec := api.do(t, noteRequestBody(t, "Note", "body"), "org-1")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(t, noteRequestBody(t, "Note", "body"), "org-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = api.do(t, noteRequestBody(t, "Note", "body"), "org-2")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_Search(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/search", nil), "org-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=roadmap&limit=abc", nil), "org-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api.embedder.EXPECT().Embed(mock.Anything, []string{"roadmap"}).Return([][]float32{{1, 0, 0}}, nil).Once()
	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=roadmap", nil), "org-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_EventsStreamUntilTerminal(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	ts := httptest.NewServer(api.srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/content/"+c.ID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderOrgID, "org-1")
	req.Header.Set(middleware.HeaderUserID, "user-1")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var snapshot []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			break
		}
		snapshot = append(snapshot, strings.TrimRight(line, "\n"))
	}
	require.NotEmpty(t, snapshot)
	assert.Equal(t, "event: snapshot", snapshot[0])
	assert.Contains(t, snapshot[1], c.ID)

	api.bus.Publish(service.Event{Type: service.EventStage, ContentID: c.ID, Stage: "transcribe", Message: "started"})
	api.bus.Publish(service.Event{Type: service.EventStatus, ContentID: c.ID, Status: string(domain.StatusCompleted)})

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	body := string(rest)
	assert.Contains(t, body, "event: stage\n")
	assert.Contains(t, body, "event: status\n")
	assert.Contains(t, body, `"status":"completed"`)
}

func TestServer_EventsNotFound(t *testing.T) {
	api := newTestAPI(t, 0)
	c := api.upload(t, "org-1")

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/missing/events", nil), "org-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/content/"+c.ID+"/events", nil), "org-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
