package lectures

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/logging"
	"github.com/ayush/lecture-notes/backend/internal/models"
	"github.com/ayush/lecture-notes/backend/internal/resolver"
	"github.com/ayush/lecture-notes/backend/internal/store"
)

type fakeLectures struct {
	inserted []models.Lecture
	list     []models.Lecture
	err      error
}

func (f *fakeLectures) InsertLecture(_ context.Context, l *models.Lecture) error {
	if f.err != nil {
		return f.err
	}
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.inserted = append(f.inserted, *l)
	return nil
}

func (f *fakeLectures) ListLectures(context.Context) ([]models.Lecture, error) {
	return f.list, f.err
}

type fakeObjects struct {
	keys []string
	data map[string][]byte
	err  error
}

func (f *fakeObjects) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.keys = append(f.keys, key)
	f.data[key] = data
	return nil
}

func (f *fakeObjects) ObjectURL(key string) string {
	return "http://minio:9000/lecture-notes/" + key
}

type fakeDownloader struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeDownloader) Download(_ context.Context, objectURL string) ([]byte, error) {
	f.urls = append(f.urls, objectURL)
	return f.data, f.err
}

func newHandler(l LectureStore, o ObjectStore, d Downloader) *Handler {
	h := NewHandler(l, o, d, true, 1<<20, logging.Discard())
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return h
}

func publishRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		fw.Write(content)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/lectures", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestList(t *testing.T) {
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	id := primitive.NewObjectID()
	store := &fakeLectures{list: []models.Lecture{{
		ID: id, Title: "Week 1", PDFURL: "http://x/a.pdf", NotesMarkdown: "secret notes", Private: true, CreatedAt: created,
	}}}
	rec := httptest.NewRecorder()
	newHandler(store, nil, nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/lectures", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"lectures":[{"_id":"`+id.Hex()+`","title":"Week 1","pdfUrl":"http://x/a.pdf","createdAt":"2026-02-01T10:00:00Z"}]}`, rec.Body.String())
}

func TestList_EmptyAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&fakeLectures{}, nil, nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/lectures", nil))
	assert.JSONEq(t, `{"success":true,"lectures":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	newHandler(&fakeLectures{err: errors.New("down")}, nil, nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/lectures", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["success"])
}

func TestPublish(t *testing.T) {
	store := &fakeLectures{}
	objects := &fakeObjects{}
	rec := httptest.NewRecorder()
	newHandler(store, objects, nil).Publish(rec, publishRequest(t,
		map[string]string{"title": "Thermodynamics", "notes": "# Heat"}, "Week 3 Notes.pdf", []byte("%PDF-1.7")))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, objects.keys, 1)
	key := objects.keys[0]
	assert.Regexp(t, regexp.MustCompile(`^raw/upload/v1700000000/lecture-notes/week-3-notes_[0-9a-f]{12}\.pdf$`), key)
	assert.Equal(t, []byte("%PDF-1.7"), objects.data[key])

	require.Len(t, store.inserted, 1)
	l := store.inserted[0]
	assert.Equal(t, "Thermodynamics", l.Title)
	assert.Equal(t, "http://minio:9000/lecture-notes/"+key, l.PDFURL)
	assert.Equal(t, "# Heat", l.NotesMarkdown)
	assert.True(t, l.Private)

	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	lecture := body["lecture"].(map[string]interface{})
	assert.Equal(t, "Thermodynamics", lecture["title"])
	assert.Equal(t, l.PDFURL, lecture["pdfUrl"])

	ref, err := resolver.ParseReference(l.PDFURL)
	require.NoError(t, err, "published URLs must parse as references")
	assert.Equal(t, "raw", ref.ResourceType)
	assert.Equal(t, strings.TrimSuffix(strings.TrimPrefix(key, "raw/upload/v1700000000/"), ".pdf"), ref.PublicID)
}

func TestPublish_DefaultTitle(t *testing.T) {
	store := &fakeLectures{}
	rec := httptest.NewRecorder()
	newHandler(store, &fakeObjects{}, nil).Publish(rec, publishRequest(t, nil, "a.pdf", []byte("x")))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Lecture Notes", store.inserted[0].Title)
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		name     string
		objects  ObjectStore
		store    *fakeLectures
		filename string
		content  []byte
		want     int
		message  string
	}{
		{"missing file", &fakeObjects{}, &fakeLectures{}, "", nil, http.StatusBadRequest, "PDF file is required"},
		{"storage not configured", nil, &fakeLectures{}, "a.pdf", []byte("x"), http.StatusInternalServerError, "Object storage credentials missing"},
		{"empty file", &fakeObjects{}, &fakeLectures{}, "a.pdf", []byte{}, http.StatusBadRequest, "Generated PDF is empty. Please regenerate notes."},
		{"upload error", &fakeObjects{err: errors.New("denied")}, &fakeLectures{}, "a.pdf", []byte("x"), http.StatusInternalServerError, "Failed to upload lecture"},
		{"insert error", &fakeObjects{}, &fakeLectures{err: errors.New("down")}, "a.pdf", []byte("x"), http.StatusInternalServerError, "Failed to upload lecture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandler(tt.store, tt.objects, nil).Publish(rec, publishRequest(t, map[string]string{"title": "T"}, tt.filename, tt.content))

			assert.Equal(t, tt.want, rec.Code)
			body := decodeMap(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestDownload(t *testing.T) {
	dl := &fakeDownloader{data: []byte("%PDF")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/lectures/download?pdfUrl=http%3A%2F%2Fminio%3A9000%2Flecture-notes%2Fraw%2Fupload%2Fv123%2Fnotes%2Ffile.pdf", nil)
	newHandler(&fakeLectures{}, nil, dl).Download(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="file.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF", rec.Body.String())
	assert.Equal(t, []string{"http://minio:9000/lecture-notes/raw/upload/v123/notes/file.pdf"}, dl.urls)
}

func TestDownload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		dl      *fakeDownloader
		want    int
		message string
	}{
		{"missing", "", &fakeDownloader{}, http.StatusBadRequest, "pdfUrl is required"},
		{"invalid", "?pdfUrl=http://x/cloud/raw/file.pdf", &fakeDownloader{}, http.StatusBadRequest, "Invalid storage URL"},
		{"fetch failed", "?pdfUrl=http://x/c/raw/upload/v1/a.pdf", &fakeDownloader{err: &resolver.FetchError{Status: 403, Body: "AccessDenied"}}, http.StatusBadGateway, "Download failed: AccessDenied"},
		{"fetch failed without body", "?pdfUrl=http://x/c/raw/upload/v1/a.pdf", &fakeDownloader{err: &resolver.FetchError{Status: 404}}, http.StatusBadGateway, "Download failed: Not Found"},
		{"outside the bucket", "?pdfUrl=http://x/c/raw/upload/v1/a.pdf", &fakeDownloader{err: store.ErrForeignObject}, http.StatusBadRequest, "Invalid storage URL"},
		{"not configured", "?pdfUrl=http://x/c/raw/upload/v1/a.pdf", &fakeDownloader{err: apperr.Configuration("object storage is not configured")}, http.StatusInternalServerError, "object storage is not configured"},
		{"unknown", "?pdfUrl=http://x/c/raw/upload/v1/a.pdf", &fakeDownloader{err: errors.New("boom")}, http.StatusInternalServerError, "Server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandler(&fakeLectures{}, nil, tt.dl).Download(rec, httptest.NewRequest(http.MethodGet, "/api/lectures/download"+tt.query, nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.message, decodeMap(t, rec)["message"])
		})
	}
}
