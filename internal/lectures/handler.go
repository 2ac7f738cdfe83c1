package lectures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/httpx"
	"github.com/ayush/lecture-notes/backend/internal/models"
	"github.com/ayush/lecture-notes/backend/internal/resolver"
)

const (
	defaultTitle = "Lecture Notes"
	folder       = "lecture-notes"
	formMemory   = 8 << 20
)

// LectureStore defines the interface for lecture persistence.
type LectureStore interface {
	InsertLecture(ctx context.Context, l *models.Lecture) error
	ListLectures(ctx context.Context) ([]models.Lecture, error)
}

// ObjectStore defines the interface for PDF storage.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectURL(key string) string
}

// Downloader fetches a private object through a signed URL.
type Downloader interface {
	Download(ctx context.Context, objectURL string) ([]byte, error)
}

// Handler holds lecture HTTP handlers. objects is nil when object storage
// credentials are not configured.
type Handler struct {
	lectures   LectureStore
	objects    ObjectStore
	downloader Downloader
	private    bool
	maxBytes   int64
	now        func() time.Time
	log        *slog.Logger
}

func NewHandler(lectures LectureStore, objects ObjectStore, downloader Downloader, private bool, maxBytes int64, log *slog.Logger) *Handler {
	return &Handler{
		lectures:   lectures,
		objects:    objects,
		downloader: downloader,
		private:    private,
		maxBytes:   maxBytes,
		now:        time.Now,
		log:        log,
	}
}

type listResponse struct {
	Success  bool             `json:"success"`
	Lectures []models.Lecture `json:"lectures"`
}

type lectureResponse struct {
	Success bool            `json:"success"`
	Lecture *models.Lecture `json:"lecture"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		h.log.ErrorContext(r.Context(), msg, "path", r.URL.Path, "err", err)
	}
	httpx.WriteJSON(w, status, errorResponse{Message: msg})
}

// List returns every published lecture, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	lectures, err := h.lectures.ListLectures(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to list lectures", err)
		return
	}
	if lectures == nil {
		lectures = []models.Lecture{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Lectures: lectures})
}

// Publish uploads a lecture PDF and records it in the catalog.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid form data", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = defaultTitle
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "PDF file is required", nil)
		return
	}
	defer file.Close()

	if h.objects == nil {
		h.fail(w, r, http.StatusInternalServerError, "Object storage credentials missing",
			apperr.Configuration("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY must be set"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Failed to read file", nil)
		return
	}
	if len(data) == 0 {
		h.fail(w, r, http.StatusBadRequest, "Generated PDF is empty. Please regenerate notes.", nil)
		return
	}

	key := h.objectKey(header.Filename)
	if err := h.objects.Upload(ctx, key, data, "application/pdf"); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to upload lecture", err)
		return
	}

	lecture := &models.Lecture{
		Title:         title,
		PDFURL:        h.objects.ObjectURL(key),
		NotesMarkdown: r.FormValue("notes"),
		Private:       h.private,
	}
	if err := h.lectures.InsertLecture(ctx, lecture); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to upload lecture", err)
		return
	}

	h.log.InfoContext(ctx, "lecture published", "id", lecture.ID.Hex(), "key", key)
	httpx.WriteJSON(w, http.StatusCreated, lectureResponse{Success: true, Lecture: lecture})
}

// objectKey lays keys out as raw/upload/v<unix>/lecture-notes/<name>_<rand>.pdf
// so that object URLs parse as references.
func (h *Handler) objectKey(filename string) string {
	stem := slug.Make(strings.TrimSuffix(filename, path.Ext(filename)))
	if stem == "" {
		stem = "lecture"
	}
	return fmt.Sprintf("raw/upload/v%d/%s/%s_%s.pdf",
		h.now().Unix(), folder, stem, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// Download streams a stored lecture PDF as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	pdfURL := r.URL.Query().Get("pdfUrl")
	if pdfURL == "" {
		h.fail(w, r, http.StatusBadRequest, "pdfUrl is required", nil)
		return
	}

	ref, err := resolver.ParseReference(pdfURL)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid storage URL", nil)
		return
	}

	data, err := h.downloader.Download(r.Context(), pdfURL)
	if err != nil {
		var fe *resolver.FetchError
		switch {
		case errors.As(err, &fe):
			detail := fe.Body
			if detail == "" {
				detail = http.StatusText(fe.Status)
			}
			if detail == "" {
				detail = "no response"
			}
			h.log.WarnContext(r.Context(), "download failed", "pdf_url", pdfURL, "err", err)
			httpx.WriteJSON(w, http.StatusBadGateway, errorResponse{Message: "Download failed: " + detail})
		default:
			h.fail(w, r, apperr.HTTPStatus(err), apperr.PublicMessage(err, "Server error"), err)
		}
		return
	}

	name := path.Base(ref.PublicID)
	if name == "" || name == "." || name == "/" {
		name = "lecture"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
