package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ayush/lecture-notes/backend/internal/httpx"
	"github.com/ayush/lecture-notes/backend/internal/resolver"
)

const (
	fileField      = "file"
	referenceField = "pdfUrl"
)

// BlobResolver turns a reference field into an attachable document.
type BlobResolver interface {
	Resolve(ctx context.Context, pdfURL string) (*resolver.Blob, error)
}

// Poster sends a form downstream.
type Poster interface {
	Post(ctx context.Context, path string, form *Form) (*Response, error)
}

// Handler exposes the relay endpoints.
type Handler struct {
	client    Poster
	resolver  BlobResolver
	chatPath  string
	notesPath string
	maxBytes  int64
	log       *slog.Logger
}

func NewHandler(client Poster, resolver BlobResolver, chatPath, notesPath string, maxBytes int64, log *slog.Logger) *Handler {
	return &Handler{
		client:    client,
		resolver:  resolver,
		chatPath:  chatPath,
		notesPath: notesPath,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// ChatWithNotes relays a question about a lecture to the AI backend.
func (h *Handler) ChatWithNotes(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.chatPath, "Failed to reach AI service")
}

// GenerateNotes relays lecture text and slides for note generation.
func (h *Handler) GenerateNotes(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.notesPath, "Failed to reach lecture service")
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, path, unreachable string) {
	ctx := r.Context()
	log := h.log.With("route", r.URL.Path, "downstream", path)

	form, pdfURL, err := h.readForm(w, r)
	if err != nil {
		log.WarnContext(ctx, "rejecting form", "err", err)
		httpx.WriteJSON(w, http.StatusBadRequest, Envelope{Status: http.StatusBadRequest, Message: "Invalid form data"})
		return
	}

	if !form.HasFile(fileField) && pdfURL != "" {
		blob, err := h.resolver.Resolve(ctx, pdfURL)
		if err != nil {
			log.WarnContext(ctx, "resolve reference failed", "pdf_url", pdfURL, "err", err)
			httpx.WriteJSON(w, http.StatusBadRequest, Envelope{Status: http.StatusBadRequest, Message: "Unable to fetch lecture PDF"})
			return
		}
		form.Files = append(form.Files, File{
			Field:       fileField,
			Filename:    blob.Filename,
			ContentType: blob.ContentType,
			Data:        blob.Data,
		})
	}

	if !form.HasFile(fileField) {
		httpx.WriteJSON(w, http.StatusBadRequest, Envelope{Status: http.StatusBadRequest, Message: "File or pdfUrl required"})
		return
	}

	resp, err := h.client.Post(ctx, path, form)
	if err != nil {
		log.ErrorContext(ctx, "relay failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, Envelope{Status: http.StatusInternalServerError, Message: unreachable})
		return
	}
	if resp.Status >= 400 {
		log.WarnContext(ctx, "downstream returned error", "status", resp.Status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	w.Write(Normalize(resp))
}

// readForm copies every string field and binary field of the inbound
// multipart form in arrival order. The reference field is returned
// separately and not copied.
func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (*Form, string, error) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("parse multipart: %w", err)
	}

	form := &Form{}
	var pdfURL string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("parse multipart: %w", err)
		}
		name := p.FormName()
		data, err := io.ReadAll(p)
		p.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
		if name == "" {
			continue
		}

		if p.FileName() == "" {
			if name == referenceField {
				if pdfURL == "" {
					pdfURL = string(data)
				}
				continue
			}
			form.Fields = append(form.Fields, Field{Name: name, Value: string(data)})
			continue
		}
		// Browsers submit an empty part for an untouched file input.
		if len(data) == 0 {
			continue
		}
		form.Files = append(form.Files, File{
			Field:       name,
			Filename:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return form, pdfURL, nil
}
