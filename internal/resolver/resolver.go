// Package resolver turns a stored lecture URL into bytes that can be
// re-uploaded to the AI backend, signing the download when the object is
// privately hosted.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/models"
	"github.com/ayush/lecture-notes/backend/internal/store"
)

const (
	// NotesFilename is used when the stored notes text is sent instead of the PDF.
	NotesFilename = "lecture_notes.txt"
	// DefaultFilename is used when the URL has no usable trailing segment.
	DefaultFilename = "lecture.pdf"
)

// LectureFinder looks up a published lecture by its canonical URL.
type LectureFinder interface {
	FindLectureByPDFURL(ctx context.Context, pdfURL string) (*models.Lecture, error)
}

// Signer issues time-limited download URLs for private objects. ObjectKey
// maps a canonical object URL back to the key it was stored under.
type Signer interface {
	ObjectKey(objectURL string) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Blob is a resolved document ready to be attached to a form.
type Blob struct {
	Data        []byte
	Filename    string
	ContentType string
}

// FetchError reports a download that did not succeed. Status is the upstream
// status code, zero when no response was received.
type FetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("fetch failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("fetch failed with status %d", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options tunes outbound fetches.
type Options struct {
	Timeout         time.Duration
	Backoff         time.Duration
	SignedURLExpiry time.Duration
	MaxBytes        int64
	HTTPClient      *http.Client
}

// Resolver fetches lecture documents. signer may be nil when object storage
// is not configured; private objects then fail with a configuration error.
type Resolver struct {
	lectures   LectureFinder
	signer     Signer
	httpClient *http.Client
	opts       Options
	log        *slog.Logger
}

func New(lectures LectureFinder, signer Signer, opts Options, log *slog.Logger) *Resolver {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.SignedURLExpiry <= 0 {
		opts.SignedURLExpiry = 5 * time.Minute
	}
	return &Resolver{lectures: lectures, signer: signer, httpClient: opts.HTTPClient, opts: opts, log: log}
}

// Resolve returns the document behind pdfURL. Stored notes text is preferred
// over the rendered PDF when the lecture has it.
func (r *Resolver) Resolve(ctx context.Context, pdfURL string) (*Blob, error) {
	lecture, err := r.lectures.FindLectureByPDFURL(ctx, pdfURL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		lecture = nil
	case err != nil:
		return nil, fmt.Errorf("lookup lecture: %w", err)
	}

	if lecture != nil && lecture.NotesMarkdown != "" {
		return &Blob{
			Data:        []byte(lecture.NotesMarkdown),
			Filename:    NotesFilename,
			ContentType: "text/plain",
		}, nil
	}

	var (
		data        []byte
		contentType string
	)
	if lecture != nil && lecture.Private {
		if _, err := ParseReference(pdfURL); err != nil {
			return nil, err
		}
		data, contentType, err = r.fetchSigned(ctx, pdfURL)
		if err != nil {
			return nil, err
		}
	} else {
		data, contentType, err = r.fetch(ctx, pdfURL)
		if err != nil {
			return nil, err
		}
	}

	return &Blob{Data: data, Filename: filenameFromURL(pdfURL), ContentType: contentType}, nil
}

// Download fetches a private object through a freshly signed URL.
func (r *Resolver) Download(ctx context.Context, objectURL string) ([]byte, error) {
	data, _, err := r.fetchSigned(ctx, objectURL)
	return data, err
}

func (r *Resolver) fetchSigned(ctx context.Context, objectURL string) ([]byte, string, error) {
	if r.signer == nil {
		return nil, "", apperr.Configuration("object storage is not configured")
	}
	key, err := r.signer.ObjectKey(objectURL)
	if err != nil {
		return nil, "", err
	}
	signed, err := r.signer.PresignGet(ctx, key, r.opts.SignedURLExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("sign %s: %w", key, err)
	}
	return r.fetch(ctx, signed)
}

// fetch GETs rawURL, retrying once on transport errors and 5xx responses.
func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
		attempt     int
	)
	backoff := retry.WithMaxRetries(1, retry.NewConstant(r.opts.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		body, ct, retryable, err := r.get(ctx, rawURL)
		if err != nil {
			if retryable {
				r.log.WarnContext(ctx, "fetch attempt failed", "attempt", attempt, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		data, contentType = body, ct
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", false, ErrInvalidReference.Wrap(err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", true, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fe := &FetchError{Status: resp.StatusCode, Body: string(snippet)}
		return nil, "", resp.StatusCode >= 500, fe
	}

	body := io.Reader(resp.Body)
	if r.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, r.opts.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", true, &FetchError{Status: resp.StatusCode, Err: err}
	}
	if r.opts.MaxBytes > 0 && int64(len(data)) > r.opts.MaxBytes {
		return nil, "", false, &FetchError{Status: resp.StatusCode, Err: errors.New("document exceeds size limit")}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return data, ct, false, nil
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return DefaultFilename
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return DefaultFilename
	}
	return name
}
