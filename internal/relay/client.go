// Package relay forwards multipart form submissions to the AI backend and
// normalizes its responses.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Field is a plain string form field.
type Field struct {
	Name  string
	Value string
}

// File is a binary form field.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Form is an outbound multipart submission. Field order is preserved.
type Form struct {
	Fields []Field
	Files  []File
}

// HasFile reports whether the form carries a binary field named field.
func (f *Form) HasFile(field string) bool {
	for _, file := range f.Files {
		if file.Field == field {
			return true
		}
	}
	return false
}

// Encode writes the form as multipart/form-data and returns the body and its
// content type.
func (f *Form) Encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range f.Fields {
		if err := mw.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}
	for _, file := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(file.Field), escapeQuotes(file.Filename)))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", file.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Response is a downstream reply.
type Response struct {
	Status int
	Body   []byte
}

// Client posts forms to the AI backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client whose every call is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Post sends form to path once. Non-2xx statuses are not errors; the caller
// decides how to present them.
func (c *Client) Post(ctx context.Context, path string, form *Form) (*Response, error) {
	body, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ai-service %s: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai-service %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ai-service %s: read body: %w", path, err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// Envelope is the error shape returned by the relay endpoints.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Normalize returns the body to send back for a downstream reply: JSON bodies
// pass through unchanged, anything else is wrapped in an Envelope carrying the
// downstream status.
func Normalize(resp *Response) []byte {
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return resp.Body
	}
	msg := string(resp.Body)
	if strings.TrimSpace(msg) == "" {
		msg = "Backend error"
	}
	out, _ := json.Marshal(Envelope{Status: resp.Status, Message: msg})
	return out
}
