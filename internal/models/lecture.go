package models

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lecture is a published set of notes stored in MongoDB.
type Lecture struct {
	ID            primitive.ObjectID `json:"_id"       bson:"_id,omitempty"`
	Title         string             `json:"title"     bson:"title"`
	PDFURL        string             `json:"pdfUrl"    bson:"pdfUrl"`
	NotesMarkdown string             `json:"-"         bson:"notesMarkdown,omitempty"`
	// Private marks objects that can only be read through a signed URL.
	Private   bool      `json:"-"         bson:"private"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"-"         bson:"updatedAt"`
}

// Validate checks the invariants a stored lecture must satisfy.
func (l *Lecture) Validate() error {
	var errs []error
	if strings.TrimSpace(l.Title) == "" {
		errs = append(errs, errors.New("title is empty"))
	}
	if u, err := url.Parse(l.PDFURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("pdfUrl is not an absolute URL"))
	}
	if l.CreatedAt.IsZero() {
		errs = append(errs, errors.New("createdAt is missing"))
	}
	return errors.Join(errs...)
}
