package store

import "github.com/ayush/lecture-notes/backend/internal/apperr"

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = apperr.New(apperr.KindNotFound, "not_found", "record not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = apperr.New(apperr.KindConflict, "duplicate", "record already exists")
	// ErrForeignObject is returned for URLs that do not point into the bucket.
	ErrForeignObject = apperr.New(apperr.KindValidation, "foreign_object", "Invalid storage URL")
)
