package resolver

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
)

// ErrInvalidReference is returned when a stored object URL does not have the
// [<prefix>/]<root>/<resource type>/upload/[v<version>/]<id>.<ext> shape.
var ErrInvalidReference = apperr.New(apperr.KindValidation, "invalid_reference", "Invalid storage URL")

var versionSegment = regexp.MustCompile(`^v\d+$`)

// Reference identifies a stored object recovered from its public URL. The
// storage key is not part of it: only the store knows where its bucket sits
// in the URL.
type Reference struct {
	ResourceType string // segment before "upload", "raw" when there is none
	Version      string // "" when the URL carries no version segment
	PublicID     string // path after upload/version, without extension
	Format       string
}

// Filename is the last segment of the public id with the format appended.
func (r Reference) Filename() string {
	base := path.Base(r.PublicID)
	if base == "" || base == "." || base == "/" {
		base = "lecture"
	}
	return base + "." + r.Format
}

// ParseReference recovers a Reference from a stored object URL.
func ParseReference(raw string) (Reference, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Reference{}, ErrInvalidReference.Wrap(err)
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Reference{}, ErrInvalidReference
	}

	uploadIdx := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx == -1 || uploadIdx+1 >= len(parts) {
		return Reference{}, ErrInvalidReference
	}

	ref := Reference{ResourceType: "raw"}
	if uploadIdx >= 2 {
		ref.ResourceType = parts[uploadIdx-1]
	}

	rest := parts[uploadIdx+1:]
	if versionSegment.MatchString(rest[0]) {
		ref.Version = rest[0]
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return Reference{}, ErrInvalidReference
	}

	last := rest[len(rest)-1]
	dot := strings.LastIndex(last, ".")
	if dot <= 0 || dot == len(last)-1 {
		return Reference{}, ErrInvalidReference
	}
	ref.PublicID = strings.Join(append(rest[:len(rest)-1:len(rest)-1], last[:dot]), "/")
	ref.Format = last[dot+1:]
	return ref, nil
}
