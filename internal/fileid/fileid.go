// Package fileid assigns report IDs: random for uploads, deterministic for inbox files.
package fileid

import (
	"path/filepath"

	"github.com/google/uuid"
)

// NewReportID returns a random report ID for an uploaded document.
func NewReportID() string {
	return uuid.NewString()
}

// ForPath returns a stable report ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a file replaces its report.
func ForPath(absolutePath string) string {
	normalized := filepath.ToSlash(filepath.Clean(absolutePath))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+normalized)).String()
}

// Valid reports whether id parses as a UUID.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
