// Package evidence handles the image references attached to loans and
// payments. A reference is either an inline-encoded image or a remote URL.
package evidence

import (
	"regexp"
	"strings"
)

var driveFileID = regexp.MustCompile(`[-\w]{25,}`)

// IsInline reports whether the reference is an inline-encoded image rather
// than a remote URL.
func IsInline(ref string) bool {
	return strings.HasPrefix(ref, "data:image")
}

// PreviewURL rewrites a stored reference into a form that renders directly.
// Google Drive share links do not serve image bytes, so they are rewritten to
// the googleusercontent direct-preview form. Inline data and other URLs pass
// through unchanged.
func PreviewURL(ref string) string {
	if ref == "" {
		return ""
	}
	if IsInline(ref) {
		return ref
	}

	if strings.Contains(ref, "drive.google.com") {
		if id := driveFileID.FindString(ref); id != "" {
			return "https://lh3.googleusercontent.com/d/" + id
		}
	}
	return ref
}
