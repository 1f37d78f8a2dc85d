package util

import (
	"errors"
	"html"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeFileName flattens path separators into a single path element.
// Dots inside a name are kept; only the bare "." and ".." elements are rejected.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || s == "." || s == ".." {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// CleanText strips any markup from user-supplied text and trims surrounding whitespace.
// The result is plain text; entities produced by the sanitizer are decoded again so
// templates escape it exactly once.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// HasAllowedExtension reports whether name ends with one of the given extensions,
// compared case-insensitively. Extensions are given without the leading dot.
func HasAllowedExtension(name string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}
