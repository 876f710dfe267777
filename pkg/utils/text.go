// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// SafeName replaces every character outside [a-zA-Z0-9_-] in the base name with "_".
// The extension is kept, lowercased. An empty base becomes "report".
func SafeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = unsafeNameChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "report"
	}
	ext = strings.ToLower(unsafeNameChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "_"))
	if ext == "" {
		return base
	}
	return base + "." + ext
}
