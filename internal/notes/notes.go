// Package notes implements the content policies for versioned notes: derived
// counts, length bounds, and capped history rotation.
package notes

import (
	"strings"
	"time"

	"github.com/mviana/labtrack/internal/models"
)

// Default bounds, overridable via configuration.
const (
	DefaultMaxContentLength = 10000
	DefaultHistoryLimit     = 10
	DefaultMaxTags          = 10
	DefaultMaxTagLength     = 50
)

// Limits bundles the configured note bounds.
type Limits struct {
	MaxContentLength int
	HistoryLimit     int
	MaxTags          int
	MaxTagLength     int
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxContentLength: DefaultMaxContentLength,
		HistoryLimit:     DefaultHistoryLimit,
		MaxTags:          DefaultMaxTags,
		MaxTagLength:     DefaultMaxTagLength,
	}
}

// WordCount returns the whitespace-delimited token count of trimmed content.
// Empty or all-whitespace content counts as zero words, not one.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// CharCount returns the raw character count including internal whitespace.
func CharCount(content string) int {
	return len([]rune(content))
}

// Truncate bounds content to max characters. Non-positive max means unbounded.
func Truncate(content string, max int) string {
	if max <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}

// Version builds a history snapshot for content at ts, computing the derived
// counts rather than trusting the caller.
func Version(content string, ts time.Time) models.NoteVersion {
	return models.NoteVersion{
		Content:        content,
		Timestamp:      ts,
		WordCount:      WordCount(content),
		CharacterCount: CharCount(content),
	}
}

// Rotate prepends the superseded content to history, newest first, and evicts
// the oldest entries beyond limit. Callers diff before rotating; Rotate itself
// always records.
func Rotate(history []models.NoteVersion, prevContent string, prevAt time.Time, limit int) []models.NoteVersion {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rotated := make([]models.NoteVersion, 0, len(history)+1)
	rotated = append(rotated, Version(prevContent, prevAt))
	rotated = append(rotated, history...)
	if len(rotated) > limit {
		rotated = rotated[:limit]
	}
	return rotated
}

// SanitizeTags trims, drops empties, bounds tag length and count.
func SanitizeTags(tags []string, lim Limits) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, Truncate(tag, lim.MaxTagLength))
		if len(out) == lim.MaxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
