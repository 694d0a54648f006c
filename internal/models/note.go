package models

import "time"

// NoteFormat identifies how note content should be interpreted.
type NoteFormat string

const (
	FormatText     NoteFormat = "text"
	FormatMarkdown NoteFormat = "markdown"
	FormatHTML     NoteFormat = "html"
)

// ValidNoteFormat reports whether f is one of the supported formats.
func ValidNoteFormat(f NoteFormat) bool {
	switch f {
	case FormatText, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// NoteVersion is one superseded note content snapshot, newest first in history.
type NoteVersion struct {
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	WordCount      int       `json:"word_count"`
	CharacterCount int       `json:"character_count"`
}

// NoteRecord is the detached per-user-per-task note row as stored.
type NoteRecord struct {
	UserID      string        `json:"-"`
	TaskID      string        `json:"task_id"`
	Content     string        `json:"content"`
	Format      NoteFormat    `json:"format"`
	Tags        []string      `json:"tags"`
	History     []NoteVersion `json:"history"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NoteDetails is the read model returned to callers. Word and character
// counts are derived at read time, never trusted from storage or callers.
type NoteDetails struct {
	TaskID         string        `json:"task_id"`
	Content        string        `json:"content"`
	Format         NoteFormat    `json:"format"`
	Tags           []string      `json:"tags"`
	WordCount      int           `json:"word_count"`
	CharacterCount int           `json:"character_count"`
	LastUpdated    time.Time     `json:"last_updated"`
	History        []NoteVersion `json:"history"`
}

// NoteSummary is the compact per-task entry returned by list/search.
type NoteSummary struct {
	TaskID         string     `json:"task_id"`
	Content        string     `json:"content"`
	Format         NoteFormat `json:"format"`
	Tags           []string   `json:"tags"`
	WordCount      int        `json:"word_count"`
	CharacterCount int        `json:"character_count"`
	LastUpdated    time.Time  `json:"last_updated"`
}
