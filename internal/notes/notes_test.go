package notes_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/notes"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		content  string
		expected int
	}{
		{"", 0},
		{"   ", 0},
		{"hello", 1},
		{"a b  c", 3},
		{"  leading and trailing  ", 3},
		{"line\nbreaks\tand tabs", 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.content), func(t *testing.T) {
			assert.Equal(t, tt.expected, notes.WordCount(tt.content))
		})
	}
}

func TestCharCount(t *testing.T) {
	assert.Equal(t, 0, notes.CharCount(""))
	assert.Equal(t, 6, notes.CharCount("a b  c"))
	assert.Equal(t, 5, notes.CharCount("héllo"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", notes.Truncate("abcdef", 3))
	assert.Equal(t, "abc", notes.Truncate("abc", 10))
	assert.Equal(t, "abc", notes.Truncate("abc", 0), "non-positive max leaves content unbounded")
}

func TestRotate_CapEviction(t *testing.T) {
	limit := 3
	var history []models.NoteVersion
	base := time.Now()

	for i := 0; i < 6; i++ {
		history = notes.Rotate(history, fmt.Sprintf("version %d", i), base.Add(time.Duration(i)*time.Minute), limit)
	}

	require.Len(t, history, limit)
	// Newest first, oldest evicted.
	assert.Equal(t, "version 5", history[0].Content)
	assert.Equal(t, "version 4", history[1].Content)
	assert.Equal(t, "version 3", history[2].Content)
}

func TestRotate_DerivedCounts(t *testing.T) {
	history := notes.Rotate(nil, "two words", time.Now(), 10)

	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].WordCount)
	assert.Equal(t, 9, history[0].CharacterCount)
}

func TestSanitizeTags(t *testing.T) {
	lim := notes.Limits{MaxTags: 2, MaxTagLength: 4}

	tags := notes.SanitizeTags([]string{"  go  ", "", "sqlite", "dropped"}, lim)

	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0])
	assert.Equal(t, "sqli", tags[1], "overlong tag should be bounded")

	assert.Nil(t, notes.SanitizeTags(nil, lim))
	assert.Nil(t, notes.SanitizeTags([]string{"   "}, lim))
}

func TestVersionComputesCounts(t *testing.T) {
	v := notes.Version(strings.Repeat("x ", 5), time.Now())
	assert.Equal(t, 5, v.WordCount)
	assert.Equal(t, 10, v.CharacterCount)
}
