package validation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal", "standup.mp4", "standup.mp4"},
		{"spaces", "weekly sync.m4a", "weekly sync.m4a"},
		{"unicode", "réunion 会议 🎙️.webm", "réunion 会议 🎙️.webm"},
		{"quotes", `my "best" take.mp4`, "my _best_ take.mp4"},
		{"unix path", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\notes.md`, "notes.md"},
		{"newline injection", "a\r\nb.txt", "a__b.txt"},
		{"colon", "12:30 call.mp3", "12_30 call.mp3"},
		{"null byte", "file\x00.pdf", "file_.pdf"},
		{"empty", "", "file"},
		{"whitespace", "   ", "file"},
		{"dots only", "..", "file"},
		{"underscores only", "\n\r", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_TruncatesPreservingExtension(t *testing.T) {
	long := strings.Repeat("a", 300) + ".docx"
	out := SanitizeFilename(long)
	assert.Len(t, out, maxFilenameLength)
	assert.True(t, strings.HasSuffix(out, ".docx"))

	multi := strings.Repeat("é", 200) + ".md"
	out = SanitizeFilename(multi)
	assert.LessOrEqual(t, len(out), maxFilenameLength)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, ".md"))
}
