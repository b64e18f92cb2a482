package validation

import (
	"testing"

	"github.com/bnema/tribora/internal/domain"
	"github.com/stretchr/testify/assert"
)

func pad(magic []byte) []byte {
	buf := make([]byte, SniffLength)
	copy(buf, magic)
	return buf
}

var (
	mp4Head  = pad([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'})
	movHead  = pad([]byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '})
	m4aHead  = pad([]byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '})
	webmHead = pad([]byte{0x1A, 0x45, 0xDF, 0xA3})
	mp3Head  = pad([]byte{0xFF, 0xFB, 0x90, 0x00})
	id3Head  = pad([]byte("ID3\x04"))
	wavHead  = pad([]byte("RIFF\x00\x00\x00\x00WAVEfmt "))
	oggHead  = pad([]byte("OggS\x00\x02"))
	flacHead = pad([]byte("fLaC"))
	pdfHead  = pad([]byte("%PDF-1.7\n"))
	docxHead = pad([]byte("PK\x03\x04\x14\x00"))
	textHead = []byte("# Meeting notes\n\n- ship v2\n- café ☕\n")
	exeHead  = pad([]byte{0x4D, 0x5A, 0x90, 0x00})
	htmlHead = []byte("<!DOCTYPE html><html><body>hi</body></html>")
)

func TestCheckMagicBytes_Accepts(t *testing.T) {
	tests := []struct {
		fileType string
		head     []byte
	}{
		{"mp4", mp4Head},
		{"mov", movHead},
		{"m4a", m4aHead},
		{"webm", webmHead},
		{"mkv", webmHead},
		{"mp3", mp3Head},
		{"mp3", id3Head},
		{"wav", wavHead},
		{"ogg", oggHead},
		{"flac", flacHead},
		{"pdf", pdfHead},
		{"docx", docxHead},
		{"md", textHead},
		{"txt", textHead},
	}

	for _, tt := range tests {
		t.Run(tt.fileType, func(t *testing.T) {
			assert.NoError(t, CheckMagicBytes(tt.fileType, tt.head))
		})
	}
}

func TestCheckMagicBytes_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		fileType string
		head     []byte
	}{
		{"exe renamed to mp4", "mp4", exeHead},
		{"html renamed to txt", "txt", htmlHead},
		{"pdf renamed to docx", "docx", pdfHead},
		{"binary renamed to md", "md", mp3Head},
		{"unknown extension", "exe", exeHead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckMagicBytes(tt.fileType, tt.head)
			assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		})
	}
}

func TestCheckMagicBytes_Empty(t *testing.T) {
	assert.ErrorIs(t, CheckMagicBytes("mp4", nil), domain.ErrValidation)
}

func TestIsText_TruncatedRune(t *testing.T) {
	buf := []byte("notes café")
	assert.True(t, isText(buf[:len(buf)-1]))
	assert.False(t, isText([]byte{0xff, 0xfe, 'a'}))
}
