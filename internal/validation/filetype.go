// Package validation checks client uploads before they enter the pipeline.
package validation

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bnema/tribora/internal/domain"
)

// SniffLength is the number of leading bytes CheckMagicBytes needs.
const SniffLength = 512

// CheckMagicBytes verifies that the leading bytes of an upload match its
// declared file type, so a renamed executable or HTML page is rejected
// before it reaches a decoder.
func CheckMagicBytes(fileType string, head []byte) error {
	if len(head) == 0 {
		return fmt.Errorf("%w: empty upload", domain.ErrValidation)
	}
	detected := DetectMIME(head)
	for _, ok := range acceptedMIME[fileType] {
		if ok == detected {
			return nil
		}
	}
	return fmt.Errorf("%w: content looks like %s, not .%s", domain.ErrUnsupportedFormat, detected, fileType)
}

var acceptedMIME = map[string][]string{
	"mp4":  {"video/mp4", "video/quicktime"},
	"mov":  {"video/quicktime", "video/mp4"},
	"webm": {"video/webm"},
	"mkv":  {"video/webm"},
	"mp3":  {"audio/mpeg"},
	"wav":  {"audio/wave"},
	"m4a":  {"video/mp4", "audio/mp4"},
	"ogg":  {"application/ogg"},
	"flac": {"audio/flac"},
	"pdf":  {"application/pdf"},
	"docx": {"application/zip"},
	"txt":  {"text/plain"},
	"md":   {"text/plain"},
}

// DetectMIME identifies the formats the pipeline accepts, falling back to
// http.DetectContentType for everything else.
func DetectMIME(buf []byte) string {
	switch {
	case bytes.HasPrefix(buf, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML header, shared by WebM and Matroska.
		return "video/webm"
	case bytes.HasPrefix(buf, []byte("fLaC")):
		return "audio/flac"
	case bytes.HasPrefix(buf, []byte("ID3")):
		return "audio/mpeg"
	case len(buf) >= 2 && buf[0] == 0xFF && (buf[1]&0xFE == 0xFA || buf[1]&0xFE == 0xF2):
		return "audio/mpeg"
	case bytes.HasPrefix(buf, []byte("OggS")):
		return "application/ogg"
	case len(buf) >= 12 && bytes.HasPrefix(buf, []byte("RIFF")) && string(buf[8:12]) == "WAVE":
		return "audio/wave"
	case bytes.HasPrefix(buf, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(buf, []byte("PK\x03\x04")):
		return "application/zip"
	case len(buf) >= 12 && string(buf[4:8]) == "ftyp":
		switch string(buf[8:12]) {
		case "qt  ":
			return "video/quicktime"
		case "M4A ", "M4B ":
			return "audio/mp4"
		}
		return "video/mp4"
	}

	mime := http.DetectContentType(buf)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime != "text/html" && mime != "text/xml" && isText(buf) {
		return "text/plain"
	}
	return mime
}

// isText accepts UTF-8 without NUL or other binary control bytes. A rune
// cut off at the end of the sniff window is tolerated.
func isText(buf []byte) bool {
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			return !utf8.FullRune(buf)
		}
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' && r != '\f' {
			return false
		}
		buf = buf[size:]
	}
	return true
}
