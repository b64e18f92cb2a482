package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeRecording ContentType = "recording"
	ContentTypeVideo     ContentType = "video"
	ContentTypeAudio     ContentType = "audio"
	ContentTypeDocument  ContentType = "document"
	ContentTypeText      ContentType = "text"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeRecording, ContentTypeVideo, ContentTypeAudio, ContentTypeDocument, ContentTypeText:
		return true
	}
	return false
}

type StorageKind string

const (
	StorageRaw       StorageKind = "raw"
	StorageProcessed StorageKind = "processed"
)

type Content struct {
	ID                   string            `json:"id"`
	OrgID                string            `json:"org_id"`
	CreatedBy            string            `json:"created_by"`
	ContentType          ContentType       `json:"content_type"`
	FileType             string            `json:"file_type"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	Filename             string            `json:"filename"`
	FileSize             int64             `json:"file_size"`
	Checksum             string            `json:"checksum"`
	Metadata             map[string]string `json:"metadata"`
	Status               ContentStatus     `json:"status"`
	ErrorMessage         string            `json:"error_message"`
	StoragePathRaw       string            `json:"storage_path_raw"`
	StoragePathProcessed string            `json:"storage_path_processed"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
	DeletedBy            string            `json:"deleted_by,omitempty"`
	DeleteReason         string            `json:"delete_reason,omitempty"`
}

// NewContent returns a record in the uploading state.
func NewContent(orgID, userID string, contentType ContentType, fileType, filename string, size int64, metadata map[string]string) *Content {
	now := time.Now().UTC()
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Content{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		CreatedBy:   userID,
		ContentType: contentType,
		FileType:    fileType,
		Filename:    filename,
		FileSize:    size,
		Metadata:    metadata,
		Status:      StatusUploading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c *Content) IsDeleted() bool {
	return c.DeletedAt != nil
}

func (c *Content) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// ContentPrefix is the storage prefix under which every object of a record lives.
func ContentPrefix(orgID, contentID string) string {
	return orgID + "/" + contentID + "/"
}

// FramesPrefix is the storage prefix of the extracted frames of a record.
func FramesPrefix(orgID, contentID string) string {
	return ContentPrefix(orgID, contentID) + "frames/"
}

// RawObjectPath is the storage location of the original upload.
func RawObjectPath(orgID, contentID, fileType string) string {
	return ContentPrefix(orgID, contentID) + "raw." + fileType
}

// ProcessedObjectPath is the storage location of a derived artifact.
func ProcessedObjectPath(orgID, contentID, name string) string {
	return ContentPrefix(orgID, contentID) + "processed/" + name
}

// FrameObjectPath is the storage location of one extracted video frame.
func FrameObjectPath(orgID, contentID string, index int) string {
	return FramesPrefix(orgID, contentID) + FrameFileName(index)
}

// FrameFileName is the file name of the frame at index.
func FrameFileName(index int) string {
	return fmt.Sprintf("frame_%05d.jpg", index)
}

// FileTypeOf returns the lowercase extension of filename without the dot.
func FileTypeOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

var videoExts = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "mkv": true,
}

var audioExts = map[string]bool{
	"mp3": true, "wav": true, "m4a": true, "ogg": true, "flac": true,
}

var documentExts = map[string]bool{
	"pdf": true, "docx": true,
}

var textExts = map[string]bool{
	"txt": true, "md": true,
}

// DetectContentType maps a filename to its content type by extension.
func DetectContentType(filename string) (ContentType, error) {
	ext := FileTypeOf(filename)
	switch {
	case videoExts[ext]:
		return ContentTypeVideo, nil
	case audioExts[ext]:
		return ContentTypeAudio, nil
	case documentExts[ext]:
		return ContentTypeDocument, nil
	case textExts[ext]:
		return ContentTypeText, nil
	}
	return "", ErrUnsupportedFormat
}
