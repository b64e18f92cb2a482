package domain

import "fmt"

const (
	oneKilobyte = 1024
	oneMegabyte = oneKilobyte * 1024
)

// Limits caps upload sizes per content type, in bytes.
type Limits struct {
	Video    int64
	Audio    int64
	Document int64
	Text     int64
}

func DefaultLimits() Limits {
	return Limits{
		Video:    500 * oneMegabyte,
		Audio:    100 * oneMegabyte,
		Document: 50 * oneMegabyte,
		Text:     oneMegabyte,
	}
}

func (l Limits) For(t ContentType) int64 {
	switch t {
	case ContentTypeVideo, ContentTypeRecording:
		return l.Video
	case ContentTypeAudio:
		return l.Audio
	case ContentTypeDocument:
		return l.Document
	case ContentTypeText:
		return l.Text
	}
	return 0
}

// ValidateUpload checks an upload before any record is created.
func (l Limits) ValidateUpload(contentType ContentType, fileType string, size int64) error {
	if !contentType.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrValidation, contentType)
	}
	if _, err := PlanFor(contentType, fileType); err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty upload", ErrValidation)
	}
	if limit := l.For(contentType); limit > 0 && size > limit {
		return fmt.Errorf("%w: %s is %s, limit is %s", ErrTooLarge, contentType, FormatSize(size), FormatSize(limit))
	}
	return nil
}
