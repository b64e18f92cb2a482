package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/command"
	"github.com/bnema/tribora/internal/port"
)

const (
	ProviderPDF  = "pdftotext"
	ProviderDOCX = "docx"

	docxBody = "word/document.xml"
)

// Extractor pulls plain text out of PDF and DOCX files.
type Extractor struct {
	runner        command.Runner
	pdftotextPath string
}

func New() *Extractor {
	return NewWithRunner(command.ExecRunner{})
}

func NewWithRunner(runner command.Runner) *Extractor {
	return &Extractor{runner: runner, pdftotextPath: "pdftotext"}
}

func (e *Extractor) ExtractText(ctx context.Context, path, format string) (string, error) {
	switch format {
	case "pdf":
		return e.extractPDF(ctx, path)
	case "docx":
		return extractDOCX(path)
	}
	return "", fmt.Errorf("%w: text extraction for %q", domain.ErrUnsupportedFormat, format)
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	res, err := e.runner.Run(ctx, e.pdftotextPath, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if command.IsMissingBinary(err) {
			return "", domain.Transient(domain.JobTypeExtractTextPDF, fmt.Errorf("pdftotext unavailable: %w", err))
		}
		return "", domain.Permanent(domain.JobTypeExtractTextPDF, errors.New(command.Describe(e.pdftotextPath, res, err)))
	}
	text := normalize(res.Stdout)
	if text == "" {
		return "", domain.Permanent(domain.JobTypeExtractTextPDF, errors.New("no text layer in pdf"))
	}
	return text, nil
}

func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", domain.Permanent(domain.JobTypeExtractTextDOCX, fmt.Errorf("open docx: %w", err))
	}
	defer zr.Close()

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", domain.Permanent(domain.JobTypeExtractTextDOCX, fmt.Errorf("docx has no %s", docxBody))
	}

	rc, err := body.Open()
	if err != nil {
		return "", domain.Permanent(domain.JobTypeExtractTextDOCX, fmt.Errorf("open %s: %w", docxBody, err))
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", domain.Permanent(domain.JobTypeExtractTextDOCX, err)
	}
	text := normalize(strings.Join(paragraphs, "\n"))
	if text == "" {
		return "", domain.Permanent(domain.JobTypeExtractTextDOCX, errors.New("docx contains no text"))
	}
	return text, nil
}

// docxParagraphs walks WordprocessingML and returns the text of each w:p.
// Tabs and explicit breaks inside a paragraph are kept as whitespace.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxBody, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, nil
}

// normalize trims trailing whitespace per line, drops form feeds and
// collapses runs of blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\f", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var _ port.TextExtractor = (*Extractor)(nil)
