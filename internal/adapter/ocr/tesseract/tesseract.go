package tesseract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/command"
	"github.com/bnema/tribora/internal/port"
)

// tsv level of a single word row.
const wordLevel = 5

type Engine struct {
	runner   command.Runner
	binary   string
	language string
}

func New(language string) *Engine {
	return NewWithRunner(command.ExecRunner{}, language)
}

func NewWithRunner(runner command.Runner, language string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{runner: runner, binary: "tesseract", language: language}
}

func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]port.OCRWord, error) {
	res, err := e.runner.Run(ctx, e.binary, imagePath, "stdout", "-l", e.language, "tsv")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if command.IsMissingBinary(err) {
			return nil, domain.Transient(domain.JobTypeOCRFrames, fmt.Errorf("tesseract unavailable: %w", err))
		}
		return nil, domain.Permanent(domain.JobTypeOCRFrames, errors.New(command.Describe(e.binary, res, err)))
	}
	return ParseTSV(res.Stdout)
}

// ParseTSV reads tesseract's tsv output and returns the word rows in
// reading order (block, paragraph, line, then left edge).
func ParseTSV(out string) ([]port.OCRWord, error) {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "level") {
		return nil, domain.Permanent(domain.JobTypeOCRFrames, errors.New("unexpected tesseract output: missing tsv header"))
	}

	var words []port.OCRWord
	for n, line := range lines[1:] {
		cols := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		ints := make([]int, 10)
		for i := range ints {
			v, err := strconv.Atoi(cols[i])
			if err != nil {
				return nil, domain.Permanent(domain.JobTypeOCRFrames, fmt.Errorf("tsv row %d column %d: %w", n+2, i+1, err))
			}
			ints[i] = v
		}
		if ints[0] != wordLevel {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, domain.Permanent(domain.JobTypeOCRFrames, fmt.Errorf("tsv row %d confidence: %w", n+2, err))
		}
		if conf < 0 {
			continue
		}
		words = append(words, port.OCRWord{
			Text:       text,
			Confidence: conf,
			Block:      ints[2],
			Paragraph:  ints[3],
			Line:       ints[4],
			Left:       ints[6],
			Top:        ints[7],
			Width:      ints[8],
			Height:     ints[9],
		})
	}

	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i], words[j]
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		if a.Paragraph != b.Paragraph {
			return a.Paragraph < b.Paragraph
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Left < b.Left
	})
	return words, nil
}

var _ port.OCR = (*Engine)(nil)
