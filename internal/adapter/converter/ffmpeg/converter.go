package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/command"
	"github.com/bnema/tribora/internal/port"
)

var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("path contains null byte")
)

// validatePath rejects paths that would be misread when handed to ffmpeg.
func validatePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(p, 0) {
		return ErrInvalidPath
	}
	return nil
}

type Converter struct {
	runner      command.Runner
	ffmpegPath  string
	ffprobePath string
}

func NewConverter() *Converter {
	return NewConverterWithRunner(command.ExecRunner{})
}

func NewConverterWithRunner(runner command.Runner) *Converter {
	return &Converter{
		runner:      runner,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// Probe reads the container and stream layout of a file. Errors are
// classified for the given stage.
func (c *Converter) Probe(ctx context.Context, stage domain.JobType, inputPath string) (*domain.ProbeResult, error) {
	if err := validatePath(inputPath); err != nil {
		return nil, domain.Permanent(stage, fmt.Errorf("invalid input path: %w", err))
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	res, err := c.runner.Run(ctx, c.ffprobePath, args...)
	if err != nil {
		return nil, c.classify(stage, c.ffprobePath, res, err)
	}

	var probe domain.ProbeResult
	if err := json.Unmarshal([]byte(res.Stdout), &probe); err != nil {
		return nil, domain.Permanent(stage, fmt.Errorf("failed to parse ffprobe output: %w", err))
	}
	return &probe, nil
}

// ExtractAudio writes a mono 16 kHz PCM track, the input format speech
// recognizers expect.
func (c *Converter) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if err := validatePath(inputPath); err != nil {
		return domain.Permanent(domain.JobTypeExtractAudio, fmt.Errorf("invalid input path: %w", err))
	}
	if err := validatePath(outputPath); err != nil {
		return domain.Permanent(domain.JobTypeExtractAudio, fmt.Errorf("invalid output path: %w", err))
	}

	probe, err := c.Probe(ctx, domain.JobTypeExtractAudio, inputPath)
	if err != nil {
		return err
	}
	if probe.AudioStream() == nil {
		return domain.Permanent(domain.JobTypeExtractAudio, fmt.Errorf("no audio stream in %s input", probe.Format.FormatName))
	}

	args := []string{
		"-hide_banner",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-y", outputPath,
	}
	res, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	if err != nil {
		return c.classify(domain.JobTypeExtractAudio, c.ffmpegPath, res, err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return domain.Transient(domain.JobTypeExtractAudio, fmt.Errorf("ffmpeg completed but output is missing: %w", err))
	}
	return nil
}

var ptsTimeRe = regexp.MustCompile(`pts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// ExtractFrames samples frames at a fixed interval and, when a scene
// threshold is set, on every scene change above it. Timestamps come from
// the showinfo filter.
func (c *Converter) ExtractFrames(ctx context.Context, videoPath, outputDir string, opts port.FrameOptions) ([]port.ExtractedFrame, error) {
	if err := validatePath(videoPath); err != nil {
		return nil, domain.Permanent(domain.JobTypeExtractFrames, fmt.Errorf("invalid input path: %w", err))
	}
	if err := validatePath(outputDir); err != nil {
		return nil, domain.Permanent(domain.JobTypeExtractFrames, fmt.Errorf("invalid output dir: %w", err))
	}
	probe, err := c.Probe(ctx, domain.JobTypeExtractFrames, videoPath)
	if err != nil {
		return nil, err
	}
	if probe.VideoStream() == nil {
		return nil, domain.Permanent(domain.JobTypeExtractFrames, fmt.Errorf("no video stream in %s input", probe.Format.FormatName))
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	res, err := c.runner.Run(ctx, c.ffmpegPath, frameArgs(videoPath, outputDir, opts)...)
	if err != nil {
		return nil, c.classify(domain.JobTypeExtractFrames, c.ffmpegPath, res, err)
	}

	timestamps := parseShowinfo(res.Stderr)
	frames := make([]port.ExtractedFrame, 0, len(timestamps))
	for i, ts := range timestamps {
		p := filepath.Join(outputDir, domain.FrameFileName(i))
		if _, err := os.Stat(p); err != nil {
			break
		}
		frames = append(frames, port.ExtractedFrame{Index: i, Timestamp: ts, Path: p})
	}
	return frames, nil
}

func frameArgs(videoPath, outputDir string, opts port.FrameOptions) []string {
	interval := opts.Interval.Seconds()
	if interval <= 0 {
		interval = 10
	}
	selectExpr := fmt.Sprintf(`isnan(prev_selected_t)+gte(t-prev_selected_t\,%s)`, formatFloat(interval))
	if opts.SceneThreshold > 0 {
		selectExpr += fmt.Sprintf(`+gt(scene\,%s)`, formatFloat(opts.SceneThreshold))
	}

	args := []string{
		"-hide_banner",
		"-i", videoPath,
		"-vf", fmt.Sprintf("select='%s',showinfo", selectExpr),
		"-fps_mode", "vfr",
		"-q:v", "3",
		"-start_number", "0",
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.MaxFrames))
	}
	return append(args, "-y", filepath.Join(outputDir, "frame_%05d.jpg"))
}

func parseShowinfo(stderr string) []float64 {
	var out []float64
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		m := ptsTimeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	return out
}

// classify marks a missing binary as transient and a non-zero exit on the
// input as permanent. Context errors pass through unchanged.
func (c *Converter) classify(stage domain.JobType, name string, res command.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if command.IsMissingBinary(err) {
		return domain.Transient(stage, fmt.Errorf("%s unavailable: %w", name, err))
	}
	return domain.Permanent(stage, errors.New(command.Describe(name, res, err)))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var (
	_ port.AudioExtractor = (*Converter)(nil)
	_ port.FrameExtractor = (*Converter)(nil)
)
