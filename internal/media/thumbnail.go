package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// grabFrame runs ffmpeg and returns its combined output. Replaced in tests.
var grabFrame = func(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).CombinedOutput()
}

// ThumbnailGenerator extracts a still frame from a video into outputDir.
type ThumbnailGenerator struct {
	ffmpegPath string
	outputDir  string
	logger     zerolog.Logger
}

func NewThumbnailGenerator(outputDir string, logger zerolog.Logger) *ThumbnailGenerator {
	ffmpegPath := "ffmpeg"
	if path, err := lookPath("ffmpeg"); err == nil {
		ffmpegPath = path
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Warn().Err(err).Str("dir", outputDir).Msg("failed to create thumbnail directory")
	}

	return &ThumbnailGenerator{
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
		logger:     logger,
	}
}

func (t *ThumbnailGenerator) IsAvailable() bool {
	_, err := lookPath(t.ffmpegPath)
	return err == nil
}

func (t *ThumbnailGenerator) GetPath(id int64) string {
	return filepath.Join(t.outputDir, strconv.FormatInt(id, 10)+".jpg")
}

// Generate returns the thumbnail path for the video, extracting a new frame
// when none exists or the video was modified after the last extraction.
func (t *ThumbnailGenerator) Generate(ctx context.Context, videoPath string, id int64, duration time.Duration) (string, error) {
	outputPath := t.GetPath(id)

	if thumb, err := os.Stat(outputPath); err == nil {
		video, err := os.Stat(videoPath)
		if err == nil && !video.ModTime().After(thumb.ModTime()) {
			return outputPath, nil
		}
	}

	// 10% into the video, at most 5 seconds in
	offset := 5 * time.Second
	if duration > 0 {
		if tenth := duration / 10; tenth < offset {
			offset = tenth
		}
	}

	args := []string{
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", "scale=320:-1",
		"-q:v", "2",
		"-y",
		outputPath,
	}

	output, err := grabFrame(ctx, t.ffmpegPath, args...)
	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("video", videoPath).
			Str("output", string(output)).
			Msg("ffmpeg thumbnail generation failed")
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("thumbnail file not created")
	}

	t.logger.Debug().
		Str("video", videoPath).
		Str("thumbnail", outputPath).
		Msg("thumbnail generated")

	return outputPath, nil
}

func (t *ThumbnailGenerator) Delete(id int64) error {
	err := os.Remove(t.GetPath(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
