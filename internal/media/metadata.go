package media

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type Metadata struct {
	Duration   time.Duration
	VideoCodec string
	AudioCodec string
	Bitrate    int64
}

var lookPath = exec.LookPath

// probe runs ffprobe and returns its stdout. Replaced in tests.
var probe = func(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).Output()
}

type MetadataExtractor struct {
	ffprobePath string
	logger      zerolog.Logger
}

func NewMetadataExtractor(logger zerolog.Logger) *MetadataExtractor {
	ffprobePath := "ffprobe"
	if path, err := lookPath("ffprobe"); err == nil {
		ffprobePath = path
	}

	return &MetadataExtractor{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

func (m *MetadataExtractor) IsAvailable() bool {
	_, err := lookPath(m.ffprobePath)
	return err == nil
}

func (m *MetadataExtractor) Extract(ctx context.Context, filePath string) (*Metadata, error) {
	output, err := probe(ctx, m.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		m.logger.Debug().Err(err).Str("file", filePath).Msg("ffprobe failed")
		return nil, err
	}

	return parseProbe(output)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

func parseProbe(output []byte) (*Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, err
	}

	meta := &Metadata{}

	// ffprobe reports seconds with a fractional part
	if out.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && secs > 0 {
			meta.Duration = time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
		}
	}

	if out.Format.BitRate != "" {
		if br, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
			meta.Bitrate = br
		}
	}

	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			if meta.VideoCodec == "" {
				meta.VideoCodec = strings.ToUpper(stream.CodecName)
			}
		case "audio":
			if meta.AudioCodec == "" {
				meta.AudioCodec = strings.ToUpper(stream.CodecName)
			}
		}
	}

	return meta, nil
}
