package media

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/vansante/go-ffprobe.v2"

	"github.com/clipforge/clipforge/internal/clienterr"
)

// FFmpeg renders segments locally with the ffmpeg CLI.
type FFmpeg struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpeg creates a local ffmpeg processor. If ffmpegPath is empty it
// defaults to "ffmpeg" (found via PATH).
func NewFFmpeg(ffmpegPath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath}
}

// ProcessSegment cuts [Start, End) out of InputPath, applies the drawtext
// filter chain and re-encodes to OutputPath.
func (p *FFmpeg) ProcessSegment(ctx context.Context, req Request) (*Result, error) {
	args := []string{
		"-i", req.InputPath,
		"-ss", formatSeconds(req.Start),
		"-to", formatSeconds(req.End),
		"-vf", req.Filter,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "fast",
		"-crf", "23",
		"-y",
		req.OutputPath,
	}

	log.Debug().
		Str("job_id", req.JobID).
		Str("output", req.OutputPath).
		Float64("start", req.Start).
		Float64("end", req.End).
		Msg("Running ffmpeg")

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, clienterr.Wrap(clienterr.KindProcessorTransient, ctx.Err(), "ffmpeg timed out for %s", req.OutputPath)
		}
		return nil, clienterr.Wrap(clienterr.KindProcessorTransient, err,
			"ffmpeg failed for %s: %s", req.OutputPath, truncate(stderr.String(), 2048))
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil || info.Size() == 0 {
		return nil, clienterr.New(clienterr.KindProcessorTransient, "ffmpeg produced no output at %s", req.OutputPath)
	}

	return &Result{LocalPath: req.OutputPath}, nil
}

// VideoInfo is the subset of probe metadata the overlay renderer needs.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

// Prober probes local files with ffprobe.
type Prober struct{}

// ProbeFile validates that a local file is a readable video and returns its
// dimensions and duration.
func (Prober) ProbeFile(ctx context.Context, path string) (VideoInfo, error) {
	return ProbeFile(ctx, path)
}

// ProbeFile validates that a local file is a readable video and returns its
// dimensions and duration.
func ProbeFile(ctx context.Context, path string) (VideoInfo, error) {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return VideoInfo{}, clienterr.Wrap(clienterr.KindInvalidVideo, err, "probe failed for %s", path)
	}

	stream := data.FirstVideoStream()
	if stream == nil {
		return VideoInfo{}, clienterr.New(clienterr.KindInvalidVideo, "no video stream in %s", path)
	}
	if data.Format == nil || data.Format.DurationSeconds <= 0 {
		return VideoInfo{}, clienterr.New(clienterr.KindInvalidVideo, "zero duration in %s", path)
	}

	return VideoInfo{
		Width:    stream.Width,
		Height:   stream.Height,
		Duration: data.Format.DurationSeconds,
	}, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
