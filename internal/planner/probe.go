package planner

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/rs/zerolog/log"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// DurationProber obtains a video's container duration from a URL the external
// probe can read (typically a presigned object store URL).
type DurationProber interface {
	Duration(ctx context.Context, url string) (float64, error)
}

// FFProbe probes media over a URL using the ffprobe binary.
type FFProbe struct {
	// Timeout bounds a single probe attempt. Zero means 60s.
	Timeout time.Duration
}

// Duration returns the container duration in seconds. Transient probe failures
// are retried a few times before giving up; an unparseable container or a zero
// duration is reported as an invalid video.
func (p FFProbe) Duration(ctx context.Context, url string) (float64, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, url)
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backOff, 3), ctx)); err != nil {
		return 0, clienterr.Wrap(clienterr.KindInvalidVideo, err, "probe failed")
	}

	if data == nil || data.Format == nil {
		return 0, clienterr.New(clienterr.KindInvalidVideo, "probe returned no format metadata")
	}
	if data.FirstVideoStream() == nil {
		return 0, clienterr.New(clienterr.KindInvalidVideo, "no video stream found")
	}

	duration := data.Format.DurationSeconds
	if duration <= 0 {
		return 0, clienterr.New(clienterr.KindInvalidVideo, "video has zero duration")
	}

	log.Debug().Float64("duration", duration).Msg("Probed video duration")
	return duration, nil
}
