package planner

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/rs/zerolog/log"
)

// Window is one segment time window [Start, End) in seconds.
type Window struct {
	Start float64
	End   float64
}

// Duration returns the window length in seconds.
func (w Window) Duration() float64 { return w.End - w.Start }

// SeedFromJobID derives a deterministic RNG seed from a job identifier so that
// replanning the same job yields the same random windows.
func SeedFromJobID(jobID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return int64(h.Sum64())
}

// CalculateSegments computes the segment windows for a video of the given
// total duration under the cutting options. Windows are contiguous,
// non-overlapping, sorted, and cover [0, totalDuration]. rng is only consulted
// for the random policy and must not be nil in that case.
func CalculateSegments(totalDuration float64, opts models.CuttingOptions, rng *rand.Rand) (int, []Window, error) {
	if totalDuration <= 0 {
		return 0, nil, clienterr.New(clienterr.KindInvalidVideo, "video has zero duration")
	}

	switch opts.Type {
	case models.CutFixed:
		return fixedSegments(totalDuration, opts.DurationSeconds)
	case models.CutRandom:
		return randomSegments(totalDuration, opts.MinDuration, opts.MaxDuration, rng)
	default:
		return 0, nil, clienterr.New(clienterr.KindBadPolicy, "unsupported cutting type %q", opts.Type)
	}
}

func fixedSegments(total float64, duration int) (int, []Window, error) {
	if duration <= 0 {
		return 0, nil, clienterr.New(clienterr.KindBadPolicy, "fixed duration must be positive, got %d", duration)
	}
	d := float64(duration)
	if d > total {
		return 0, nil, clienterr.New(clienterr.KindVideoTooShort,
			"video is too short (%.1fs) to generate segments with duration %ds", total, duration)
	}

	var windows []Window
	for t := 0.0; t < total; {
		end := math.Min(t+d, total)
		windows = append(windows, Window{Start: t, End: end})
		t = end
	}

	log.Debug().
		Int("segments", len(windows)).
		Int("duration_seconds", duration).
		Msg("Planned fixed segments")

	return len(windows), windows, nil
}

func randomSegments(total float64, minDur, maxDur int, rng *rand.Rand) (int, []Window, error) {
	if minDur <= 0 || maxDur <= 0 {
		return 0, nil, clienterr.New(clienterr.KindBadPolicy, "random durations must be positive, got [%d, %d]", minDur, maxDur)
	}
	if minDur > maxDur {
		return 0, nil, clienterr.New(clienterr.KindBadPolicy, "random min_duration %d exceeds max_duration %d", minDur, maxDur)
	}
	if float64(minDur) > total {
		return 0, nil, clienterr.New(clienterr.KindVideoTooShort,
			"video is too short (%.1fs) for minimum segment duration %ds", total, minDur)
	}

	var windows []Window
	for t := 0.0; t < total; {
		remaining := total - t
		if remaining < float64(minDur) {
			// Sub-minimum tail: absorb it into a final short window.
			windows = append(windows, Window{Start: t, End: total})
			break
		}

		lo := float64(minDur)
		hi := math.Min(float64(maxDur), remaining)
		u := lo + rng.Float64()*(hi-lo)
		windows = append(windows, Window{Start: t, End: t + u})
		t += u
	}

	log.Debug().
		Int("segments", len(windows)).
		Int("min_duration", minDur).
		Int("max_duration", maxDur).
		Msg("Planned random segments")

	return len(windows), windows, nil
}
