package media

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge/internal/config"
)

// Request describes one segment render: cut [Start, End) out of the source
// and burn the prepared drawtext filter chain into it.
type Request struct {
	JobID      string
	InputPath  string  // local scratch copy of the source (local processor)
	SourceKey  string  // object store key of the source (remote processors)
	OutputPath string  // desired local output path (local processor)
	OutputKey  string  // desired object store key (remote processors)
	Start      float64 // seconds
	End        float64 // seconds
	Filter     string  // drawtext filter chain
}

// Result reports where the rendered artifact landed. Exactly one of the
// fields is set: LocalPath for processors that write to scratch disk,
// StoredKey for processors that write to the object store directly.
type Result struct {
	LocalPath string
	StoredKey string
}

// Processor renders a single segment. Implementations must honor ctx
// cancellation; the worker applies the per-segment timeout through it.
type Processor interface {
	ProcessSegment(ctx context.Context, req Request) (*Result, error)
}

// Processor selection modes.
const (
	ModeLocal       = "local"
	ModeRemoteSync  = "remote_sync"
	ModeRemoteAsync = "remote_async"
)

// FromConfig builds the processor variant selected by configuration.
func FromConfig(cfg *config.Config) (Processor, error) {
	switch cfg.ProcessorMode {
	case ModeLocal, "":
		return NewFFmpeg(""), nil
	case ModeRemoteSync:
		return NewSyncRemote(cfg.RemoteProcessorURL), nil
	case ModeRemoteAsync:
		return NewAsyncRemote(cfg.RemoteProcessorURL), nil
	default:
		return nil, fmt.Errorf("unknown processor mode %q", cfg.ProcessorMode)
	}
}
