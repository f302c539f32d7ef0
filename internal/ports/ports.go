package ports

import (
	"context"
	"io"
	"time"

	"github.com/forPelevin/vid2gif/internal/types"
)

// VideoSource is an opened, seekable, sequential frame reader.
// Read returns io.EOF once the stream is exhausted.
type VideoSource interface {
	FrameRate() float64
	Seek(frame int) error
	Read() (types.Frame, error)
	Close() error
}

// RGBConverter is implemented by sources that can convert their native
// frames to RGB faster than the generic byte swap.
type RGBConverter interface {
	ToRGB(f types.Frame) (types.Frame, error)
}

// DurationReporter is implemented by sources that know the container length
// up front. Zero means unknown.
type DurationReporter interface {
	Duration() time.Duration
}

type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoSource, error)
}

type GIFEncoder interface {
	Encode(ctx context.Context, seq types.FrameSequence, w io.Writer) error
}
