package clip

import (
	"fmt"
	"math"
	"time"

	"github.com/forPelevin/vid2gif/internal/types"
)

const (
	MinSpeed     = 0.1
	MaxSpeed     = 10.0
	DefaultSpeed = 1.0

	DefaultStartSec = 0.0
	DefaultEndSec   = 5.0

	// MaxGIFFPS is the fastest rate a GIF can declare: one centisecond a frame.
	MaxGIFFPS = 100.0
)

// ValidateWindow rejects windows that must never reach a decoder.
// maxLen <= 0 disables the length bound.
func ValidateWindow(w types.TimeWindow, maxLen time.Duration) error {
	if math.IsNaN(w.StartSec) || math.IsNaN(w.EndSec) || math.IsInf(w.StartSec, 0) || math.IsInf(w.EndSec, 0) {
		return fmt.Errorf("%w: bounds must be finite", ErrInvalidWindow)
	}
	if w.StartSec < 0 {
		return fmt.Errorf("%w: start %.3fs is negative", ErrInvalidWindow, w.StartSec)
	}
	if w.EndSec <= w.StartSec {
		return fmt.Errorf("%w: end %.3fs must be greater than start %.3fs", ErrInvalidWindow, w.EndSec, w.StartSec)
	}
	if maxLen > 0 && w.Duration() > maxLen {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrInvalidWindow, w.Duration(), maxLen)
	}
	return nil
}

// ValidateSpeed accepts finite multipliers in [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: must be finite", ErrInvalidSpeed)
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: %g is outside [%g, %g]", ErrInvalidSpeed, speed, MinSpeed, MaxSpeed)
	}
	return nil
}

// FrameRange maps a window to inclusive source frame indices. Indices are
// truncated, not rounded: 2.0s at 30fps is frame 60 and so is 2.03s.
func FrameRange(w types.TimeWindow, fps float64) (start, end int) {
	return int(math.Floor(w.StartSec * fps)), int(math.Floor(w.EndSec * fps))
}

// Stride is the subsampling step for a speed multiplier: max(1, floor(speed)).
// Multipliers below 2 keep every frame and only slow down or speed up playback
// through OutputFPS.
func Stride(speed float64) int {
	s := int(math.Floor(speed))
	if s < 1 {
		return 1
	}
	return s
}

// Subsample keeps frames[0], frames[stride], frames[2*stride], ...
// The result shares no backing array with frames.
func Subsample(frames []types.Frame, stride int) []types.Frame {
	if stride <= 1 {
		return append([]types.Frame(nil), frames...)
	}
	out := make([]types.Frame, 0, (len(frames)+stride-1)/stride)
	for i := 0; i < len(frames); i += stride {
		out = append(out, frames[i])
	}
	return out
}

// OutputFPS is the playback rate that makes the clip last window/speed.
func OutputFPS(sourceFPS, speed float64) float64 {
	return sourceFPS / speed
}

// GIFStep is ceil(fps/MaxGIFFPS), at least 1: how many frames must share one
// centisecond slot so a clip at fps keeps its duration as a GIF.
func GIFStep(fps float64) int {
	if !ValidFrameRate(fps) || fps <= MaxGIFFPS {
		return 1
	}
	return int(math.Ceil(fps / MaxGIFFPS))
}

// Retime returns the subsampling stride and the rate the kept frames play at.
// Slow motion past MaxGIFFPS drops frames instead of declaring a rate a GIF
// cannot carry, so the clip still lasts window/speed.
func Retime(sourceFPS, speed float64) (stride int, fps float64) {
	stride, fps = 1, OutputFPS(sourceFPS, speed)
	if speed != 1.0 {
		stride = Stride(speed)
	}
	if step := GIFStep(fps); step > 1 {
		stride *= step
		fps /= float64(step)
	}
	return stride, fps
}

// ValidFrameRate reports whether a decoder-reported rate is usable.
func ValidFrameRate(fps float64) bool {
	return fps > 0 && !math.IsInf(fps, 0) && !math.IsNaN(fps)
}
