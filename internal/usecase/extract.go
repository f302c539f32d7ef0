package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/types"
)

// Extract reads the frames of w from src, subsamples them for speed and
// converts them to RGB. A window that starts past the end of the source
// yields an empty sequence and no error; when src reports its duration that
// case returns before any seek. Extract does not close src.
func Extract(ctx context.Context, src ports.VideoSource, w types.TimeWindow, speed float64) (types.FrameSequence, error) {
	if err := clip.ValidateWindow(w, 0); err != nil {
		return types.FrameSequence{}, err
	}
	if err := clip.ValidateSpeed(speed); err != nil {
		return types.FrameSequence{}, err
	}

	fps := src.FrameRate()
	if !clip.ValidFrameRate(fps) {
		return types.FrameSequence{}, &clip.DecodeError{Op: "frame rate", Err: fmt.Errorf("unusable value %v", fps)}
	}

	stride, outFPS := clip.Retime(fps, speed)
	if dr, ok := src.(ports.DurationReporter); ok {
		if d := dr.Duration(); d > 0 && w.StartSec >= d.Seconds() {
			return types.FrameSequence{SourceFPS: fps, OutputFPS: outFPS, Stride: stride}, nil
		}
	}

	startFrame, endFrame := clip.FrameRange(w, fps)
	if err := src.Seek(startFrame); err != nil {
		return types.FrameSequence{}, asDecodeError("seek", err)
	}

	var frames []types.Frame
	for cur := startFrame; cur <= endFrame; cur++ {
		if err := ctx.Err(); err != nil {
			return types.FrameSequence{}, err
		}
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.FrameSequence{}, asDecodeError(fmt.Sprintf("frame %d", cur), err)
		}
		f.Index = cur
		frames = append(frames, f)
	}

	kept := frames
	if stride > 1 {
		kept = clip.Subsample(frames, stride)
	}

	conv, hasFast := src.(ports.RGBConverter)
	for i, f := range kept {
		var err error
		if hasFast {
			kept[i], err = conv.ToRGB(f)
		} else {
			kept[i], err = clip.ToRGB(f)
		}
		if err != nil {
			return types.FrameSequence{}, asDecodeError("color conversion", err)
		}
	}

	return types.FrameSequence{
		Frames:    kept,
		SourceFPS: fps,
		OutputFPS: outFPS,
		Decoded:   len(frames),
		Stride:    stride,
	}, nil
}

func asDecodeError(op string, err error) error {
	var de *clip.DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &clip.DecodeError{Op: op, Err: err}
}
