package usecase

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/types"
)

type Deps struct {
	Video   ports.VideoOpener
	Encoder ports.GIFEncoder
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	VideoPath string
	Window    types.TimeWindow
	Speed     float64

	// MaxWindow bounds the window length. Zero means unbounded.
	MaxWindow time.Duration
	Logf      func(format string, args ...any)
}

type Result struct {
	Artifact types.ClipArtifact
	Stats    types.Stats
}

// Convert runs validate -> decode -> encode for one request. Every stage
// exits on its first error; nothing is retried.
func (u Usecase) Convert(ctx context.Context, in Input) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	if err := clip.ValidateWindow(in.Window, in.MaxWindow); err != nil {
		return Result{}, err
	}
	if err := clip.ValidateSpeed(in.Speed); err != nil {
		return Result{}, err
	}

	logf("decoding %.3fs..%.3fs at %gx", in.Window.StartSec, in.Window.EndSec, in.Speed)
	seq, err := u.decode(ctx, in, logf)
	if err != nil {
		return Result{}, err
	}
	if seq.Len() == 0 {
		return Result{}, fmt.Errorf("%w: %.3fs..%.3fs is beyond the end of the video", clip.ErrEmptyClip, in.Window.StartSec, in.Window.EndSec)
	}
	startFrame, endFrame := clip.FrameRange(in.Window, seq.SourceFPS)
	logf("decoded %d frames (%d..%d), kept %d with stride %d", seq.Decoded, startFrame, endFrame, seq.Len(), seq.Stride)

	logf("encoding gif at %.3f fps", seq.OutputFPS)
	var buf bytes.Buffer
	if err := u.d.Encoder.Encode(ctx, seq, &buf); err != nil {
		return Result{}, fmt.Errorf("encode gif: %w", err)
	}

	first := seq.Frames[0]
	art := types.ClipArtifact{
		Data:       buf.Bytes(),
		Filename:   types.DefaultArtifactName,
		MimeType:   types.GIFMimeType,
		FrameRate:  seq.OutputFPS,
		FrameCount: seq.Len(),
		Width:      first.Width,
		Height:     first.Height,
		CreatedAt:  time.Now().UTC(),
	}
	st := types.Stats{
		StartFrame: startFrame,
		EndFrame:   endFrame,
		Decoded:    seq.Decoded,
		Frames:     seq.Len(),
		Stride:     seq.Stride,
		SourceFPS:  seq.SourceFPS,
		OutputFPS:  seq.OutputFPS,
		Bytes:      len(art.Data),
		Width:      art.Width,
		Height:     art.Height,
	}
	logf("gif ready: %d frames, %d bytes", st.Frames, st.Bytes)
	return Result{Artifact: art, Stats: st}, nil
}

func (u Usecase) decode(ctx context.Context, in Input, logf func(string, ...any)) (types.FrameSequence, error) {
	src, err := u.d.Video.Open(ctx, in.VideoPath)
	if err != nil {
		return types.FrameSequence{}, asDecodeError("open", err)
	}
	defer src.Close()
	if dr, ok := src.(ports.DurationReporter); ok && dr.Duration() > 0 {
		logf("source: %.3f fps, %s long", src.FrameRate(), dr.Duration().Round(time.Millisecond))
	}
	return Extract(ctx, src, in.Window, in.Speed)
}
