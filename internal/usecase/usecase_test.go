package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/types"
)

// fakeSource produces n 2x1 BGR frames whose first two bytes encode the index.
type fakeSource struct {
	fps    float64
	n      int
	pos    int
	reads  int
	seeks  []int
	failAt int
	closed bool
}

func newFakeSource(fps float64, n int) *fakeSource {
	return &fakeSource{fps: fps, n: n, failAt: -1}
}

func (f *fakeSource) FrameRate() float64 { return f.fps }

func (f *fakeSource) Seek(n int) error {
	f.seeks = append(f.seeks, n)
	f.pos = n
	return nil
}

func (f *fakeSource) Read() (types.Frame, error) {
	f.reads++
	if f.pos >= f.n {
		return types.Frame{}, io.EOF
	}
	if f.pos == f.failAt {
		return types.Frame{}, errors.New("corrupt packet")
	}
	i := f.pos
	f.pos++
	return types.Frame{
		Width:  2,
		Height: 1,
		Order:  types.OrderBGR,
		Pix:    []byte{byte(i), byte(i >> 8), 0xAA, 1, 2, 3},
	}, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeConvertingSource struct {
	*fakeSource
	calls int
}

func (f *fakeConvertingSource) ToRGB(fr types.Frame) (types.Frame, error) {
	f.calls++
	return clip.ToRGB(fr)
}

type fakeOpener struct {
	src     ports.VideoSource
	err     error
	opened  int
	lastArg string
}

func (o *fakeOpener) Open(_ context.Context, path string) (ports.VideoSource, error) {
	o.opened++
	o.lastArg = path
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type fakeEncoder struct {
	got   types.FrameSequence
	calls int
	err   error
}

func (e *fakeEncoder) Encode(_ context.Context, seq types.FrameSequence, w io.Writer) error {
	e.calls++
	e.got = seq
	if e.err != nil {
		return e.err
	}
	_, err := fmt.Fprintf(w, "GIF89a:%d", seq.Len())
	return err
}

// sourceIndex recovers the source frame number from an RGB frame.
func sourceIndex(f types.Frame) int {
	return int(f.Pix[2]) | int(f.Pix[1])<<8
}

func TestExtract_InvalidWindowDoesNotDecode(t *testing.T) {
	t.Parallel()

	windows := []types.TimeWindow{
		{StartSec: 2, EndSec: 2},
		{StartSec: 4, EndSec: 1},
		{StartSec: -1, EndSec: 1},
	}
	for _, w := range windows {
		src := newFakeSource(30, 300)
		_, err := Extract(context.Background(), src, w, 1)
		if !errors.Is(err, clip.ErrInvalidWindow) {
			t.Fatalf("window %+v: expected ErrInvalidWindow, got %v", w, err)
		}
		if src.reads != 0 || len(src.seeks) != 0 {
			t.Fatalf("window %+v: decoder touched (reads=%d seeks=%v)", w, src.reads, src.seeks)
		}
	}
}

func TestExtract_FullRangeKeepsEveryFrameInOrder(t *testing.T) {
	t.Parallel()

	const fps, n = 24.0, 48
	src := newFakeSource(fps, n)
	seq, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 0, EndSec: n / fps}, 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if seq.Len() != n {
		t.Fatalf("expected %d frames, got %d", n, seq.Len())
	}
	for i, f := range seq.Frames {
		if f.Index != i || sourceIndex(f) != i {
			t.Fatalf("frame %d: index=%d pixel index=%d", i, f.Index, sourceIndex(f))
		}
		if f.Order != types.OrderRGB {
			t.Fatalf("frame %d not converted to rgb", i)
		}
	}
	if seq.OutputFPS != fps {
		t.Fatalf("output fps = %g, want %g", seq.OutputFPS, fps)
	}
}

func TestExtract_TenSecondScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		speed      float64
		wantFrames int
		wantFPS    float64
		wantStride int
	}{
		{name: "normal speed", speed: 1, wantFrames: 61, wantFPS: 30, wantStride: 1},
		{name: "double speed", speed: 2, wantFrames: 31, wantFPS: 15, wantStride: 2},
		{name: "slow motion", speed: 0.5, wantFrames: 61, wantFPS: 60, wantStride: 1},
		{name: "fractional", speed: 2.5, wantFrames: 31, wantFPS: 12, wantStride: 2},
		{name: "max speed", speed: 10, wantFrames: 7, wantFPS: 3, wantStride: 10},
		{name: "slow motion past gif rate", speed: 0.25, wantFrames: 31, wantFPS: 60, wantStride: 2},
		{name: "slowest speed", speed: 0.1, wantFrames: 21, wantFPS: 100, wantStride: 3},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := newFakeSource(30, 300)
			seq, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 2, EndSec: 4}, tc.speed)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if len(src.seeks) != 1 || src.seeks[0] != 60 {
				t.Fatalf("expected a single seek to 60, got %v", src.seeks)
			}
			if seq.Decoded != 61 {
				t.Fatalf("expected 61 decoded frames, got %d", seq.Decoded)
			}
			if seq.Len() != tc.wantFrames {
				t.Fatalf("expected %d frames, got %d", tc.wantFrames, seq.Len())
			}
			if seq.Stride != tc.wantStride {
				t.Fatalf("stride = %d, want %d", seq.Stride, tc.wantStride)
			}
			if math.Abs(seq.OutputFPS-tc.wantFPS) > 1e-9 {
				t.Fatalf("output fps = %g, want %g", seq.OutputFPS, tc.wantFPS)
			}
			for i, f := range seq.Frames {
				if want := 60 + i*tc.wantStride; sourceIndex(f) != want || f.Index != want {
					t.Fatalf("element %d: got source frame %d, want %d", i, sourceIndex(f), want)
				}
			}
		})
	}
}

func TestExtract_SubsampleProperty(t *testing.T) {
	t.Parallel()

	for _, speed := range []float64{2, 3, 3.9, 7} {
		base, err := Extract(context.Background(), newFakeSource(25, 500), types.TimeWindow{StartSec: 1, EndSec: 5}, 1)
		if err != nil {
			t.Fatalf("extract base: %v", err)
		}
		got, err := Extract(context.Background(), newFakeSource(25, 500), types.TimeWindow{StartSec: 1, EndSec: 5}, speed)
		if err != nil {
			t.Fatalf("extract speed %g: %v", speed, err)
		}
		stride := int(math.Floor(speed))
		want := int(math.Ceil(float64(base.Len()) / float64(stride)))
		if got.Len() != want {
			t.Fatalf("speed %g: len %d, want %d", speed, got.Len(), want)
		}
		for i := range got.Frames {
			if !bytes.Equal(got.Frames[i].Pix, base.Frames[i*stride].Pix) {
				t.Fatalf("speed %g: element %d differs from base element %d", speed, i, i*stride)
			}
		}
	}
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	w := types.TimeWindow{StartSec: 0.5, EndSec: 1.5}
	a, err := Extract(context.Background(), newFakeSource(30, 90), w, 1.5)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := Extract(context.Background(), newFakeSource(30, 90), w, 1.5)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Len() != b.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Frames {
		if !bytes.Equal(a.Frames[i].Pix, b.Frames[i].Pix) {
			t.Fatalf("frame %d differs", i)
		}
	}
}

func TestExtract_WindowBeyondSourceIsEmpty(t *testing.T) {
	t.Parallel()

	src := newFakeSource(30, 300)
	seq, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 20, EndSec: 25}, 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if seq.Len() != 0 {
		t.Fatalf("expected empty sequence, got %d frames", seq.Len())
	}
}

type fakeTimedSource struct {
	*fakeSource
	dur time.Duration
}

func (f *fakeTimedSource) Duration() time.Duration { return f.dur }

func TestExtract_KnownDurationSkipsDecodePastEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dur        time.Duration
		window     types.TimeWindow
		wantFrames int
		wantSeeks  int
	}{
		{"start past end", 10 * time.Second, types.TimeWindow{StartSec: 20, EndSec: 25}, 0, 0},
		{"start exactly at end", 10 * time.Second, types.TimeWindow{StartSec: 10, EndSec: 12}, 0, 0},
		{"window overlaps end", 10 * time.Second, types.TimeWindow{StartSec: 9.5, EndSec: 12}, 15, 1},
		{"unknown duration decodes", 0, types.TimeWindow{StartSec: 20, EndSec: 25}, 0, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := &fakeTimedSource{fakeSource: newFakeSource(30, 300), dur: tt.dur}
			seq, err := Extract(context.Background(), src, tt.window, 0.1)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if seq.Len() != (tt.wantFrames+2)/3 {
				t.Fatalf("expected %d frames, got %d", (tt.wantFrames+2)/3, seq.Len())
			}
			if len(src.seeks) != tt.wantSeeks {
				t.Fatalf("seeks = %v, want %d", src.seeks, tt.wantSeeks)
			}
			if seq.OutputFPS > clip.MaxGIFFPS {
				t.Fatalf("output fps %g above the gif limit", seq.OutputFPS)
			}
		})
	}
}

func TestConvert_LogsKnownDuration(t *testing.T) {
	t.Parallel()

	src := &fakeTimedSource{fakeSource: newFakeSource(30, 300), dur: 10 * time.Second}
	var logged []string
	uc := New(Deps{Video: &fakeOpener{src: src}, Encoder: &fakeEncoder{}})
	_, err := uc.Convert(context.Background(), Input{
		VideoPath: "in.mp4",
		Window:    types.TimeWindow{StartSec: 12, EndSec: 14},
		Speed:     1,
		Logf: func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		},
	})
	if !errors.Is(err, clip.ErrEmptyClip) {
		t.Fatalf("expected ErrEmptyClip, got %v", err)
	}
	if src.reads != 0 {
		t.Fatalf("decoder read %d frames for a window past the end", src.reads)
	}
	found := false
	for _, l := range logged {
		if l == "source: 30.000 fps, 10s long" {
			found = true
		}
	}
	if !found {
		t.Fatalf("duration not logged: %q", logged)
	}
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	src := newFakeSource(0, 10)
	if _, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 0, EndSec: 1}, 1); !clip.IsDecode(err) {
		t.Fatalf("expected decode error for zero fps, got %v", err)
	}

	src = newFakeSource(30, 300)
	src.failAt = 70
	_, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 2, EndSec: 4}, 1)
	var de *clip.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Op != "frame 70" {
		t.Fatalf("unexpected op %q", de.Op)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Extract(ctx, newFakeSource(30, 300), types.TimeWindow{StartSec: 0, EndSec: 1}, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtract_UsesSourceConverter(t *testing.T) {
	t.Parallel()

	src := &fakeConvertingSource{fakeSource: newFakeSource(10, 100)}
	seq, err := Extract(context.Background(), src, types.TimeWindow{StartSec: 0, EndSec: 1}, 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if src.calls != seq.Len() {
		t.Fatalf("expected converter for each of %d frames, got %d calls", seq.Len(), src.calls)
	}
}

func TestConvert_ProducesArtifact(t *testing.T) {
	t.Parallel()

	src := newFakeSource(30, 300)
	opener := &fakeOpener{src: src}
	enc := &fakeEncoder{}
	var logged []string
	uc := New(Deps{Video: opener, Encoder: enc})

	res, err := uc.Convert(context.Background(), Input{
		VideoPath: "/tmp/in.mp4",
		Window:    types.TimeWindow{StartSec: 2, EndSec: 4},
		Speed:     2,
		Logf: func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if opener.lastArg != "/tmp/in.mp4" || !src.closed {
		t.Fatalf("source not opened/closed correctly (arg=%q closed=%v)", opener.lastArg, src.closed)
	}
	if enc.got.Len() != 31 || enc.got.OutputFPS != 15 {
		t.Fatalf("encoder got %d frames at %g fps", enc.got.Len(), enc.got.OutputFPS)
	}
	art := res.Artifact
	if art.Filename != "output.gif" || art.MimeType != "image/gif" {
		t.Fatalf("unexpected artifact naming %q %q", art.Filename, art.MimeType)
	}
	if string(art.Data) != "GIF89a:31" || art.FrameRate != 15 || art.FrameCount != 31 {
		t.Fatalf("unexpected artifact %+v", art)
	}
	if res.Stats.StartFrame != 60 || res.Stats.EndFrame != 120 || res.Stats.Decoded != 61 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
	if len(logged) == 0 {
		t.Fatalf("expected progress logs")
	}
}

func TestConvert_ErrorExits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		in         Input
		opener     *fakeOpener
		encErr     error
		check      func(error) bool
		wantOpen   bool
		wantEncode bool
	}{
		{
			name:   "invalid window",
			in:     Input{Window: types.TimeWindow{StartSec: 3, EndSec: 1}, Speed: 1},
			opener: &fakeOpener{src: newFakeSource(30, 300)},
			check:  func(err error) bool { return errors.Is(err, clip.ErrInvalidWindow) },
		},
		{
			name:   "window too long",
			in:     Input{Window: types.TimeWindow{StartSec: 0, EndSec: 120}, Speed: 1, MaxWindow: time.Minute},
			opener: &fakeOpener{src: newFakeSource(30, 300)},
			check:  func(err error) bool { return errors.Is(err, clip.ErrInvalidWindow) },
		},
		{
			name:   "speed out of range",
			in:     Input{Window: types.TimeWindow{StartSec: 0, EndSec: 1}, Speed: 11},
			opener: &fakeOpener{src: newFakeSource(30, 300)},
			check:  func(err error) bool { return errors.Is(err, clip.ErrInvalidSpeed) },
		},
		{
			name:     "unreadable video",
			in:       Input{Window: types.TimeWindow{StartSec: 0, EndSec: 1}, Speed: 1},
			opener:   &fakeOpener{err: errors.New("moov atom not found")},
			check:    clip.IsDecode,
			wantOpen: true,
		},
		{
			name:     "window past end",
			in:       Input{Window: types.TimeWindow{StartSec: 50, EndSec: 55}, Speed: 1},
			opener:   &fakeOpener{src: newFakeSource(30, 300)},
			check:    func(err error) bool { return errors.Is(err, clip.ErrEmptyClip) },
			wantOpen: true,
		},
		{
			name:       "encoder failure",
			in:         Input{Window: types.TimeWindow{StartSec: 0, EndSec: 1}, Speed: 1},
			opener:     &fakeOpener{src: newFakeSource(30, 300)},
			encErr:     errors.New("disk full"),
			check:      func(err error) bool { return err != nil && !clip.IsInvalidInput(err) },
			wantOpen:   true,
			wantEncode: true,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enc := &fakeEncoder{err: tc.encErr}
			uc := New(Deps{Video: tc.opener, Encoder: enc})
			_, err := uc.Convert(context.Background(), tc.in)
			if !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if (tc.opener.opened > 0) != tc.wantOpen {
				t.Fatalf("opened=%d, wantOpen=%v", tc.opener.opened, tc.wantOpen)
			}
			if (enc.calls > 0) != tc.wantEncode {
				t.Fatalf("encode calls=%d, wantEncode=%v", enc.calls, tc.wantEncode)
			}
		})
	}
}
