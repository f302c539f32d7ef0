package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg/transcoder"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/types"
)

// Adapter decodes through an ffmpeg child process. Metadata comes from
// goffmpeg, which resolves ffprobe on PATH.
type Adapter struct {
	ffmpeg string
}

func New(ffmpegPath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Adapter{ffmpeg: ffmpegPath}
}

type StreamInfo struct {
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	// Duration is the container duration, zero when ffprobe reports none.
	Duration time.Duration
}

// Probe reads the first video stream's geometry, average frame rate and the
// container duration.
func (a *Adapter) Probe(path string) (StreamInfo, error) {
	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(path, ""); err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe metadata: %w", err)
	}
	md := trans.MediaFile().Metadata()
	for _, st := range md.Streams {
		if st.CodecType != "video" {
			continue
		}
		fps, err := parseRate(st.AvgFrameRate)
		if err != nil {
			return StreamInfo{}, err
		}
		if st.Width <= 0 || st.Height <= 0 {
			return StreamInfo{}, fmt.Errorf("video stream has no dimensions (%dx%d)", st.Width, st.Height)
		}
		dur := parseDuration(md.Format.Duration)
		if dur == 0 {
			dur = parseDuration(st.Duration)
		}
		return StreamInfo{Width: st.Width, Height: st.Height, FrameRate: fps, Codec: st.CodecName, Duration: dur}, nil
	}
	return StreamInfo{}, errors.New("no video stream")
}

func (a *Adapter) Open(ctx context.Context, path string) (ports.VideoSource, error) {
	info, err := a.Probe(path)
	if err != nil {
		return nil, &clip.DecodeError{Op: "probe", Path: path, Err: err}
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Source{a: a, path: path, info: info, ctx: cctx, cancel: cancel}, nil
}

// Source streams bgr24 frames from an ffmpeg child process. The process is
// started by the first Read, so Seek must come before it.
type Source struct {
	a      *Adapter
	path   string
	info   StreamInfo
	ctx    context.Context
	cancel context.CancelFunc

	start   int
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	buf     []byte
	done    bool
	started bool
}

func (s *Source) FrameRate() float64 { return s.info.FrameRate }

func (s *Source) Duration() time.Duration { return s.info.Duration }

// Seek selects frames by decoded index with the select filter, so the first
// frame returned is exactly frame n.
func (s *Source) Seek(n int) error {
	if s.started {
		return errors.New("seek after first read")
	}
	if n < 0 {
		return fmt.Errorf("seek to negative frame %d", n)
	}
	s.start = n
	return nil
}

func (s *Source) Read() (types.Frame, error) {
	if s.done {
		return types.Frame{}, io.EOF
	}
	if !s.started {
		if err := s.startProcess(); err != nil {
			return types.Frame{}, &clip.DecodeError{Op: "start ffmpeg", Path: s.path, Err: err}
		}
	}

	_, err := io.ReadFull(s.stdout, s.buf)
	switch {
	case err == nil:
		pix := make([]byte, len(s.buf))
		copy(pix, s.buf)
		return types.Frame{Width: s.info.Width, Height: s.info.Height, Order: types.OrderBGR, Pix: pix}, nil
	case errors.Is(err, io.EOF):
		s.done = true
		if werr := s.cmd.Wait(); werr != nil {
			return types.Frame{}, &clip.DecodeError{Op: "ffmpeg", Path: s.path, Err: fmt.Errorf("%w\n%s", werr, s.stderr.String())}
		}
		return types.Frame{}, io.EOF
	default:
		s.done = true
		_ = s.cmd.Wait()
		return types.Frame{}, &clip.DecodeError{Op: "read frame", Path: s.path, Err: fmt.Errorf("%w\n%s", err, s.stderr.String())}
	}
}

func (s *Source) startProcess() error {
	s.started = true
	args := []string{
		"-v", "error",
		"-noautorotate",
		"-i", s.path,
		"-map", "0:v:0",
	}
	if s.start > 0 {
		args = append(args, "-vf", fmt.Sprintf(`select=gte(n\,%d)`, s.start))
	}
	args = append(args,
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	)
	cmd := exec.CommandContext(s.ctx, s.a.ffmpeg, args...)
	cmd.Stderr = &s.stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.stdout = out
	s.buf = make([]byte, s.info.Width*s.info.Height*3)
	return nil
}

// Close stops the decoder early when the window ends before the stream.
func (s *Source) Close() error {
	s.cancel()
	if s.started && !s.done && s.cmd != nil {
		s.done = true
		_ = s.cmd.Wait()
	}
	return nil
}

// parseDuration reads ffprobe's seconds string; "N/A" and junk mean unknown.
func parseDuration(v string) time.Duration {
	sec, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || sec <= 0 || math.IsInf(sec, 0) || math.IsNaN(sec) {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

func parseRate(r string) (float64, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(r), "/")
	if !ok {
		den = "1"
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", r, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", r, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: zero denominator", r)
	}
	return n / d, nil
}

var (
	_ ports.VideoSource      = (*Source)(nil)
	_ ports.DurationReporter = (*Source)(nil)
)
