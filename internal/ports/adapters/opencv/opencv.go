package opencv

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/types"
)

// Opener decodes videos through OpenCV's VideoCapture.
type Opener struct{}

func New() *Opener { return &Opener{} }

func (o *Opener) Open(_ context.Context, path string) (ports.VideoSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, &clip.DecodeError{Op: "open", Path: path, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &clip.DecodeError{Op: "open", Path: path, Err: errors.New("unsupported or unreadable video")}
	}
	return &Source{path: path, vc: vc, img: gocv.NewMat()}, nil
}

// Source wraps one VideoCapture. It is not safe for concurrent use.
type Source struct {
	path string
	vc   *gocv.VideoCapture
	img  gocv.Mat
	eof  bool
}

func (s *Source) FrameRate() float64 {
	return s.vc.Get(gocv.VideoCaptureFPS)
}

func (s *Source) FrameCount() int {
	return int(s.vc.Get(gocv.VideoCaptureFrameCount))
}

// Seek positions the capture so the next Read returns frame n. Seeking past
// the last frame is not an error; the next Read reports io.EOF.
func (s *Source) Seek(n int) error {
	if n < 0 {
		return fmt.Errorf("seek to negative frame %d", n)
	}
	if n == 0 {
		return nil
	}
	// Some backends clamp out-of-range positions to the last frame.
	if total := s.FrameCount(); total > 0 && n >= total {
		s.eof = true
		return nil
	}
	s.vc.Set(gocv.VideoCapturePosFrames, float64(n))
	return nil
}

// Read returns the next frame in OpenCV's native BGR order. VideoCapture does
// not distinguish a decode failure from the end of the stream, so both end
// the scan with io.EOF.
func (s *Source) Read() (types.Frame, error) {
	if s.eof {
		return types.Frame{}, io.EOF
	}
	if ok := s.vc.Read(&s.img); !ok || s.img.Empty() {
		return types.Frame{}, io.EOF
	}
	if s.img.Channels() != 3 {
		return types.Frame{}, &clip.DecodeError{Op: "read", Path: s.path, Err: fmt.Errorf("expected 3 channels, got %d", s.img.Channels())}
	}
	pix, err := matBytes(s.img)
	if err != nil {
		return types.Frame{}, &clip.DecodeError{Op: "read", Path: s.path, Err: err}
	}
	return types.Frame{
		Width:  s.img.Cols(),
		Height: s.img.Rows(),
		Order:  types.OrderBGR,
		Pix:    pix,
	}, nil
}

// ToRGB converts with cv::cvtColor instead of the generic byte swap.
func (s *Source) ToRGB(f types.Frame) (types.Frame, error) {
	if f.Order == types.OrderRGB {
		return f, nil
	}
	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return types.Frame{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.CvtColor(src, &dst, gocv.ColorBGRToRGB); err != nil {
		return types.Frame{}, err
	}
	pix, err := matBytes(dst)
	if err != nil {
		return types.Frame{}, err
	}
	f.Pix = pix
	f.Order = types.OrderRGB
	return f, nil
}

func (s *Source) Close() error {
	err := s.img.Close()
	if cerr := s.vc.Close(); err == nil {
		err = cerr
	}
	return err
}

// matBytes copies the pixel data out of m, since gocv reuses the Mat buffer
// on the next Read.
func matBytes(m gocv.Mat) ([]byte, error) {
	if !m.IsContinuous() {
		c := m.Clone()
		defer c.Close()
		return c.ToBytes(), nil
	}
	b := m.ToBytes()
	if want := m.Rows() * m.Cols() * m.Channels(); len(b) != want {
		return nil, fmt.Errorf("mat has %d bytes, want %d", len(b), want)
	}
	return b, nil
}

var (
	_ ports.VideoSource  = (*Source)(nil)
	_ ports.RGBConverter = (*Source)(nil)
)
