package types

import "time"

// ChannelOrder is the byte order of the three color channels in Frame.Pix.
type ChannelOrder int

const (
	OrderBGR ChannelOrder = iota
	OrderRGB
)

func (o ChannelOrder) String() string {
	switch o {
	case OrderBGR:
		return "bgr"
	case OrderRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Frame is one decoded still image. Pix holds Width*Height packed 8-bit
// 3-channel pixels, row-major, in Order.
type Frame struct {
	Index  int
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []byte
}

type TimeWindow struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

func (w TimeWindow) Duration() time.Duration {
	return time.Duration((w.EndSec - w.StartSec) * float64(time.Second))
}

// FrameSequence is the re-timed clip, ready for the GIF encoder.
type FrameSequence struct {
	Frames    []Frame
	SourceFPS float64
	OutputFPS float64

	// Decoded is the number of frames read from the source before subsampling.
	Decoded int
	Stride  int
}

func (s FrameSequence) Len() int { return len(s.Frames) }

const (
	DefaultArtifactName = "output.gif"
	GIFMimeType         = "image/gif"
)

type ClipArtifact struct {
	Data       []byte
	Filename   string
	MimeType   string
	FrameRate  float64
	FrameCount int
	Width      int
	Height     int
	CreatedAt  time.Time
}

// Stats summarizes a conversion for logs, the CLI and the JSON API.
type Stats struct {
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	Decoded    int     `json:"decoded_frames"`
	Frames     int     `json:"frames"`
	Stride     int     `json:"stride"`
	SourceFPS  float64 `json:"source_fps"`
	OutputFPS  float64 `json:"output_fps"`
	Bytes      int     `json:"bytes"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}
