package cli

import (
	"fmt"
	"strings"

	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/opencv"
)

const (
	decoderOpenCV = "opencv"
	decoderFFmpeg = "ffmpeg"
)

// openerFor picks the decoder adapter by name.
func openerFor(name, ffmpegPath string) (ports.VideoOpener, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case decoderOpenCV:
		return opencv.New(), nil
	case decoderFFmpeg:
		return ffmpeg.New(ffmpegPath), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q (want %s or %s)", name, decoderOpenCV, decoderFFmpeg)
	}
}

var (
	_ ports.VideoOpener = (*opencv.Opener)(nil)
	_ ports.VideoOpener = (*ffmpeg.Adapter)(nil)
)
