package gifenc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/types"
)

const (
	PaletteAdaptive = "adaptive"
	PalettePlan9    = "plan9"
	PaletteWebSafe  = "websafe"
)

type Options struct {
	// Dither enables Floyd-Steinberg error diffusion when quantizing.
	Dither bool
	// Palette fixes the colors of every frame. Nil builds a median-cut
	// palette of up to 256 colors per frame.
	Palette color.Palette
}

type Adapter struct {
	dither bool
	pal    color.Palette
	quant  draw.Quantizer
}

func New(opts Options) *Adapter {
	a := &Adapter{dither: opts.Dither, pal: opts.Palette}
	if len(a.pal) == 0 {
		a.pal = nil
		a.quant = quantize.MedianCutQuantizer{Aggregation: quantize.Mean}
	}
	return a
}

// ParsePalette maps a palette name to Options.Palette.
func ParsePalette(name string) (color.Palette, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PaletteAdaptive:
		return nil, nil
	case PalettePlan9:
		return palette.Plan9, nil
	case PaletteWebSafe:
		return palette.WebSafe, nil
	default:
		return nil, fmt.Errorf("unknown palette %q (want %s, %s or %s)", name, PaletteAdaptive, PalettePlan9, PaletteWebSafe)
	}
}

// Encode writes seq as a looping animated GIF at seq.OutputFPS. Rates above
// clip.MaxGIFFPS are met by dropping frames, see Delays.
func (a *Adapter) Encode(ctx context.Context, seq types.FrameSequence, w io.Writer) error {
	if seq.Len() == 0 {
		return errors.New("gif: no frames")
	}
	if !clip.ValidFrameRate(seq.OutputFPS) {
		return fmt.Errorf("gif: invalid output frame rate %v", seq.OutputFPS)
	}

	step, delays := Delays(seq.Len(), seq.OutputFPS)
	frames := clip.Subsample(seq.Frames, step)
	anim := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     delays,
		LoopCount: 0,
	}
	var drawer draw.Drawer = draw.Src
	if a.dither {
		drawer = draw.FloydSteinberg
	}

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		rgb, err := clip.Image(f)
		if err != nil {
			return fmt.Errorf("gif: %w", err)
		}
		anim.Image = append(anim.Image, a.paletted(rgb, drawer))
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("gif: %w", err)
	}
	return nil
}

func (a *Adapter) paletted(img image.Image, drawer draw.Drawer) *image.Paletted {
	pal := a.pal
	if a.quant != nil {
		pal = a.quant.Quantize(make(color.Palette, 0, 256), img)
	}
	p := image.NewPaletted(img.Bounds(), pal)
	drawer.Draw(p, p.Bounds(), img, image.Point{})
	return p
}

// Delays plans n frames at fps as GIF frames. step is clip.GIFStep(fps):
// only every step-th frame is written, and each written frame is shown until
// the source time of the next one. Delays are hundredths of a second taken
// from rounded cumulative timestamps, so the total stays within one
// centisecond of n/fps. Each delay is at least 1.
func Delays(n int, fps float64) (step int, delays []int) {
	step = clip.GIFStep(fps)
	kept := (n + step - 1) / step
	delays = make([]int, kept)
	prev := 0
	for i := 0; i < kept; i++ {
		end := min((i+1)*step, n)
		d := int(math.Round(float64(end)*100/fps)) - prev
		if d < 1 {
			d = 1
		}
		delays[i] = d
		prev += d
	}
	return step, delays
}

// DeclaredFPS recovers the playback rate implied by a decoded GIF.
func DeclaredFPS(g *gif.GIF) float64 {
	total := 0
	for _, d := range g.Delay {
		total += d
	}
	if total == 0 {
		return 0
	}
	return float64(len(g.Delay)) * 100 / float64(total)
}
