package clip

import (
	"fmt"
	"image"

	"github.com/forPelevin/vid2gif/internal/types"
)

// ToRGB returns f with its channels in RGB order. Pix is copied when a swap
// is needed, so decoder buffers are never modified.
func ToRGB(f types.Frame) (types.Frame, error) {
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return types.Frame{}, fmt.Errorf("frame %d: have %d bytes, want %d for %dx%d", f.Index, len(f.Pix), want, f.Width, f.Height)
	}
	switch f.Order {
	case types.OrderRGB:
		return f, nil
	case types.OrderBGR:
		pix := make([]byte, len(f.Pix))
		for i := 0; i+2 < len(f.Pix); i += 3 {
			pix[i] = f.Pix[i+2]
			pix[i+1] = f.Pix[i+1]
			pix[i+2] = f.Pix[i]
		}
		f.Pix = pix
		f.Order = types.OrderRGB
		return f, nil
	default:
		return types.Frame{}, fmt.Errorf("frame %d: unsupported channel order %s", f.Index, f.Order)
	}
}

// Image wraps an RGB frame as an image.RGBA.
func Image(f types.Frame) (*image.RGBA, error) {
	if f.Order != types.OrderRGB {
		return nil, fmt.Errorf("frame %d: want rgb, got %s", f.Index, f.Order)
	}
	if len(f.Pix) != f.Width*f.Height*3 {
		return nil, fmt.Errorf("frame %d: have %d bytes for %dx%d", f.Index, len(f.Pix), f.Width, f.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p, q := 0, 0; p+2 < len(f.Pix); p, q = p+3, q+4 {
		img.Pix[q] = f.Pix[p]
		img.Pix[q+1] = f.Pix[p+1]
		img.Pix[q+2] = f.Pix[p+2]
		img.Pix[q+3] = 0xff
	}
	return img, nil
}
