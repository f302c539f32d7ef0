//go:build integration

package itest

import (
	"bytes"
	"context"
	"errors"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/pipeline"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/gifenc"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/opencv"
)

func TestE2E(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input.mp4")
	makeTestVideo(t, in, 10, 30)

	if n, err := probeFrameCount(in); err != nil || n != 300 {
		t.Fatalf("fixture has %d frames (err=%v), want 300", n, err)
	}
	ff := ffmpeg.New("ffmpeg")
	if info, err := ff.Probe(in); err != nil || math.Abs(info.Duration.Seconds()-10) > 0.1 || info.FrameRate != 30 {
		t.Fatalf("fixture probe %+v (err=%v), want 10s at 30fps", info, err)
	}

	decoders := map[string]ports.VideoOpener{
		"ffmpeg": ff,
		"opencv": opencv.New(),
	}
	cases := []struct {
		name       string
		start, end float64
		speed      float64
		wantFrames int
		wantFPS    float64
	}{
		{"real time", 2, 4, 1, 61, 30},
		{"double speed", 2, 4, 2, 31, 15},
		{"slow motion keeps every frame", 0, 1, 0.5, 31, 60},
		{"tail of the video", 9.5, 12, 1, 15, 30},
		{"slowest speed folds frames into the gif rate", 0, 1, 0.1, 11, 100},
	}

	for dname, video := range decoders {
		for _, tc := range cases {
			t.Run(dname+"/"+tc.name, func(t *testing.T) {
				out := filepath.Join(tmp, dname+"-"+filepath.Base(t.Name())+".gif")
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				cfg := pipeline.Config{
					Input:     in,
					Output:    out,
					Start:     tc.start,
					End:       tc.end,
					Speed:     tc.speed,
					MaxWindow: time.Minute,
					Video:     video,
					Encoder:   gifenc.New(gifenc.Options{}),
					CacheDir:  tmp,
				}
				if err := cfg.Validate(); err != nil {
					t.Fatalf("config: %v", err)
				}
				res, err := pipeline.Run(ctx, cfg)
				if err != nil {
					t.Fatalf("pipeline failed: %v", err)
				}
				if res.Stats.Frames != tc.wantFrames || math.Abs(res.Stats.OutputFPS-tc.wantFPS) > 1e-9 {
					t.Fatalf("stats %+v, want %d frames at %g fps", res.Stats, tc.wantFrames, tc.wantFPS)
				}

				b, err := os.ReadFile(out)
				if err != nil {
					t.Fatalf("read gif: %v", err)
				}
				g, err := gif.DecodeAll(bytes.NewReader(b))
				if err != nil {
					t.Fatalf("decode gif: %v", err)
				}
				if len(g.Image) != tc.wantFrames {
					t.Fatalf("gif has %d frames, want %d", len(g.Image), tc.wantFrames)
				}
				if got := gifenc.DeclaredFPS(g); math.Abs(got-tc.wantFPS)/tc.wantFPS > 0.01 {
					t.Fatalf("gif declares %.3f fps, want %g", got, tc.wantFPS)
				}
				if g.Config.Width != 160 || g.Config.Height != 120 {
					t.Fatalf("gif is %dx%d, want 160x120", g.Config.Width, g.Config.Height)
				}
			})
		}

		t.Run(dname+"/window past end", func(t *testing.T) {
			out := filepath.Join(tmp, dname+"-empty.gif")
			_, err := pipeline.Run(context.Background(), pipeline.Config{
				Input: in, Output: out, Start: 20, End: 25, Speed: 1, Video: video, CacheDir: tmp,
			})
			if !errors.Is(err, clip.ErrEmptyClip) {
				t.Fatalf("expected ErrEmptyClip, got %v", err)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Fatalf("no gif should be written, stat err=%v", err)
			}
		})
	}
}
