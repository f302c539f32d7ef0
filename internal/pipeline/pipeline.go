package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/gifenc"
	"github.com/forPelevin/vid2gif/internal/types"
	"github.com/forPelevin/vid2gif/internal/usecase"
)

// StdinInput makes Run read the video bytes from Config.Stdin.
const StdinInput = "-"

type Config struct {
	Input  string
	Stdin  io.Reader
	Output string

	Start     float64
	End       float64
	Speed     float64
	MaxWindow time.Duration
	Dither    bool
	// Palette names a gifenc palette; empty means adaptive.
	Palette string

	Video   ports.VideoOpener
	Encoder ports.GIFEncoder
	Logf    func(format string, args ...any)

	// CacheDir is the base directory for per-run workspaces.
	// If empty, defaults to os.TempDir().
	CacheDir string
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if c.Input == StdinInput {
		if c.Stdin == nil {
			return errors.New("stdin input requested but no reader is attached")
		}
	} else {
		st, err := os.Stat(c.Input)
		if err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if st.IsDir() {
			return fmt.Errorf("input %s is a directory", c.Input)
		}
	}
	if c.Video == nil {
		return errors.New("video decoder is required")
	}
	if _, err := gifenc.ParsePalette(c.Palette); err != nil {
		return err
	}
	if err := clip.ValidateWindow(types.TimeWindow{StartSec: c.Start, EndSec: c.End}, c.MaxWindow); err != nil {
		return err
	}
	return clip.ValidateSpeed(c.Speed)
}

type Result struct {
	OutputPath string
	Stats      types.Stats
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	enc := cfg.Encoder
	if enc == nil {
		pal, err := gifenc.ParsePalette(cfg.Palette)
		if err != nil {
			return Result{}, err
		}
		enc = gifenc.New(gifenc.Options{Dither: cfg.Dither, Palette: pal})
	}
	uc := usecase.New(usecase.Deps{Video: cfg.Video, Encoder: enc})

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = os.TempDir()
	}
	runDir := buildRunDir(filepath.Join(baseCache, "vid2gif"), cfg.Input, time.Now().UTC())
	logf("preparing workspace")
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(runDir)
	logf("workspace: %s", runDir)

	videoPath := cfg.Input
	if cfg.Input == StdinInput {
		p, n, err := spoolStdin(cfg.Stdin, runDir)
		if err != nil {
			return Result{}, err
		}
		logf("read %d bytes from stdin", n)
		videoPath = p
	}

	res, err := uc.Convert(ctx, usecase.Input{
		VideoPath: videoPath,
		Window:    types.TimeWindow{StartSec: cfg.Start, EndSec: cfg.End},
		Speed:     cfg.Speed,
		MaxWindow: cfg.MaxWindow,
		Logf:      logf,
	})
	if err != nil {
		return Result{}, err
	}

	out := cfg.Output
	if out == "" {
		out = defaultOutputName(cfg.Input)
	}
	if err := writeAtomic(out, res.Artifact.Data); err != nil {
		return Result{}, err
	}
	logf("gif written (%d frames, %.2f fps): %s", res.Stats.Frames, res.Stats.OutputFPS, out)
	return Result{OutputPath: out, Stats: res.Stats}, nil
}

func spoolStdin(r io.Reader, dir string) (string, int64, error) {
	p := filepath.Join(dir, "input.video")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("read stdin: %w", err)
	}
	if n == 0 {
		return "", 0, &clip.DecodeError{Op: "read", Path: StdinInput, Err: errors.New("empty input")}
	}
	return p, n, nil
}

// writeAtomic writes next to path and renames, so a failed run never leaves
// a truncated GIF behind.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vid2gif-*.gif")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func defaultOutputName(input string) string {
	if input == StdinInput {
		return types.DefaultArtifactName
	}
	name := normalizePathSegment(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	if name == "" {
		return types.DefaultArtifactName
	}
	return name + ".gif"
}

func buildRunDir(root, input string, now time.Time) string {
	name := "stdin"
	if input != StdinInput {
		name = normalizePathSegment(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	}
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return filepath.Join(root, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ensure adapters implement ports
var _ ports.GIFEncoder = (*gifenc.Adapter)(nil)
