package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vid2gif/internal/logging"
	"github.com/forPelevin/vid2gif/internal/pipeline"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/gifenc"
	"github.com/forPelevin/vid2gif/internal/session"
	"github.com/forPelevin/vid2gif/internal/web"
)

func runConvert(cmd *cobra.Command, input string) error {
	out, _ := cmd.Flags().GetString("out")
	start, _ := cmd.Flags().GetFloat64("start")
	end, _ := cmd.Flags().GetFloat64("end")
	speed, _ := cmd.Flags().GetFloat64("speed")
	decoder, _ := cmd.Flags().GetString("decoder")
	dither, _ := cmd.Flags().GetBool("dither")
	pal, _ := cmd.Flags().GetString("palette")
	quiet, _ := cmd.Flags().GetBool("quiet")
	maxSec, _ := cmd.Flags().GetInt("max-window")

	video, err := openerFor(decoder, getenvDefault("VID2GIF_FFMPEG", "ffmpeg"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	in := input
	if in != pipeline.StdinInput {
		if in, err = filepath.Abs(input); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := pipeline.Config{
		Input:     in,
		Stdin:     cmd.InOrStdin(),
		Output:    out,
		Start:     start,
		End:       end,
		Speed:     speed,
		MaxWindow: time.Duration(maxSec) * time.Second,
		Dither:    dither,
		Palette:   pal,
		Video:     video,
		CacheDir:  os.Getenv("VID2GIF_CACHE_DIR"),
	}
	if !quiet {
		cfg.Logf = func(format string, args ...any) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s "+format+"\n", append([]any{time.Now().Format("15:04:05")}, args...)...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
	return nil
}

func runServe(cmd *cobra.Command) error {
	cfg, err := serverConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	video, err := openerFor(getenvDefault("VID2GIF_DECODER", decoderOpenCV), getenvDefault("VID2GIF_FFMPEG", "ffmpeg"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := getenvDefault("VID2GIF_LOG_LEVEL", string(logging.LogLevelInfo))
	logger, closer := logging.CreateLogger(logging.LogLevel(level), os.Getenv("VID2GIF_LOG_DIR"), "vid2gif")
	defer closer.Close()
	lvl, ok := logging.ParseLevel(level)
	if !ok {
		logger.Warn("unknown log level, using info", "level", level)
	}
	if lvl > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	mgr, err := session.NewManager(session.Config{
		Root:   os.Getenv("VID2GIF_CACHE_DIR"),
		TTL:    cfg.SessionTTL,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	pal, err := gifenc.ParsePalette(os.Getenv("VID2GIF_PALETTE"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	srv, err := web.NewServer(cfg, web.Deps{
		Logger:   logger,
		Sessions: mgr,
		Video:    video,
		Encoder:  gifenc.New(gifenc.Options{Dither: os.Getenv("VID2GIF_DITHER") == "1", Palette: pal}),
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	fmt.Fprintf(cmd.ErrOrStderr(), "vid2gif listening on http://%s\n", cfg.Addr)
	return srv.Run(ctx)
}

func serverConfigFromEnv() (web.Config, error) {
	cfg := web.Config{
		Addr:           getenvDefault("VID2GIF_ADDR", web.DefaultAddr),
		MaxUploadBytes: web.DefaultMaxUploadBytes,
		MaxWindow:      web.DefaultMaxWindow,
		SessionTTL:     session.DefaultTTL,
		SessionKey:     []byte(os.Getenv("VID2GIF_SESSION_KEY")),
		SecureCookie:   os.Getenv("VID2GIF_SECURE_COOKIE") == "1",
	}
	if v := os.Getenv("VID2GIF_MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return web.Config{}, fmt.Errorf("VID2GIF_MAX_UPLOAD_MB: %w", err)
		}
		cfg.MaxUploadBytes = mb << 20
	}
	if v := os.Getenv("VID2GIF_MAX_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return web.Config{}, fmt.Errorf("VID2GIF_MAX_WINDOW: %w", err)
		}
		cfg.MaxWindow = d
	}
	if v := os.Getenv("VID2GIF_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return web.Config{}, fmt.Errorf("VID2GIF_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
