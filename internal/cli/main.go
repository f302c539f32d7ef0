package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/ports/adapters/gifenc"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vid2gif",
		Short:        "Turn a time window of a video into an animated GIF",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(newConvertCmd(), newServeCmd())
	return root
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert a window of a local video (or - for stdin) to a GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0])
		},
	}

	cmd.Flags().String("out", "", "Output GIF path (default <input-name>.gif)")
	cmd.Flags().Float64("start", clip.DefaultStartSec, "Window start in seconds")
	cmd.Flags().Float64("end", clip.DefaultEndSec, "Window end in seconds")
	cmd.Flags().Float64("speed", clip.DefaultSpeed, "Playback speed multiplier (0.1-10)")
	cmd.Flags().String("decoder", getenvDefault("VID2GIF_DECODER", decoderOpenCV), "Video decoder: opencv or ffmpeg")
	cmd.Flags().Bool("dither", false, "Floyd-Steinberg dithering when quantizing frames")
	cmd.Flags().String("palette", getenvDefault("VID2GIF_PALETTE", gifenc.PaletteAdaptive), "GIF palette: adaptive, plan9 or websafe")
	cmd.Flags().BoolP("quiet", "q", false, "Only print the output path")

	// Hidden tuning flag (internal)
	cmd.Flags().Int("max-window", 60, "Max window length in seconds (0 disables)")
	_ = cmd.Flags().MarkHidden("max-window")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload-and-convert web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default $VID2GIF_ADDR or 127.0.0.1:8080)")
	return cmd
}
