//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"testing"
)

// probeFrameCount decodes the whole first video stream and counts frames.
func probeFrameCount(path string) (int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse frame count %q: %w", s, err)
	}
	return n, nil
}

// makeTestVideo renders an H.264 testsrc clip with one keyframe per second.
func makeTestVideo(t *testing.T, path string, seconds, fps int) {
	t.Helper()
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=160x120:rate=%d:duration=%d", fps, seconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(fps),
		path,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}
