package web

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AllowedExtensions are the upload containers the form accepts.
var AllowedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// containers maps a detected MIME type, or one of its parents, to the
// container name logged for an upload. Every ISO BMFF file detects as
// video/mp4 or a child of it, whatever its brand.
var containers = map[string]string{
	"video/quicktime":  "mov",
	"video/mp4":        "mp4",
	"video/x-msvideo":  "avi",
	"video/x-matroska": "mkv",
	"video/webm":       "mkv",
}

var errShortHeader = errors.New("data too short to determine file type")

// DetectVideo sniffs the container from the first bytes of an upload.
// It returns "mp4", "mov", "avi", "mkv" or "" when data is not a video
// container. Whether the streams inside decode is left to the decoder.
func DetectVideo(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errShortHeader
	}
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") {
		return "", nil
	}
	for m := mt; m != nil; m = m.Parent() {
		if format, ok := containers[m.String()]; ok {
			return format, nil
		}
	}
	return "", nil
}

func allowedExt(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext, AllowedExtensions[ext]
}
