package clip

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWindow = errors.New("invalid time window")
	ErrInvalidSpeed  = errors.New("invalid speed multiplier")
	ErrEmptyClip     = errors.New("no frames in the requested window")
)

// DecodeError reports that a video source could not produce frames.
type DecodeError struct {
	Op   string
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("decode %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err was caused by request parameters rather
// than by the video itself.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidSpeed) ||
		errors.Is(err, ErrEmptyClip)
}

// IsDecode reports whether err carries a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
