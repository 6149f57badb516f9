// Package media wraps the ffmpeg and ffprobe executables for frame-level video access.
//
// Frames cross the process boundary as raw RGBA so callers work with plain
// *image.NRGBA values and never see codec details.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
)

var (
	// ErrToolMissing is returned when ffmpeg or ffprobe cannot be started.
	ErrToolMissing = errors.New("media tool not found")
	// ErrUnreadable is returned when ffprobe cannot open the input.
	ErrUnreadable = errors.New("media could not be opened")
	// ErrNoVideoStream is returned when the input has no video stream.
	ErrNoVideoStream = errors.New("no video stream")
)

// Tools holds the executable paths for ffmpeg and ffprobe.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// DefaultTools resolves both binaries from PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// Available reports whether both executables can be found.
func (t Tools) Available() bool {
	if _, err := exec.LookPath(t.FFmpeg); err != nil {
		return false
	}
	_, err := exec.LookPath(t.FFprobe)
	return err == nil
}

// Rational is an exact frame rate such as 30000/1001.
type Rational struct {
	Num int
	Den int
}

// ParseRational parses "num/den" or a plain integer.
func ParseRational(s string) (Rational, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		den = "1"
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return Rational{Num: n, Den: d}, nil
}

// Valid reports whether r describes a positive rate.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float returns r as a float64, or 0 when invalid.
func (r Rational) Float() float64 {
	if !r.Valid() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	Width     int
	Height    int
	FrameRate Rational
	Frames    int // 0 when the container does not record a count
}

// FrameSize returns the byte size of one RGBA frame.
func (s StreamInfo) FrameSize() int {
	return s.Width * s.Height * 4
}

// startError maps a failure to launch a binary onto ErrToolMissing.
func startError(name string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", ErrToolMissing, name, err)
	}
	return fmt.Errorf("starting %s: %w", name, err)
}

// exitError attaches the tool's stderr to a non-zero exit.
func exitError(name string, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w\noutput: %s", name, err, msg)
}
