package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// Codec settings for the output container. mp4v is the MPEG-4 Part 2 fourcc.
const (
	outputCodec = "mpeg4"
	outputTag   = "mp4v"
)

// Encoder writes RGBA frames to an MP4 file.
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	info   StreamInfo
	frames int
	closed bool
}

// OpenEncoder starts ffmpeg writing an mp4v-tagged MP4 to path with the
// frame rate and dimensions in info. An existing file is overwritten.
func (t Tools) OpenEncoder(ctx context.Context, path string, info StreamInfo) (*Encoder, error) {
	if info.Width <= 0 || info.Height <= 0 || !info.FrameRate.Valid() {
		return nil, fmt.Errorf("invalid encoder parameters %dx%d@%s", info.Width, info.Height, info.FrameRate)
	}

	e := &Encoder{info: info}
	e.cmd = exec.CommandContext(ctx, t.FFmpeg,
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(info.Width)+"x"+strconv.Itoa(info.Height),
		"-framerate", info.FrameRate.String(),
		"-i", "-",
		"-an",
		"-c:v", outputCodec,
		"-vtag", outputTag,
		"-q:v", "3",
		"-pix_fmt", "yuv420p",
		"-f", "mp4",
		path,
	)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, startError(t.FFmpeg, err)
	}
	return e, nil
}

// Frames returns the number of frames written so far.
func (e *Encoder) Frames() int {
	return e.frames
}

// WriteFrame appends img to the stream. img must match the encoder's dimensions.
func (e *Encoder) WriteFrame(img *image.NRGBA) error {
	b := img.Bounds()
	if b.Dx() != e.info.Width || b.Dy() != e.info.Height {
		return fmt.Errorf("frame %d is %dx%d, encoder expects %dx%d",
			e.frames+1, b.Dx(), b.Dy(), e.info.Width, e.info.Height)
	}

	rowLen := b.Dx() * 4
	if img.Stride == rowLen {
		start := img.PixOffset(b.Min.X, b.Min.Y)
		if _, err := e.stdin.Write(img.Pix[start : start+rowLen*b.Dy()]); err != nil {
			return e.writeError(err)
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := img.PixOffset(b.Min.X, y)
			if _, err := e.stdin.Write(img.Pix[start : start+rowLen]); err != nil {
				return e.writeError(err)
			}
		}
	}
	e.frames++
	return nil
}

// writeError reports a broken pipe. ffmpeg's own message is only safe to
// read after Wait, so Close carries it.
func (e *Encoder) writeError(err error) error {
	return fmt.Errorf("writing frame %d: %w", e.frames+1, err)
}

// Close flushes the stream and waits for ffmpeg to finalise the file.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	_ = e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return exitError("ffmpeg encode", err, &e.stderr)
	}
	return nil
}
