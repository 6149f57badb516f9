package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
)

// Decoder streams the frames of a video as RGBA images.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	info   StreamInfo
	frames int
	done   bool
}

// OpenDecoder starts ffmpeg decoding the first video stream of path into raw RGBA.
// info must come from Probe on the same file.
func (t Tools) OpenDecoder(ctx context.Context, path string, info StreamInfo) (*Decoder, error) {
	d := &Decoder{info: info}
	d.cmd = exec.CommandContext(ctx, t.FFmpeg,
		"-v", "error",
		"-nostdin",
		"-noautorotate", // keep the coded size ffprobe reported
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "passthrough", // one output frame per decoded frame
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	d.cmd.Stderr = &d.stderr

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}
	d.stdout = stdout

	if err := d.cmd.Start(); err != nil {
		return nil, startError(t.FFmpeg, err)
	}
	return d, nil
}

// Frames returns the number of frames read so far.
func (d *Decoder) Frames() int {
	return d.frames
}

// Next returns the next frame, or io.EOF after the last one.
// Each call returns a freshly allocated image the caller may keep.
func (d *Decoder) Next() (*image.NRGBA, error) {
	if d.done {
		return nil, io.EOF
	}

	img := image.NewNRGBA(image.Rect(0, 0, d.info.Width, d.info.Height))
	_, err := io.ReadFull(d.stdout, img.Pix)
	switch {
	case err == nil:
		d.frames++
		return img, nil
	case errors.Is(err, io.EOF):
		d.done = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		d.done = true
		return nil, fmt.Errorf("truncated frame %d", d.frames+1)
	default:
		d.done = true
		return nil, fmt.Errorf("reading frame %d: %w", d.frames+1, err)
	}
}

// Close waits for ffmpeg to exit and reports decode errors it printed.
func (d *Decoder) Close() error {
	// Drain so ffmpeg is not left blocked on a full pipe when we stop early.
	_, _ = io.Copy(io.Discard, d.stdout)
	if err := d.cmd.Wait(); err != nil {
		return exitError("ffmpeg decode", err, &d.stderr)
	}
	return nil
}
