package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe reads the dimensions, frame rate and frame count of the first video stream in path.
func (t Tools) Probe(ctx context.Context, path string) (StreamInfo, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames",
		"-of", "json",
		path,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return StreamInfo{}, ctx.Err()
			}
			return StreamInfo{}, fmt.Errorf("%w: %v", ErrUnreadable, exitError("ffprobe", err, &stderr))
		}
		return StreamInfo{}, startError(t.FFprobe, err)
	}
	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("%w: decoding ffprobe output: %v", ErrUnreadable, err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, ErrNoVideoStream
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnreadable, s.Width, s.Height)
	}

	info := StreamInfo{Width: s.Width, Height: s.Height}

	// r_frame_rate is the stream's base rate; avg_frame_rate covers containers that leave it at 0/0.
	for _, candidate := range []string{s.RFrameRate, s.AvgFrameRate} {
		if r, err := ParseRational(candidate); err == nil && r.Valid() {
			info.FrameRate = r
			break
		}
	}
	if !info.FrameRate.Valid() {
		return StreamInfo{}, fmt.Errorf("%w: no usable frame rate", ErrUnreadable)
	}

	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.Frames = n
	}
	return info, nil
}
