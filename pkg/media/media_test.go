package media

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		valid   bool
		wantErr bool
	}{
		{in: "25/1", want: Rational{25, 1}, valid: true},
		{in: "30000/1001", want: Rational{30000, 1001}, valid: true},
		{in: "24", want: Rational{24, 1}, valid: true},
		{in: "0/0", want: Rational{0, 0}, valid: false},
		{in: "abc", wantErr: true},
		{in: "25/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, got.Valid())
		})
	}

	assert.InDelta(t, 29.97, Rational{30000, 1001}.Float(), 0.01)
	assert.Equal(t, 0.0, Rational{1, 0}.Float())
	assert.Equal(t, "30000/1001", Rational{30000, 1001}.String())
}

func TestParseProbeOutput(t *testing.T) {
	t.Run("full stream", func(t *testing.T) {
		info, err := parseProbeOutput([]byte(`{"streams":[{"width":320,"height":240,"r_frame_rate":"25/1","avg_frame_rate":"25/1","nb_frames":"50"}]}`))
		require.NoError(t, err)
		assert.Equal(t, StreamInfo{Width: 320, Height: 240, FrameRate: Rational{25, 1}, Frames: 50}, info)
		assert.Equal(t, 320*240*4, info.FrameSize())
	})

	t.Run("falls back to avg_frame_rate", func(t *testing.T) {
		info, err := parseProbeOutput([]byte(`{"streams":[{"width":8,"height":8,"r_frame_rate":"0/0","avg_frame_rate":"15/1"}]}`))
		require.NoError(t, err)
		assert.Equal(t, Rational{15, 1}, info.FrameRate)
		assert.Equal(t, 0, info.Frames)
	})

	t.Run("no streams", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams":[]}`))
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("zero size", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams":[{"width":0,"height":0,"r_frame_rate":"25/1"}]}`))
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`garbage`))
		assert.ErrorIs(t, err, ErrUnreadable)
	})
}

func TestProbe_ToolMissing(t *testing.T) {
	tools := Tools{FFmpeg: "ffmpeg-does-not-exist", FFprobe: "ffprobe-does-not-exist"}
	assert.False(t, tools.Available())

	_, err := tools.Probe(context.Background(), "whatever.mp4")
	assert.ErrorIs(t, err, ErrToolMissing)

	_, err = tools.OpenDecoder(context.Background(), "whatever.mp4", StreamInfo{Width: 2, Height: 2, FrameRate: Rational{1, 1}})
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestOpenEncoder_InvalidParameters(t *testing.T) {
	_, err := DefaultTools().OpenEncoder(context.Background(), "out.mp4", StreamInfo{Width: 0, Height: 10, FrameRate: Rational{25, 1}})
	assert.Error(t, err)
}

func requireFFmpeg(t *testing.T) Tools {
	t.Helper()
	tools := DefaultTools()
	if !tools.Available() {
		t.Skip("ffmpeg/ffprobe not on PATH")
	}
	return tools
}

// writeTestPattern renders an ffmpeg testsrc clip.
func writeTestPattern(t *testing.T, tools Tools, path string, size string, rate string, frames int) {
	t.Helper()
	out, err := exec.Command(tools.FFmpeg, "-v", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size="+size+":rate="+rate,
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p",
		path).CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tools := requireFFmpeg(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	writeTestPattern(t, tools, src, "64x48", "10", 12)

	ctx := context.Background()
	info, err := tools.Probe(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Equal(t, Rational{10, 1}, info.FrameRate)

	dec, err := tools.OpenDecoder(ctx, src, info)
	require.NoError(t, err)

	dst := filepath.Join(dir, "dst.mp4")
	enc, err := tools.OpenEncoder(ctx, dst, info)
	require.NoError(t, err)

	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, enc.WriteFrame(frame))
	}
	require.NoError(t, dec.Close())
	require.NoError(t, enc.Close())
	assert.Equal(t, 12, dec.Frames())
	assert.Equal(t, 12, enc.Frames())

	out, err := tools.Probe(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, info.Width, out.Width)
	assert.Equal(t, info.Height, out.Height)
	assert.Equal(t, info.FrameRate.Float(), out.FrameRate.Float())
	assert.Equal(t, 12, out.Frames)
}

func TestProbe_CorruptInput(t *testing.T) {
	tools := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "bad.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a video"), 0644))

	_, err := tools.Probe(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnreadable)
}
