// probe_media prints what Jitter sees in a file: the dimensions of an image,
// or the dimensions, frame rate and frame count of a video.
//
//	go run ./cmd/util/probe_media in.mp4 ~/augmented_videos/augmented_video.mp4
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/dixieflatline76/Jitter/pkg/media"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func main() {
	ffprobe := flag.String("ffprobe", "ffprobe", "ffprobe binary")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: probe_media [-ffprobe path] file...")
		os.Exit(2)
	}

	tools := media.Tools{FFmpeg: "ffmpeg", FFprobe: *ffprobe}
	failed := false
	for _, path := range flag.Args() {
		if err := probe(tools, path); err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func probe(tools media.Tools, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if cfg, format, err := image.DecodeConfig(f); err == nil {
		fmt.Printf("%s: %s image %dx%d\n", path, format, cfg.Width, cfg.Height)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := tools.Probe(ctx, path)
	if err != nil {
		return err
	}
	frames := "unknown"
	if info.Frames > 0 {
		frames = fmt.Sprint(info.Frames)
	}
	fmt.Printf("%s: video %dx%d @ %s fps (%.3f), %s frames\n",
		path, info.Width, info.Height, info.FrameRate, info.FrameRate.Float(), frames)
	return nil
}
