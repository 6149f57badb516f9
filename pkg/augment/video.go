package augment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/dixieflatline76/Jitter/pkg/media"
	"github.com/dixieflatline76/Jitter/util/log"
	"golang.org/x/sync/errgroup"
)

// frameBuffer is how many decoded frames may wait for the transform stage.
const frameBuffer = 4

func (a *Augmenter) processVideo(ctx context.Context, j *job) Result {
	fail := func(status Status, code Code, reason string, err error) Result {
		if ctx.Err() != nil {
			return failed(KindVideo, j.ID, newError(EncodingFailure, CodeCancelled, "cancelled", ctx.Err()))
		}
		return failed(KindVideo, j.ID, newError(status, code, reason, err))
	}

	// ffprobe needs a seekable file: MP4 indexes often sit at the end.
	src, err := writeTempPayload(j.Payload)
	if err != nil {
		return fail(EncodingFailure, CodeEncode, "could not stage upload", err)
	}
	defer os.Remove(src)

	info, err := a.tools.Probe(ctx, src)
	if err != nil {
		if errors.Is(err, media.ErrToolMissing) {
			return fail(EncodingFailure, CodeToolMissing, "ffprobe unavailable", err)
		}
		return fail(InvalidInput, CodeVideoUnopenable, "video could not be opened", err)
	}
	log.Debugf("Job %s: video %dx%d @ %s fps, %d frames reported", j.ID, info.Width, info.Height, info.FrameRate, info.Frames)

	partial, err := a.files.TempFile(".mp4")
	if err != nil {
		return fail(EncodingFailure, CodeOutputDir, "output directory unavailable", err)
	}
	partialPath := partial.Name()
	partial.Close()
	defer os.Remove(partialPath) // no-op once committed

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dec, err := a.tools.OpenDecoder(jobCtx, src, info)
	if err != nil {
		if errors.Is(err, media.ErrToolMissing) {
			return fail(EncodingFailure, CodeToolMissing, "ffmpeg unavailable", err)
		}
		return fail(InvalidInput, CodeVideoUnopenable, "video could not be opened", err)
	}
	enc, err := a.tools.OpenEncoder(jobCtx, partialPath, info)
	if err != nil {
		cancel()
		_ = dec.Close()
		if errors.Is(err, media.ErrToolMissing) {
			return fail(EncodingFailure, CodeToolMissing, "ffmpeg unavailable", err)
		}
		return fail(EncodingFailure, CodeEncode, "could not start encoder", err)
	}

	decodeErr, encodeErr := a.pump(jobCtx, j, dec, enc, info)
	if decodeErr != nil || encodeErr != nil {
		cancel() // stop whichever process is still running
	}
	if err := dec.Close(); err != nil && decodeErr == nil && encodeErr == nil {
		decodeErr = err
	}
	if err := enc.Close(); err != nil && encodeErr == nil && decodeErr == nil {
		encodeErr = err
	}

	switch {
	case decodeErr != nil:
		return fail(InvalidInput, CodeVideoDecode, fmt.Sprintf("decoding stopped after %d frames", dec.Frames()), decodeErr)
	case encodeErr != nil:
		return fail(EncodingFailure, CodeEncode, fmt.Sprintf("encoding stopped after %d frames", enc.Frames()), encodeErr)
	case enc.Frames() == 0:
		return fail(InvalidInput, CodeVideoUnopenable, "video contains no frames", nil)
	}

	if info.Frames > 0 && enc.Frames() != info.Frames {
		log.Printf("Job %s: container reported %d frames, decoded %d", j.ID, info.Frames, enc.Frames())
	}

	if st, err := os.Stat(partialPath); err != nil || st.Size() == 0 {
		return fail(EncodingFailure, CodeOutputMissing, "output video was not produced", err)
	}

	name := a.files.VideoName()
	path, err := a.files.Commit(partialPath, name)
	if err != nil {
		return fail(EncodingFailure, CodeOutputMissing, "output video could not be moved into place", err)
	}

	return Result{
		Status: Success,
		Kind:   KindVideo,
		JobID:  j.ID,
		Path:   path,
		Name:   name,
		Width:  info.Width,
		Height: info.Height,
		Frames: enc.Frames(),
	}
}

// pump moves frames from dec through the transform core into enc. Decoding
// runs one frame ahead of transforming and encoding; frame order is kept.
func (a *Augmenter) pump(ctx context.Context, j *job, dec *media.Decoder, enc *media.Encoder, info media.StreamInfo) (decodeErr, encodeErr error) {
	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan *image.NRGBA, frameBuffer)

	g.Go(func() error {
		defer close(frames)
		for {
			frame, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				decodeErr = err
				return err
			}
			select {
			case frames <- frame:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for frame := range frames {
			out, rec := j.augmentFrame(a.chain, frame)
			if err := enc.WriteFrame(out); err != nil {
				encodeErr = err
				return err
			}
			if n := enc.Frames(); n == 1 || n%100 == 0 {
				log.Debugf("Job %s: frame %d: %s", j.ID, n, rec)
			}
			// A frame reaching the probed count is left to the final call below.
			if n := enc.Frames(); a.progress != nil && (info.Frames == 0 || n < info.Frames) {
				a.progress(j.ID, n, info.Frames)
			}
		}
		if n := enc.Frames(); a.progress != nil && n > 0 && decodeErr == nil && gctx.Err() == nil {
			a.progress(j.ID, n, n)
		}
		return nil
	})

	if err := g.Wait(); err != nil && decodeErr == nil && encodeErr == nil {
		// Only cancellation gets here.
		encodeErr = err
	}
	return decodeErr, encodeErr
}

// writeTempPayload persists an upload so ffmpeg can seek in it.
func writeTempPayload(payload []byte) (string, error) {
	f, err := os.CreateTemp("", "jitter-upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp upload: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temp upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing temp upload: %w", err)
	}
	return f.Name(), nil
}
