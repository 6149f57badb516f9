// Package augment applies randomized flip, rotation and brightness/contrast
// augmentations plus a caption overlay to an uploaded image or to every frame
// of an uploaded video.
//
// Both media kinds share one transform core: a frame is decoded into an
// *image.NRGBA, run through the Chain, captioned, and handed to the kind's
// encoder. Every call returns a Result; failures never panic.
package augment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"time"

	"github.com/dixieflatline76/Jitter/pkg/media"
	"github.com/dixieflatline76/Jitter/pkg/output"
	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/google/uuid"
)

// ProgressFunc is called after each video frame is written.
// total is 0 when the container does not record a frame count. Once the
// input is exhausted it is called one last time with frames == total.
type ProgressFunc func(jobID string, frames, total int)

// Options configures an Augmenter.
type Options struct {
	Files       *output.FileManager
	Tools       media.Tools
	Font        *Font   // nil uses the embedded default face
	FontSize    float64 // caption size in pixels
	JPEGQuality int
	Seed        uint64 // 0 draws a fresh seed for every job
	Chain       Chain  // nil uses DefaultChain
	Progress    ProgressFunc
}

// Augmenter runs augmentation jobs. It is safe for concurrent use; each job
// gets its own random source and caption face.
type Augmenter struct {
	files    *output.FileManager
	tools    media.Tools
	font     *Font
	fontSize float64
	codec    imageCodec
	seed     uint64
	chain    Chain
	progress ProgressFunc
}

// New creates an Augmenter from opts.
func New(opts Options) (*Augmenter, error) {
	if opts.Files == nil {
		return nil, errors.New("augment: output file manager is required")
	}
	if opts.Font == nil {
		f, err := LoadFont("")
		if err != nil {
			return nil, err
		}
		opts.Font = f
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 24
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 95
	}
	if opts.Chain == nil {
		opts.Chain = DefaultChain()
	}
	if opts.Tools.FFmpeg == "" || opts.Tools.FFprobe == "" {
		opts.Tools = media.DefaultTools()
	}

	return &Augmenter{
		files:    opts.Files,
		tools:    opts.Tools,
		font:     opts.Font,
		fontSize: opts.FontSize,
		codec:    imageCodec{quality: opts.JPEGQuality},
		seed:     opts.Seed,
		chain:    opts.Chain,
		progress: opts.Progress,
	}, nil
}

// Request is one augmentation job.
type Request struct {
	ID      string // optional; generated when empty
	Payload []byte
	Caption string
	Kind    Kind
}

// Process augments payload as the given kind and writes the result to the output directory.
func (a *Augmenter) Process(ctx context.Context, payload []byte, caption string, kind Kind) Result {
	return a.Run(ctx, Request{Payload: payload, Caption: caption, Kind: kind})
}

// Run executes req and returns its Result.
func (a *Augmenter) Run(ctx context.Context, req Request) Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := time.Now()

	res := a.run(ctx, req)

	if res.OK() {
		log.Printf("Job %s: %s done in %s (%dx%d, %d frames) -> %s",
			req.ID, req.Kind, time.Since(start).Round(time.Millisecond), res.Width, res.Height, res.Frames, res.Path)
	} else {
		log.Printf("Job %s: %s failed after %s: %v",
			req.ID, req.Kind, time.Since(start).Round(time.Millisecond), res.Error())
	}
	return res
}

func (a *Augmenter) run(ctx context.Context, req Request) Result {
	if req.Kind != KindImage && req.Kind != KindVideo {
		return failed(req.Kind, req.ID, newError(InvalidInput, CodeUnknownKind, fmt.Sprintf("unknown file type %s", req.Kind), nil))
	}
	if len(req.Payload) == 0 {
		return failed(req.Kind, req.ID, newError(InvalidInput, CodeEmptyPayload, "payload is empty", nil))
	}
	if err := a.files.EnsureDirs(); err != nil {
		return failed(req.Kind, req.ID, newError(EncodingFailure, CodeOutputDir, "output directory unavailable", err))
	}

	overlay, err := a.font.Overlay(a.fontSize)
	if err != nil {
		return failed(req.Kind, req.ID, newError(EncodingFailure, CodeEncode, "caption font unavailable", err))
	}
	defer overlay.Close()

	j := &job{Request: req, rng: a.newRand(), overlay: overlay}
	if req.Kind == KindImage {
		return a.processImage(ctx, j)
	}
	return a.processVideo(ctx, j)
}

// job carries the per-request state that must not be shared between goroutines.
type job struct {
	Request
	rng     *rand.Rand
	overlay *Overlay
}

// augmentFrame is the transform core shared by both kinds: the chain, then the caption.
func (j *job) augmentFrame(chain Chain, src image.Image) (*image.NRGBA, Record) {
	out, rec := chain.Apply(src, j.rng)
	j.overlay.Draw(out, j.Caption)
	return out, rec
}

func (a *Augmenter) newRand() *rand.Rand {
	if a.seed != 0 {
		return rand.New(rand.NewPCG(a.seed, a.seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (a *Augmenter) processImage(ctx context.Context, j *job) Result {
	img, format, err := a.codec.decode(ctx, j.Payload)
	if err != nil {
		if ctx.Err() != nil {
			return failed(KindImage, j.ID, newError(EncodingFailure, CodeCancelled, "cancelled", ctx.Err()))
		}
		return failed(KindImage, j.ID, newError(InvalidInput, CodeImageDecode, "image could not be decoded", err))
	}

	out, rec := j.augmentFrame(a.chain, img)
	log.Debugf("Job %s: %s image %dx%d: %s", j.ID, format, out.Bounds().Dx(), out.Bounds().Dy(), rec)

	name := a.files.ImageName()
	path, err := a.files.WriteFile(name, func(w io.Writer) error {
		return a.codec.encode(ctx, w, out)
	})
	if err != nil {
		if ctx.Err() != nil {
			return failed(KindImage, j.ID, newError(EncodingFailure, CodeCancelled, "cancelled", ctx.Err()))
		}
		return failed(KindImage, j.ID, newError(EncodingFailure, CodeEncode, "image could not be written", err))
	}

	return Result{
		Status: Success,
		Kind:   KindImage,
		JobID:  j.ID,
		Path:   path,
		Name:   name,
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
		Frames: 1,
		Record: rec,
	}
}
