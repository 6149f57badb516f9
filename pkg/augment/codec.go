package augment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// imageCodec decodes uploads and encodes JPEG outputs with context awareness.
type imageCodec struct {
	quality int
}

// decode decodes a still image from a byte slice. The format name is returned alongside.
func (c imageCodec) decode(ctx context.Context, data []byte) (image.Image, string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, format, fmt.Errorf("decoding image: empty %s image", format)
	}

	if err := checkContext(ctx); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// encode writes img to w as JPEG.
func (c imageCodec) encode(ctx context.Context, w io.Writer, img image.Image) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
