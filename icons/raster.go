package icons

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// maxIconDimension rejects attacker-supplied sizes above this sanity limit
// on either axis before any decode work is attempted (§5).
const maxIconDimension = 16384

// DecodeError wraps image or SVG decode failures (§7).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("icons: decode: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// renderRaster decodes a PNG/JPEG/GIF image and resamples it to exactly
// size×size. Raster icons are always resampled, never left at their
// intrinsic size, because upstream-declared sizes are untrusted (§4.6).
// storeSizes never requests a size above the largest match it found;
// renderRaster itself is dimension-neutral and resamples to whatever size
// it is given.
func renderRaster(data []byte, size int) ([]byte, error) {
	w, h, err := nativeSize(data)
	if err != nil {
		return nil, err
	}
	if w > maxIconDimension || h > maxIconDimension {
		return nil, &DecodeError{Err: fmt.Errorf("image dimensions %dx%d exceed sanity limit", w, h)}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return out.Bytes(), nil
}

// nativeSize returns an image's intrinsic pixel dimensions from its header
// alone; renderRaster uses it to reject oversized images before decoding
// any pixel data.
func nativeSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, &DecodeError{Err: err}
	}
	return cfg.Width, cfg.Height, nil
}
