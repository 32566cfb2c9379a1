package storage

import (
	"bytes"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	// maxDimension is the longest side kept after recompression.
	maxDimension = 1920
	// maxDimensionAllowed guards against pathological inputs: anything
	// larger is stored as-is rather than decoded into memory.
	maxDimensionAllowed = 10000
	jpegQuality         = 85
)

// IsImageUpload reports whether the extension marks a recompressible image.
func IsImageUpload(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// CompressImage downscales an uploaded image to at most 1920px on its longest
// side and re-encodes it (JPEG q85, PNG max compression). On any decode or
// encode failure the original bytes come back unchanged: a bad compressor
// must never lose a member's document.
func CompressImage(data []byte, ext string, lg *zap.SugaredLogger) []byte {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		lg.Warnw("image decode failed, storing original", "error", err)
		return data
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxDimensionAllowed || h > maxDimensionAllowed {
		lg.Warnw("image exceeds processing limit, storing original", "width", w, "height", h)
		return data
	}
	if w > maxDimension || h > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	}
	if err != nil {
		lg.Warnw("image encode failed, storing original", "error", err)
		return data
	}
	return buf.Bytes()
}
