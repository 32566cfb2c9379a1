package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 50 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestCompressImageDownscalesOversized(t *testing.T) {
	lg := zap.NewNop().Sugar()
	data := encodeTestJPEG(t, 4000, 3000)

	out := CompressImage(data, ".jpg", lg)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 1920)
	assert.LessOrEqual(t, cfg.Height, 1920)
}

func TestCompressImageKeepsSmallDimensions(t *testing.T) {
	lg := zap.NewNop().Sugar()
	data := encodeTestJPEG(t, 640, 480)

	out := CompressImage(data, ".jpg", lg)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestCompressImageFallsBackOnGarbage(t *testing.T) {
	lg := zap.NewNop().Sugar()
	// A PDF header is not decodable as an image: bytes must pass through
	// untouched.
	data := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\nnot really an image")

	out := CompressImage(data, ".jpg", lg)
	assert.Equal(t, data, out)
}

func TestIsImageUpload(t *testing.T) {
	assert.True(t, IsImageUpload(".jpg"))
	assert.True(t, IsImageUpload(".JPEG"))
	assert.True(t, IsImageUpload(".png"))
	assert.False(t, IsImageUpload(".pdf"))
	assert.False(t, IsImageUpload(""))
}

func TestStoreSaveReadDelete(t *testing.T) {
	s := New(t.TempDir())

	rel, err := s.SaveGestionDocument("abc.pdf", []byte("%PDF-1.7 data"))
	require.NoError(t, err)
	assert.Equal(t, "documents/gestiones/abc.pdf", rel)
	assert.True(t, s.Exists(rel))

	data, err := s.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 data"), data)

	require.NoError(t, s.Delete(rel))
	assert.False(t, s.Exists(rel))
	// Deleting a missing file is not an error.
	require.NoError(t, s.Delete(rel))
}

func TestStoreRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Read("../../etc/passwd")
	assert.Error(t, err)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMEType("a.jpg"))
	assert.Equal(t, "image/png", MIMEType("a.PNG"))
	assert.Equal(t, "application/pdf", MIMEType("doc.pdf"))
	assert.Equal(t, "application/octet-stream", MIMEType("doc.bin"))
}
