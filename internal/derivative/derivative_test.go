package derivative

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	w, h := Dimensions(makeJPEG(t, 640, 480))
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	w, h = Dimensions([]byte("definitely not an image"))
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestDecodable(t *testing.T) {
	assert.True(t, Decodable(makePNG(t, 10, 10)))
	assert.False(t, Decodable([]byte{0x00, 0x01, 0x02}))
	assert.False(t, Decodable(nil))
}

func TestThumbnail_BoundsAndAspect(t *testing.T) {
	src := makeJPEG(t, 800, 400)

	thumb, err := Thumbnail(src, 200, 200, 80)
	require.NoError(t, err)

	w, h := Dimensions(thumb)
	assert.LessOrEqual(t, w, 200)
	assert.LessOrEqual(t, h, 200)
	// 2:1 aspect ratio preserved
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestThumbnail_NeverUpsamples(t *testing.T) {
	src := makeJPEG(t, 50, 40)

	thumb, err := Thumbnail(src, 200, 200, 80)
	require.NoError(t, err)

	w, h := Dimensions(thumb)
	assert.Equal(t, 50, w)
	assert.Equal(t, 40, h)
}

func TestThumbnail_UndecodableInput(t *testing.T) {
	_, err := Thumbnail([]byte("garbage"), 200, 200, 80)
	assert.ErrorIs(t, err, ErrDerivative)
}

func TestCompress_WithinBoundsKeepsSize(t *testing.T) {
	src := makeJPEG(t, 1000, 700)

	out, err := Compress(src, 85, 1920, 1080)
	require.NoError(t, err)

	w, h := Dimensions(out)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 700, h)
}

func TestCompress_ResizesToFit(t *testing.T) {
	src := makeJPEG(t, 3840, 2160)

	out, err := Compress(src, 85, 1920, 1080)
	require.NoError(t, err)

	w, h := Dimensions(out)
	assert.LessOrEqual(t, w, 1920)
	assert.LessOrEqual(t, h, 1080)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestCompress_PreservesPNGFormat(t *testing.T) {
	src := makePNG(t, 300, 300)

	out, err := Compress(src, 85, 1920, 1080)
	require.NoError(t, err)

	_, name, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", name)
}

func TestCompress_UndecodableInput(t *testing.T) {
	_, err := Compress(nil, 85, 1920, 1080)
	assert.ErrorIs(t, err, ErrDerivative)
}
