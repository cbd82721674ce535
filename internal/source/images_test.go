package source

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/image/bmp"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image, enc func(io.Writer, image.Image) error) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, enc(f, img))
}

func TestImagesReplaysInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "b.bmp"), solidImage(8, 6, color.RGBA{B: 200, A: 255}), bmp.Encode)
	writeImage(t, filepath.Join(dir, "a.png"), solidImage(8, 6, color.RGBA{R: 200, A: 255}), png.Encode)

	src, err := GlobImages(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Equal(t, 2, src.Len())
	assert.Equal(t, "a.png", filepath.Base(src.Path(0)))

	frame := gocv.NewMat()
	defer frame.Close()

	require.NoError(t, src.Read(&frame))
	assert.Equal(t, 8, frame.Cols())
	assert.Equal(t, 6, frame.Rows())
	assert.Equal(t, 3, frame.Channels())
	px := frame.GetVecbAt(2, 2)
	assert.Equal(t, uint8(200), px[2], "red lands in the third BGR channel")

	require.NoError(t, src.Read(&frame))
	px = frame.GetVecbAt(2, 2)
	assert.Equal(t, uint8(200), px[0])

	assert.ErrorIs(t, src.Read(&frame), io.EOF)
	assert.NoError(t, src.Close())
}

func TestImagesSkipsUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	good := filepath.Join(dir, "good.png")
	writeImage(t, good, solidImage(4, 4, color.RGBA{G: 255, A: 255}), png.Encode)

	src := NewImages([]string{bad, good})
	frame := gocv.NewMat()
	defer frame.Close()

	assert.Error(t, src.Read(&frame))
	assert.NoError(t, src.Read(&frame))
	assert.ErrorIs(t, src.Read(&frame), io.EOF)
}

func TestGlobImagesNoMatch(t *testing.T) {
	_, err := GlobImages(filepath.Join(t.TempDir(), "*.png"))
	assert.Error(t, err)
}
