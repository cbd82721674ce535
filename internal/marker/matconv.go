package marker

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MatToGray copies a single-channel 8-bit Mat into an image.Gray.
func MatToGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, ErrEmptyFrame
	}
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected 8-bit single channel mat, got type %v", m.Type())
	}
	cols, rows := m.Cols(), m.Rows()
	pix := m.ToBytes()
	if len(pix) != cols*rows {
		return nil, fmt.Errorf("unexpected mat data size %d for %dx%d", len(pix), cols, rows)
	}
	return &image.Gray{Pix: pix, Stride: cols, Rect: image.Rect(0, 0, cols, rows)}, nil
}

// GrayToMat copies an image.Gray into a new single-channel Mat. The caller
// owns the returned Mat.
func GrayToMat(g *image.Gray) (gocv.Mat, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), ErrEmptyFrame
	}
	pix := g.Pix
	if g.Stride != w || g.Rect.Min != (image.Point{}) {
		pix = make([]byte, w*h)
		for y := 0; y < h; y++ {
			off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
			copy(pix[y*w:(y+1)*w], g.Pix[off:off+w])
		}
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix)
}
