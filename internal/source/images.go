package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Images replays still image files as frames, in the given order.
type Images struct {
	paths []string
	next  int
}

// NewImages creates a source over explicit paths.
func NewImages(paths []string) *Images {
	return &Images{paths: paths}
}

// GlobImages creates a source over every file matching pattern, sorted by
// name.
func GlobImages(pattern string) (*Images, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images match %q", pattern)
	}
	sort.Strings(paths)
	return NewImages(paths), nil
}

// Len returns the number of images.
func (s *Images) Len() int {
	return len(s.paths)
}

// Path returns the file of the i-th frame.
func (s *Images) Path(i int) string {
	return s.paths[i]
}

// Read decodes the next image into dst as a BGR frame. Undecodable files
// are returned as errors and skipped; io.EOF follows the last image.
func (s *Images) Read(dst *gocv.Mat) error {
	if s.next >= len(s.paths) {
		return io.EOF
	}
	path := s.paths[s.next]
	s.next++

	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	m, err := ImageToMat(img)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer m.Close()
	m.CopyTo(dst)
	return nil
}

// Close is a no-op.
func (s *Images) Close() error {
	return nil
}

// LoadImage decodes a PNG, JPEG, GIF, BMP, TIFF or WebP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// ImageToMat converts a Go image to a BGR Mat. The caller owns the Mat.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	if img.Bounds().Empty() {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	return gocv.ImageToMatRGB(img)
}
