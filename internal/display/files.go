package display

import (
	"fmt"
	"os"
	"path/filepath"

	"marker-ar/internal/marker"
	"marker-ar/internal/pipeline"

	"gocv.io/x/gocv"
)

// Files writes every displayed frame to a directory as PNG.
type Files struct {
	dir      string
	name     func(index int) string
	withMask bool
	index    int
	Err      error // first write failure
}

// NewFiles creates dir if needed. name maps a frame index to a base file
// name without extension; nil numbers the frames.
func NewFiles(dir string, name func(int) string, withMask bool) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if name == nil {
		name = func(i int) string { return fmt.Sprintf("frame_%05d", i) }
	}
	return &Files{dir: dir, name: name, withMask: withMask}, nil
}

// Show writes the frame and, if enabled, its mask. It asks to quit after
// the first failed write.
func (f *Files) Show(frame gocv.Mat, res pipeline.Result) bool {
	base := filepath.Join(f.dir, f.name(f.index))
	f.index++

	if ok := gocv.IMWrite(base+".png", frame); !ok {
		f.Err = fmt.Errorf("failed to write %s.png", base)
		return true
	}
	if f.withMask && res.Mask != nil {
		m, err := marker.GrayToMat(res.Mask)
		if err != nil {
			f.Err = err
			return true
		}
		defer m.Close()
		if ok := gocv.IMWrite(base+"_mask.png", m); !ok {
			f.Err = fmt.Errorf("failed to write %s_mask.png", base)
			return true
		}
	}
	return false
}

// Close returns the first write failure, if any.
func (f *Files) Close() error {
	return f.Err
}

// Discard drops frames. It is the sink for headless runs.
type Discard struct{}

func (Discard) Show(gocv.Mat, pipeline.Result) bool { return false }
func (Discard) Close() error                        { return nil }
