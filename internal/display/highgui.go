// Package display provides pipeline sinks: OpenCV HighGUI windows, image
// files and a headless sink.
package display

import (
	"log"

	"marker-ar/internal/marker"
	"marker-ar/internal/pipeline"

	"gocv.io/x/gocv"
)

// Window shows frames in a HighGUI window, optionally with a second window
// for the binary mask. Any key press asks the loop to quit.
type Window struct {
	win  *gocv.Window
	mask *gocv.Window
}

// NewWindow opens the output window. HighGUI windows must be created and
// used from the main OS thread; the tracker's main package locks it in init
// and runs the tracking loop there.
func NewWindow(title string, showMask bool) *Window {
	w := &Window{win: gocv.NewWindow(title)}
	if showMask {
		w.mask = gocv.NewWindow(title + " mask")
	}
	return w
}

// Show displays the frame and polls the keyboard once.
func (w *Window) Show(frame gocv.Mat, res pipeline.Result) bool {
	w.win.IMShow(frame)
	if w.mask != nil && res.Mask != nil {
		m, err := marker.GrayToMat(res.Mask)
		if err != nil {
			log.Printf("Display: mask: %v", err)
		} else {
			w.mask.IMShow(m)
			m.Close()
		}
	}
	if key := w.win.WaitKey(1); key >= 0 {
		return true
	}
	return !w.win.IsOpen()
}

// Close destroys the windows.
func (w *Window) Close() error {
	if w.mask != nil {
		w.mask.Close()
	}
	return w.win.Close()
}
