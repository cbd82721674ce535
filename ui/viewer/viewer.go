// Package viewer provides a Fyne window that shows the tracked frames and a
// status line. It is the alternative to the HighGUI sink on desktops where
// OpenCV was built without a GUI backend.
package viewer

import (
	"fmt"
	"image"
	"log"
	"sync/atomic"

	"marker-ar/internal/marker"
	"marker-ar/internal/pipeline"
	"marker-ar/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"gocv.io/x/gocv"
)

const (
	prefKeyWidth  = "windowWidth"
	prefKeyHeight = "windowHeight"
)

// Viewer implements pipeline.Sink on top of a Fyne window. Fyne owns the
// main goroutine, so the tracking loop is started through Run.
type Viewer struct {
	app    fyne.App
	win    fyne.Window
	frame  *canvas.Image
	mask   *canvas.Image
	status *widget.Label
	prefs  *prefs.Prefs
	quit   atomic.Bool
}

// New builds the window. p may be nil, in which case the window size is
// not remembered.
func New(title string, showMask bool, p *prefs.Prefs) *Viewer {
	a := app.NewWithID("marker-ar")
	a.Settings().SetTheme(&Theme{})

	v := &Viewer{
		app:    a,
		win:    a.NewWindow(title),
		frame:  newImage(),
		status: widget.NewLabel("Waiting for frames"),
		prefs:  p,
	}

	var center fyne.CanvasObject = v.frame
	if showMask {
		v.mask = newImage()
		split := container.NewHSplit(v.frame, v.mask)
		split.SetOffset(0.6)
		center = split
	}
	v.win.SetContent(container.NewBorder(
		nil,                           // top
		container.NewPadded(v.status), // bottom
		nil,                           // left
		nil,                           // right
		center,                        // center
	))

	width, height := 800.0, 600.0
	if p != nil {
		width = p.FloatWithFallback(prefKeyWidth, width)
		height = p.FloatWithFallback(prefKeyHeight, height)
	}
	v.win.Resize(fyne.NewSize(float32(width), float32(height)))

	v.win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape || ev.Name == fyne.KeyQ {
			v.quit.Store(true)
		}
	})
	v.win.SetCloseIntercept(func() {
		v.quit.Store(true)
		v.savePrefs()
		v.win.Close()
	})
	return v
}

func newImage() *canvas.Image {
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	return img
}

// Run shows the window and blocks until both the window and loop are done.
// loop runs on its own goroutine; the application quits when it returns, and
// closing the window makes the next Show ask loop to stop.
func (v *Viewer) Run(loop func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop()
		v.app.Quit()
	}()
	v.win.ShowAndRun()
	v.quit.Store(true)
	<-done
}

// Show replaces the displayed frame. It returns true once the user pressed
// Escape or Q, or closed the window.
func (v *Viewer) Show(frame gocv.Mat, res pipeline.Result) bool {
	img, err := frame.ToImage()
	if err != nil {
		log.Printf("Viewer: %v", err)
	} else {
		v.frame.Image = img
		v.frame.Refresh()
	}
	if v.mask != nil && res.Mask != nil {
		v.mask.Image = res.Mask
		v.mask.Refresh()
	}
	v.status.SetText(StatusLine(res))
	return v.quit.Load()
}

// Close stores the window size.
func (v *Viewer) Close() error {
	v.savePrefs()
	return nil
}

func (v *Viewer) savePrefs() {
	if v.prefs == nil {
		return
	}
	size := v.win.Canvas().Size()
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	v.prefs.SetFloat(prefKeyWidth, float64(size.Width))
	v.prefs.SetFloat(prefKeyHeight, float64(size.Height))
	if err := v.prefs.Save(); err != nil {
		log.Printf("Viewer: saving preferences: %v", err)
	}
}

// StatusLine summarises a frame result for the status bar.
func StatusLine(res pipeline.Result) string {
	if !res.Tracked() {
		if res.Err != nil {
			return fmt.Sprintf("%s: %v", res.Status, res.Err)
		}
		return fmt.Sprintf("%s (%d candidates)", res.Status, res.Candidates)
	}
	t := res.Solution.Pose.Translation
	r := res.Solution.Pose.RVec()
	line := fmt.Sprintf("tracked  rms %.2f px  t=(%.3f, %.3f, %.3f)  r=(%.3f, %.3f, %.3f)",
		res.Solution.RMSError, t.X, t.Y, t.Z, r.X, r.Y, r.Z)
	if res.Corners.Confidence == marker.ConfidenceLow {
		line += "  low confidence"
	}
	return line
}
