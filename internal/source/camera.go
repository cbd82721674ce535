// Package source provides frame sources for the tracking loop: live cameras
// and video files through OpenCV, and still image sequences.
package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"marker-ar/internal/config"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned when a device delivers no frame for a tick.
var ErrNoFrame = errors.New("no frame from device")

// Capture reads frames from a camera, a video file or a stream URL.
type Capture struct {
	cap    *gocv.VideoCapture
	device string
	file   bool
}

// OpenCapture opens the configured device. A numeric device is a camera
// index; an existing path is a video file; anything else is passed to
// OpenCV as a stream URL.
func OpenCapture(c config.Capture) (*Capture, error) {
	var (
		vc   *gocv.VideoCapture
		err  error
		file bool
	)
	if id, convErr := strconv.Atoi(c.Device); convErr == nil {
		vc, err = gocv.VideoCaptureDevice(id)
	} else if _, statErr := os.Stat(c.Device); statErr == nil {
		vc, err = gocv.VideoCaptureFile(c.Device)
		file = true
	} else {
		vc, err = gocv.OpenVideoCapture(c.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %q: %w", c.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture %q did not open", c.Device)
	}

	if !file {
		// single buffered frame: each tick sees the newest image
		vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec("MJPG"))
		vc.Set(gocv.VideoCaptureBufferSize, 1)
		if c.Width > 0 && c.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
		}
	}
	log.Printf("Capture: opened %s at %.0fx%.0f", c.Device,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{cap: vc, device: c.Device, file: file}, nil
}

// Read grabs the next frame. Video files return io.EOF at their end.
func (c *Capture) Read(dst *gocv.Mat) error {
	if ok := c.cap.Read(dst); !ok || dst.Empty() {
		if c.file {
			return io.EOF
		}
		return ErrNoFrame
	}
	return nil
}

// Close releases the device.
func (c *Capture) Close() error {
	return c.cap.Close()
}
