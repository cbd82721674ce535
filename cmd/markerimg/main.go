// Command markerimg runs the tracker over still images, prints one pose per
// image and optionally writes the rendered overlays.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"marker-ar/internal/camera"
	"marker-ar/internal/config"
	"marker-ar/internal/display"
	"marker-ar/internal/pipeline"
	"marker-ar/internal/source"
	"marker-ar/internal/version"

	"gocv.io/x/gocv"
)

// namedImages remembers which file produced the last decoded frame.
type namedImages struct {
	*source.Images
	next    int
	current string
}

func (n *namedImages) Read(dst *gocv.Mat) error {
	path := ""
	if n.next < n.Len() {
		path = n.Path(n.next)
		n.next++
	}
	if err := n.Images.Read(dst); err != nil {
		return err
	}
	n.current = path
	return nil
}

func (n *namedImages) base() string {
	b := filepath.Base(n.current)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func main() {
	configPath := flag.String("config", "", "JSON configuration file")
	calibration := flag.String("calibration", "", "Calibration blob or camera.txt, overrides the config")
	outDir := flag.String("o", "", "Directory for rendered overlays (none if empty)")
	withMask := flag.Bool("mask", false, "Also write the binary mask of each image")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("markerimg"))
		return
	}
	if flag.NArg() == 0 {
		fmt.Println("Usage: markerimg [-config cfg.json] [-calibration file] [-o dir] <image|glob>...")
		os.Exit(1)
	}

	var paths []string
	for _, arg := range flag.Args() {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			matches = []string{arg}
		}
		paths = append(paths, matches...)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}
	if *calibration != "" {
		cfg = cfg.WithCalibration(*calibration)
	}
	// Unreadable images are skipped, never fatal.
	cfg.Capture.MaxReadFailures = len(paths) + 1

	cam, err := camera.LoadOrIdentity(cfg.CalibrationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Camera: %v\n", err)
		os.Exit(1)
	}
	p, err := pipeline.New(cfg, cam)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline: %v\n", err)
		os.Exit(1)
	}

	src := &namedImages{Images: source.NewImages(paths)}
	var sink pipeline.Sink = display.Discard{}
	if *outDir != "" {
		files, err := display.NewFiles(*outDir, func(int) string { return src.base() }, *withMask)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Output: %v\n", err)
			os.Exit(1)
		}
		sink = files
	}

	runner := pipeline.NewRunner(src, sink, p)
	tracked := 0
	runner.OnResult = func(_ int, res pipeline.Result) {
		fmt.Println(formatResult(src.current, res))
		if res.Tracked() {
			tracked++
		}
	}

	stats, err := runner.Run(context.Background())
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d/%d images tracked, %d unreadable\n", tracked, len(paths), stats.ReadFailures)
}

func formatResult(path string, res pipeline.Result) string {
	if !res.Tracked() {
		if res.Err != nil {
			return fmt.Sprintf("%s\t%s\t%v", path, res.Status, res.Err)
		}
		return fmt.Sprintf("%s\t%s", path, res.Status)
	}
	r := res.Solution.Pose.RVec()
	t := res.Solution.Pose.Translation
	return fmt.Sprintf("%s\ttracked\trvec=(%.5f, %.5f, %.5f)\ttvec=(%.5f, %.5f, %.5f)\trms=%.3f\t%s",
		path, r.X, r.Y, r.Z, t.X, t.Y, t.Z, res.Solution.RMSError, res.Corners.Confidence)
}
