// Package main provides the entry point for the live marker tracker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"marker-ar/internal/camera"
	"marker-ar/internal/config"
	"marker-ar/internal/display"
	"marker-ar/internal/pipeline"
	"marker-ar/internal/source"
	"marker-ar/internal/version"
	"marker-ar/ui/prefs"
	"marker-ar/ui/viewer"
)

const appName = "marker-ar"

func init() {
	// HighGUI windows and the Fyne event loop must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "", "JSON configuration file (reloaded when it changes)")
	calibration := flag.String("calibration", "", "Calibration blob or camera.txt, overrides the config")
	device := flag.String("device", "", "Camera index, video file or stream URL, overrides the config")
	backend := flag.String("backend", "", "Display backend: highgui, fyne or none")
	showMask := flag.Bool("mask", false, "Also show the binary mask")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(appName))
		return
	}
	log.Printf("Starting %s", version.String(appName))

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *calibration != "" {
		cfg = cfg.WithCalibration(*calibration)
	}
	if *device != "" {
		cfg = cfg.WithDevice(*device)
	}
	if *backend != "" {
		cfg.Display.Backend = *backend
	}
	if *showMask {
		cfg.Display.ShowMask = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	if err := run(cfg, *configPath); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config, configPath string) error {
	cam, err := camera.LoadOrIdentity(cfg.CalibrationPath)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, cam)
	if err != nil {
		return err
	}
	src, err := source.OpenCapture(cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	track := func(sink pipeline.Sink) error {
		runner := pipeline.NewRunner(src, sink, p)
		if configPath != "" {
			if w := config.NewWatcher(configPath, time.Second); w != nil {
				log.Printf("Config reload: watching %s", w.Path())
				runner.WithWatcher(w)
			}
		}
		_, err := runner.Run(ctx)
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
		return err
	}

	switch cfg.Display.Backend {
	case config.BackendFyne:
		v := viewer.New(cfg.Display.Title, cfg.Display.ShowMask, prefs.Load())
		var runErr error
		v.Run(func() { runErr = track(v) })
		return runErr
	case config.BackendNone:
		return track(display.Discard{})
	default:
		return track(display.NewWindow(cfg.Display.Title, cfg.Display.ShowMask))
	}
}
