// Command calibconv converts a legacy camera.txt into a calibration blob and
// prints the contents of existing calibration files.
package main

import (
	"flag"
	"fmt"
	"os"

	"marker-ar/internal/camera"
)

func main() {
	in := flag.String("i", "", "Input calibration (camera.txt or blob)")
	out := flag.String("o", "", "Output blob path (print only if empty)")
	flag.Parse()

	if *in == "" {
		fmt.Println("Usage: calibconv -i <camera.txt|blob> [-o calibration.gob.gz]")
		os.Exit(1)
	}

	m, err := camera.Load(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *in, err)
		os.Exit(1)
	}

	fmt.Printf("Calibration %s\n", *in)
	fmt.Printf("  size       %dx%d\n", m.Width, m.Height)
	fmt.Printf("  fx, fy     %.4f, %.4f\n", m.FX, m.FY)
	fmt.Printf("  cx, cy     %.4f, %.4f\n", m.CX, m.CY)
	fmt.Printf("  skew       %.4f\n", m.Skew)
	fmt.Printf("  distortion %v\n", m.Distortion)

	if *out == "" {
		return
	}
	if err := camera.Save(*out, camera.CalibrationFromModel(m)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}
