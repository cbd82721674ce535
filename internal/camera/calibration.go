package camera

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxDistortionCoeffs is the longest coefficient vector Model implements
// (radial, tangential and rational terms). Thin-prism and tilt terms are
// rejected rather than ignored.
const maxDistortionCoeffs = 8

var (
	// ErrInvalidCalibration is returned for calibration data that decodes but
	// cannot describe a usable camera.
	ErrInvalidCalibration = errors.New("invalid calibration")
)

// Calibration is the persisted result of the offline calibration procedure.
// Field order matches the blob layout: intrinsic matrix, distortion
// coefficients, then the per-view extrinsics recorded at calibration time.
type Calibration struct {
	Matrix     [9]float64 // row-major 3x3
	Distortion []float64
	RVecs      [][3]float64 // unused by tracking, kept for round trips
	TVecs      [][3]float64
	Width      int
	Height     int
}

// Model converts the calibration into a camera model.
func (c Calibration) Model() (Model, error) {
	k := c.Matrix
	if k[8] != 0 && k[8] != 1 {
		for i := range k {
			k[i] /= c.Matrix[8]
		}
	}
	if len(c.Distortion) > maxDistortionCoeffs {
		return Model{}, fmt.Errorf("%w: %d distortion coefficients", ErrInvalidCalibration, len(c.Distortion))
	}
	m := Model{
		FX:         k[0],
		Skew:       k[1],
		CX:         k[2],
		FY:         k[4],
		CY:         k[5],
		Distortion: append([]float64(nil), c.Distortion...),
		Width:      c.Width,
		Height:     c.Height,
	}
	if !m.Valid() {
		return Model{}, fmt.Errorf("%w: fx=%g fy=%g", ErrInvalidCalibration, m.FX, m.FY)
	}
	return m, nil
}

// CalibrationFromModel builds a calibration record with no extrinsics.
func CalibrationFromModel(m Model) Calibration {
	return Calibration{
		Matrix: [9]float64{
			m.FX, m.Skew, m.CX,
			0, m.FY, m.CY,
			0, 0, 1,
		},
		Distortion: append([]float64(nil), m.Distortion...),
		Width:      m.Width,
		Height:     m.Height,
	}
}

// Encode writes the calibration as a gzip-compressed gob blob.
func (c Calibration) Encode(w io.Writer) error {
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(c); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	return gz.Close()
}

// DecodeCalibration reads a blob written by Encode.
func DecodeCalibration(r io.Reader) (Calibration, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var c Calibration
	if err := gob.NewDecoder(gz).Decode(&c); err != nil {
		return Calibration{}, fmt.Errorf("failed to decode calibration: %w", err)
	}
	return c, nil
}

// Save writes the calibration blob to path.
func Save(path string, c Calibration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a camera model from path. Files with a .txt extension use the
// legacy text layout; anything else is treated as a calibration blob.
func Load(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return Model{}, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".txt") {
		m, err := ParseLegacy(f)
		if err != nil {
			return Model{}, fmt.Errorf("%s: %w", path, err)
		}
		return m, nil
	}

	c, err := DecodeCalibration(bufio.NewReader(f))
	if err != nil {
		return Model{}, fmt.Errorf("%s: %w", path, err)
	}
	m, err := c.Model()
	if err != nil {
		return Model{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadOrIdentity loads the model at path, falling back to IdentityModel when
// the file does not exist. Any other failure is returned.
func LoadOrIdentity(path string) (Model, error) {
	if path == "" {
		log.Printf("Camera: no calibration configured, using identity model")
		return IdentityModel(), nil
	}
	m, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Camera: calibration %s not found, using identity model", path)
		return IdentityModel(), nil
	}
	if err != nil {
		return Model{}, err
	}
	log.Printf("Camera: loaded %s (fx=%.1f fy=%.1f cx=%.1f cy=%.1f, %d distortion coeffs)",
		path, m.FX, m.FY, m.CX, m.CY, len(m.Distortion))
	return m, nil
}

// ParseLegacy reads the plain-text calibration layout:
//
//	height,width            size of the calibration images
//	fx,skew,cx              intrinsic matrix, one row per line
//	0,fy,cy
//	0,0,1
//	k1,k2,p1,p2,k3          optional
//
// Values may be separated by commas and/or whitespace.
func ParseLegacy(r io.Reader) (Model, error) {
	scanner := bufio.NewScanner(r)
	var rows [][]float64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vals, err := parseFloats(line)
		if err != nil {
			return Model{}, fmt.Errorf("%w: line %d: %v", ErrInvalidCalibration, len(rows)+1, err)
		}
		rows = append(rows, vals)
	}
	if err := scanner.Err(); err != nil {
		return Model{}, err
	}
	if len(rows) < 4 {
		return Model{}, fmt.Errorf("%w: need size line and 3 matrix rows, got %d lines", ErrInvalidCalibration, len(rows))
	}
	if len(rows[0]) != 2 {
		return Model{}, fmt.Errorf("%w: size line needs height,width", ErrInvalidCalibration)
	}
	var c Calibration
	c.Height = int(rows[0][0])
	c.Width = int(rows[0][1])
	for i := 0; i < 3; i++ {
		if len(rows[i+1]) != 3 {
			return Model{}, fmt.Errorf("%w: matrix row %d has %d values", ErrInvalidCalibration, i, len(rows[i+1]))
		}
		copy(c.Matrix[i*3:], rows[i+1])
	}
	if len(rows) > 4 {
		c.Distortion = rows[4]
	}
	return c.Model()
}

func parseFloats(line string) ([]float64, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}
