package overlay

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"marker-ar/pkg/geometry"
)

// ErrEmptyModel is returned for OBJ data without vertices or faces.
var ErrEmptyModel = errors.New("model has no vertices or faces")

// Mesh is polygon geometry read from a Wavefront OBJ file.
// Faces hold zero-based vertex indices.
type Mesh struct {
	Vertices []geometry.Point3D
	Faces    [][]int
}

// LoadOBJ reads a mesh from an OBJ file.
func LoadOBJ(path string) (Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mesh{}, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	m, err := ParseOBJ(f)
	if err != nil {
		return Mesh{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseOBJ reads the vertex positions and faces of an OBJ stream. Normals,
// texture coordinates, groups and materials are ignored.
func ParseOBJ(r io.Reader) (Mesh, error) {
	var m Mesh
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return Mesh{}, fmt.Errorf("line %d: vertex needs 3 coordinates", lineNo)
			}
			var xyz [3]float64
			for i := range xyz {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return Mesh{}, fmt.Errorf("line %d: %w", lineNo, err)
				}
				xyz[i] = v
			}
			m.Vertices = append(m.Vertices, geometry.NewPoint3D(xyz[0], xyz[1], xyz[2]))
		case "f":
			if len(fields) < 4 {
				return Mesh{}, fmt.Errorf("line %d: face needs at least 3 vertices", lineNo)
			}
			face := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				// v, v/vt, v//vn or v/vt/vn
				idx, err := strconv.Atoi(strings.SplitN(tok, "/", 2)[0])
				if err != nil {
					return Mesh{}, fmt.Errorf("line %d: bad face index %q", lineNo, tok)
				}
				switch {
				case idx > 0:
					idx--
				case idx < 0:
					idx += len(m.Vertices)
				default:
					return Mesh{}, fmt.Errorf("line %d: face index 0", lineNo)
				}
				if idx < 0 || idx >= len(m.Vertices) {
					return Mesh{}, fmt.Errorf("line %d: face index %s out of range", lineNo, tok)
				}
				face = append(face, idx)
			}
			m.Faces = append(m.Faces, face)
		}
	}
	if err := scanner.Err(); err != nil {
		return Mesh{}, err
	}
	if len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return Mesh{}, ErrEmptyModel
	}
	return m, nil
}

// Wireframe fits the mesh onto a marker of the given size and returns its
// unique edges. The model's +Y axis becomes marker up (-Z), its footprint is
// scaled to the marker square and centred on it, and it rests on z=0.
func (m Mesh) Wireframe(markerSize float64, c color.RGBA) Shape {
	minV := geometry.NewPoint3D(math.Inf(1), math.Inf(1), math.Inf(1))
	maxV := geometry.NewPoint3D(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	for _, v := range m.Vertices {
		minV = geometry.NewPoint3D(math.Min(minV.X, v.X), math.Min(minV.Y, v.Y), math.Min(minV.Z, v.Z))
		maxV = geometry.NewPoint3D(math.Max(maxV.X, v.X), math.Max(maxV.Y, v.Y), math.Max(maxV.Z, v.Z))
	}
	extent := math.Max(maxV.X-minV.X, maxV.Z-minV.Z)
	if extent <= 0 {
		extent = math.Max(maxV.Y-minV.Y, 1)
	}
	scale := markerSize / extent
	cx := (minV.X + maxV.X) / 2
	cz := (minV.Z + maxV.Z) / 2

	s := Shape{Anchor: -1, Points: make([]geometry.Point3D, len(m.Vertices))}
	for i, v := range m.Vertices {
		s.Points[i] = geometry.NewPoint3D(
			markerSize/2+(v.X-cx)*scale,
			markerSize/2+(v.Z-cz)*scale,
			-(v.Y-minV.Y)*scale,
		)
	}

	type key struct{ a, b int }
	seen := make(map[key]bool)
	for _, face := range m.Faces {
		for i := range face {
			a, b := face[i], face[(i+1)%len(face)]
			if a > b {
				a, b = b, a
			}
			if a == b || seen[key{a, b}] {
				continue
			}
			seen[key{a, b}] = true
			s.Edges = append(s.Edges, Edge{From: a, To: b, Color: c})
		}
	}
	return s
}
