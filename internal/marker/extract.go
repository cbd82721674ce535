package marker

import (
	"image"

	"marker-ar/pkg/geometry"

	"gocv.io/x/gocv"
)

// ContourExtractor finds quads with OpenCV contour tracing and polygon
// approximation.
type ContourExtractor struct {
	params ExtractParams
}

// NewContourExtractor creates an extractor with fixed parameters.
func NewContourExtractor(params ExtractParams) ContourExtractor {
	return ContourExtractor{params: params}
}

// ExtractQuadrilaterals returns every foreground region outline whose
// polygon approximation has exactly four vertices and encloses more than
// MinArea, in contour traversal order. Regions nested inside holes of other
// regions are found too; the holes themselves are not candidates.
func (e ContourExtractor) ExtractQuadrilaterals(mask *image.Gray) ([]QuadCandidate, error) {
	mat, err := GrayToMat(mask)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	// two-level hierarchy: region outlines on top, their holes below
	contours := gocv.FindContoursWithParams(mat, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	var quads []QuadCandidate
	for i := 0; i < contours.Size(); i++ {
		if parent := hierarchy.GetVeciAt(0, i)[3]; parent >= 0 {
			continue
		}
		contour := contours.At(i)
		if e.params.RejectBorder && touchesBorder(gocv.BoundingRect(contour), mat.Cols(), mat.Rows()) {
			continue
		}

		// Approximate to polygon
		epsilon := e.params.ApproxEpsilon * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		polygon := make([]geometry.Point2D, approx.Size())
		for j := 0; j < approx.Size(); j++ {
			polygon[j] = geometry.FromImagePoint(approx.At(j))
		}
		approx.Close()

		if quad, ok := QuadFromPolygon(polygon, e.params.MinArea); ok {
			quads = append(quads, quad)
		}
	}
	return quads, nil
}

func touchesBorder(r image.Rectangle, width, height int) bool {
	return r.Min.X <= 0 || r.Min.Y <= 0 || r.Max.X >= width || r.Max.Y >= height
}

// QuadFromPolygon accepts an approximated polygon as a marker candidate if
// it has exactly four vertices and an area above minArea.
func QuadFromPolygon(polygon []geometry.Point2D, minArea float64) (QuadCandidate, bool) {
	if len(polygon) != 4 {
		return QuadCandidate{}, false
	}
	var pts [4]geometry.Point2D
	copy(pts[:], polygon)
	quad := NewQuadCandidate(pts)
	if quad.Area <= minArea {
		return QuadCandidate{}, false
	}
	return quad, true
}

// SelectCandidate picks the marker for this frame. It returns false when
// there are no candidates.
func SelectCandidate(quads []QuadCandidate, policy SelectionPolicy) (QuadCandidate, bool) {
	if len(quads) == 0 {
		return QuadCandidate{}, false
	}
	if policy != SelectLargest {
		return quads[0], true
	}
	best := quads[0]
	for _, q := range quads[1:] {
		if q.Area > best.Area {
			best = q
		}
	}
	return best, true
}
