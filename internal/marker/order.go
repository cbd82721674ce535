package marker

import (
	"image"

	"marker-ar/pkg/geometry"
)

// Resolution is the tagged outcome of corner disambiguation.
type Resolution int

const (
	Resolved  Resolution = iota // exactly one probe hit; Offset is valid
	Ambiguous                   // zero or several probes hit
)

func (r Resolution) String() string {
	if r == Resolved {
		return "resolved"
	}
	return "ambiguous"
}

// Disambiguation records how the distinguished corner was found.
type Disambiguation struct {
	Resolution Resolution
	Offset     int // index of the distinguished vertex; meaningful when Resolved
	Hits       int
	Clamped    int // probes that fell outside the mask and were clamped
	Probes     [4]geometry.Point2D
	Values     [4]uint8
	Hit        [4]bool
}

// CornerOrderer permutes quad vertices into reference-square order using the
// marking inside the distinguished corner.
type CornerOrderer struct {
	params OrderParams
}

// NewCornerOrderer creates an orderer with fixed parameters.
func NewCornerOrderer(params OrderParams) CornerOrderer {
	if params.ForegroundLevel == 0 {
		params.ForegroundLevel = Foreground
	}
	return CornerOrderer{params: params}
}

// Order returns the quad's vertices rotated so the distinguished corner is
// first. Vertices are first brought to positive (image-clockwise) winding to
// match the reference square. Ambiguous outcomes return ErrAmbiguousCorners
// unless the legacy fallthrough is enabled, in which case the corners are
// returned with ConfidenceLow.
func (o CornerOrderer) Order(quad QuadCandidate, mask *image.Gray) (OrderedCorners, error) {
	pts := quad.Points[:]
	if geometry.SignedArea(pts) < 0 {
		pts = geometry.Reverse(pts)
	}
	var wound [4]geometry.Point2D
	copy(wound[:], pts)

	d := o.Disambiguate(wound, mask)
	out := OrderedCorners{Disambiguation: d}

	offset := d.Offset
	switch {
	case d.Resolution == Resolved:
		out.Confidence = ConfidenceHigh
	case o.params.LegacyFallthrough:
		offset = legacyOffset(d)
		out.Confidence = ConfidenceLow
	default:
		return out, ErrAmbiguousCorners
	}

	copy(out.Points[:], geometry.RotateLeft(wound[:], offset))
	return out, nil
}

// Disambiguate samples the mask halfway between the centroid and each vertex.
// A sample below the foreground level marks the distinguished corner.
func (o CornerOrderer) Disambiguate(points [4]geometry.Point2D, mask *image.Gray) Disambiguation {
	d := Disambiguation{Resolution: Ambiguous}
	if mask == nil || mask.Rect.Empty() {
		return d
	}
	centroid := geometry.Centroid(points[:])

	for i, p := range points {
		probe := centroid.Midpoint(p)
		d.Probes[i] = probe

		px, clamped := clampToBounds(probe.Round(), mask.Rect)
		if clamped {
			d.Clamped++
		}
		v := mask.GrayAt(px.X, px.Y).Y
		d.Values[i] = v
		if v < o.params.ForegroundLevel {
			d.Hit[i] = true
			if d.Hits == 0 {
				d.Offset = i
			}
			d.Hits++
		}
	}
	if d.Hits == 1 {
		d.Resolution = Resolved
	} else {
		d.Offset = 0
	}
	return d
}

// legacyOffset picks the first hit among the first three probes and falls
// through to the fourth vertex otherwise.
func legacyOffset(d Disambiguation) int {
	for i := 0; i < 3; i++ {
		if d.Hit[i] {
			return i
		}
	}
	return 3
}

func clampToBounds(p image.Point, r image.Rectangle) (image.Point, bool) {
	q := p
	if q.X < r.Min.X {
		q.X = r.Min.X
	}
	if q.X >= r.Max.X {
		q.X = r.Max.X - 1
	}
	if q.Y < r.Min.Y {
		q.Y = r.Min.Y
	}
	if q.Y >= r.Max.Y {
		q.Y = r.Max.Y - 1
	}
	return q, q != p
}
