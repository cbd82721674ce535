package marker

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Binarizer turns a color frame into a marker/background mask.
type Binarizer struct {
	params BinarizeParams
}

// NewBinarizer creates a binarizer with fixed parameters.
func NewBinarizer(params BinarizeParams) Binarizer {
	return Binarizer{params: params}
}

// Binarize converts a BGR (or BGRA / grayscale) frame into a mask where
// marker pixels are 255 and background pixels are 0. The frame is not
// modified.
func (b Binarizer) Binarize(frame gocv.Mat) (*image.Gray, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		return nil, fmt.Errorf("unsupported frame with %d channels", frame.Channels())
	}

	// Blur to reduce noise
	blurred := gocv.NewMat()
	defer blurred.Close()
	if k := b.params.BlurKernel; k > 1 {
		gocv.GaussianBlur(gray, &blurred, image.Point{k, k}, 0, 0, gocv.BorderDefault)
	} else {
		gray.CopyTo(&blurred)
	}

	typ := gocv.ThresholdBinary
	if b.params.Invert {
		typ = gocv.ThresholdBinaryInv
	}

	mask := gocv.NewMat()
	defer mask.Close()
	switch b.params.Method {
	case ThresholdOtsu:
		gocv.Threshold(blurred, &mask, float32(b.params.Threshold), 255, typ|gocv.ThresholdOtsu)
	case ThresholdAdaptive:
		gocv.AdaptiveThreshold(blurred, &mask, 255, gocv.AdaptiveThresholdMean, typ,
			b.params.AdaptiveBlockSize, float32(b.params.AdaptiveC))
	default:
		gocv.Threshold(blurred, &mask, float32(b.params.Threshold), 255, typ)
	}

	return MatToGray(mask)
}
