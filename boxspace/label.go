package boxspace

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidLabel is returned by Label.Validate.
var ErrInvalidLabel = errors.New("invalid label")

// Label is the class attached to a box. Detections carry a confidence score, ground
// truth annotations do not.
type Label struct {
	ClassID       int
	Confidence    float64
	HasConfidence bool
}

// GroundTruth returns a label without a confidence score.
func GroundTruth(classID int) Label {
	return Label{ClassID: classID}
}

// Scored returns a detection label.
func Scored(classID int, confidence float64) Label {
	return Label{ClassID: classID, Confidence: confidence, HasConfidence: true}
}

// Validate checks the class id is non-negative and the confidence, if present, lies
// in [0, 1].
func (l Label) Validate() error {
	if l.ClassID < 0 {
		return errors.Wrapf(ErrInvalidLabel, "negative class id %d", l.ClassID)
	}
	if l.HasConfidence && (math.IsNaN(l.Confidence) || l.Confidence < 0 || l.Confidence > 1) {
		return errors.Wrapf(ErrInvalidLabel, "confidence %v outside [0, 1]", l.Confidence)
	}
	return nil
}
