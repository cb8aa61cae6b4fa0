package detector

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/pkg/errors"
)

// Layout is the arrangement of a detection model's output tensor.
type Layout int

const (
	// LayoutHead is the raw [1, 4+nc, N] YOLOv8 head, decoded with NMS.
	LayoutHead Layout = iota
	// LayoutEndToEnd is [1, N, 6] rows of (x1, y1, x2, y2, score, class) in model input
	// pixels, already suppressed by the model.
	LayoutEndToEnd
)

// EndToEndColumns is the row width of an end-to-end export.
const EndToEndColumns = 6

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutHead:
		return "head"
	case LayoutEndToEnd:
		return "end-to-end"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ResolveLayout identifies a [1, dim1, dim2] output. Six columns mean end-to-end rows,
// since no head emits as few as six predictions; anything else must pass
// CheckOutputShape.
//
// Returns the layout and the number of classes, which is the configured class count for
// end-to-end exports.
func ResolveLayout(dim1, dim2, width, height int, classes models.OutputClassSet) (Layout, int, error) {
	if dim2 == EndToEndColumns {
		if dim1 <= 0 {
			return LayoutEndToEnd, 0, errors.Wrapf(ErrOutputLayout, "end-to-end output with %d rows", dim1)
		}
		return LayoutEndToEnd, classes.Len(), nil
	}
	n, err := CheckOutputShape(dim1, dim2, width, height, classes)
	return LayoutHead, n, err
}

// Decode dispatches on opts.Layout.
func Decode(output []float32, opts DecodeOptions) ([]common.Detection, error) {
	if opts.Layout == LayoutEndToEnd {
		return DecodeEndToEnd(output, opts)
	}
	return DecodeYOLOv8(output, opts)
}

// DecodeEndToEnd converts [1, N, 6] end-to-end rows into detections. Rows scoring below
// opts.MinConfidence, with a class id outside the known classes, or degenerate after
// rescaling and clipping to the frame are dropped. No further suppression is applied,
// only the opts.NMS.MaxDetections cap.
//
// Returns detections sorted by descending confidence.
func DecodeEndToEnd(output []float32, opts DecodeOptions) ([]common.Detection, error) {
	if len(output) == 0 || len(output)%EndToEndColumns != 0 {
		return nil, errors.Errorf("output of %d values is not a multiple of %d columns", len(output), EndToEndColumns)
	}
	if !opts.Input.Valid() || !opts.Frame.Valid() {
		return nil, errors.Wrapf(boxspace.ErrZeroDimension, "input %vx%v frame %vx%v",
			opts.Input.W, opts.Input.H, opts.Frame.W, opts.Frame.H)
	}
	nc := opts.numClasses()

	var detections []common.Detection
	for i := 0; i < len(output); i += EndToEndColumns {
		row := output[i : i+EndToEndColumns]
		score := row[4]
		if math32.IsNaN(score) || score < opts.MinConfidence {
			continue
		}
		classID := int(math32.Round(row[5]))
		if classID < 0 || (nc > 0 && classID >= nc) {
			continue
		}

		box := boxspace.NewCorner(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3]), boxspace.Pixel)
		box, err := boxspace.Rescale(box, opts.Input, opts.Frame)
		if err != nil {
			return nil, err
		}
		box = boxspace.Clip(box, opts.Frame)
		if box.Degenerate() {
			continue
		}

		detections = append(detections, common.Detection{
			Box:   box,
			Label: boxspace.Scored(classID, float64(math32.Min(score, 1))),
			Name:  opts.Classes.Name(classID),
		})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Label.Confidence > detections[j].Label.Confidence
	})
	if limit := opts.NMS.MaxDetections; limit > 0 && len(detections) > limit {
		detections = detections[:limit]
	}
	return detections, nil
}
