package detector

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Strides are the YOLOv8 detection head strides.
var Strides = []int{8, 16, 32}

// AnchorCount returns the number of predictions a YOLOv8 head emits for an input of
// width x height, 8400 for 640x640.
func AnchorCount(width, height int) int {
	n := 0
	for _, s := range Strides {
		n += (width / s) * (height / s)
	}
	return n
}

// ErrOutputLayout is returned for model outputs that are not a [1, 4+nc, N] detection
// head.
var ErrOutputLayout = errors.New("unsupported model output layout")

// CheckOutputShape verifies the rows and anchors of a [1, rows, anchors] head output
// against the model input size, and against the class count when class names are known.
// End-to-end exports that emit [1, 300, 6] post-NMS rows fail the anchor check.
//
// Returns the number of classes the head predicts.
func CheckOutputShape(rows, anchors, width, height int, classes models.OutputClassSet) (int, error) {
	numClasses := rows - 4
	if numClasses <= 0 {
		return 0, errors.Wrapf(ErrOutputLayout, "%d rows leave no class scores", rows)
	}
	if want := AnchorCount(width, height); anchors != want {
		return 0, errors.Wrapf(ErrOutputLayout, "%d predictions, a %dx%d head emits %d",
			anchors, width, height, want)
	}
	if n := classes.Len(); n > 0 && numClasses != n {
		return 0, errors.Wrapf(ErrOutputLayout, "head predicts %d classes, %d names are configured",
			numClasses, n)
	}
	return numClasses, nil
}

// DecodeOptions configures DecodeYOLOv8.
type DecodeOptions struct {
	// Input is the size of the image fed to the model.
	Input boxspace.Size
	// Frame is the size of the source image the detections are reported in.
	Frame boxspace.Size
	// Classes names the class ids. Its length is the number of classes the model
	// predicts unless NumClasses is set.
	Classes models.OutputClassSet
	// NumClasses overrides the class count, for models whose names are unknown.
	NumClasses int
	// MinConfidence drops predictions scoring below it.
	MinConfidence float32
	// NMS configures overlap suppression.
	NMS NMSConfig
	// Layout selects the decoder used by Decode.
	Layout Layout
}

func (o DecodeOptions) numClasses() int {
	if o.NumClasses > 0 {
		return o.NumClasses
	}
	return o.Classes.Len()
}

// DecodeYOLOv8 converts a raw YOLOv8 output tensor of shape [1, 4+nc, N] into detections.
//
// Each of the N columns holds (cx, cy, w, h) in model input pixels followed by nc class
// scores. The best scoring class is kept, boxes are converted to corner form, rescaled
// per axis from the input size to the frame size, clipped to the frame and dropped if
// degenerate. The survivors go through greedy NMS.
//
// Arguments:
//   - output: The flat output tensor data. It is not modified.
//   - opts: Decode options.
//
// Returns:
//   - []common.Detection: Detections sorted by descending confidence.
//   - error: An error if the tensor size does not match the class count.
func DecodeYOLOv8(output []float32, opts DecodeOptions) ([]common.Detection, error) {
	nc := opts.numClasses()
	if nc <= 0 {
		return nil, errors.New("decoding requires at least one class")
	}
	rows := 4 + nc
	if len(output) == 0 || len(output)%rows != 0 {
		return nil, errors.Errorf("output of %d values is not a multiple of %d rows", len(output), rows)
	}
	if !opts.Input.Valid() || !opts.Frame.Valid() {
		return nil, errors.Wrapf(boxspace.ErrZeroDimension, "input %vx%v frame %vx%v",
			opts.Input.W, opts.Input.H, opts.Frame.W, opts.Frame.H)
	}
	anchors := len(output) / rows

	// Transpose to one row per prediction. The tensor transposes its backing in place.
	backing := make([]float32, len(output))
	copy(backing, output)
	t := tensor.New(tensor.WithShape(rows, anchors), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transposing output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "transposing output")
	}
	predictions, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected tensor data %T", t.Data())
	}

	detections := make([]common.Detection, 0, 64)
	for idx := 0; idx < anchors; idx++ {
		row := predictions[idx*rows : (idx+1)*rows]

		classID := -1
		probability := math32.Inf(-1)
		for col, score := range row[4:] {
			if score > probability {
				probability = score
				classID = col
			}
		}
		if classID < 0 || math32.IsNaN(probability) || probability < opts.MinConfidence {
			continue
		}

		box := boxspace.NewCenter(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3]), boxspace.Pixel).ToCorner()
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
			Label: boxspace.Scored(classID, float64(math32.Min(probability, 1))),
			Name:  opts.Classes.Name(classID),
		})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Label.Confidence > detections[j].Label.Confidence
	})
	return ApplyGreedyNMS(detections, opts.NMS), nil
}
