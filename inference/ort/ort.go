// Package ort - ONNX Runtime detector backend for YOLOv8 exports.
package ort

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/detector"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/pkg/errors"
	onnxruntime "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Detector runs a YOLOv8 ONNX export with onnxruntime. Calls to Detect are serialized
// because the session reuses a single pair of input and output tensors.
type Detector struct {
	mu      sync.Mutex
	session *onnxruntime.AdvancedSession
	input   *onnxruntime.Tensor[float32]
	output  *onnxruntime.Tensor[float32]
	size    image.Point
	decode  detector.DecodeOptions
	logger  *zap.SugaredLogger
}

var _ detector.Detector = (*Detector)(nil)

// New loads the model at cfg.ModelPath.
//
// The input and output tensor names and the output shape are read from the model. The
// class count is the output's second dimension minus the four box values, names come
// from classes and fall back to the class id.
//
// Arguments:
//   - cfg: Detector configuration.
//   - classes: Class names for the model.
//   - logger: Logger for session details.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the library, model or session cannot be loaded.
func New(cfg config.Detector, classes models.OutputClassSet, logger *zap.SugaredLogger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", cfg.ModelPath)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model io info from %s", cfg.ModelPath)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.Errorf("model %s has no inputs or outputs", cfg.ModelPath)
	}

	size := image.Point{X: cfg.InputSize, Y: cfg.InputSize}
	shape, layout, numClasses, err := outputShape(outputs[0].Dimensions, size, classes)
	if err != nil {
		return nil, err
	}

	inputTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, 3, int64(size.Y), int64(size.X)))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](shape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := sessionOptions(cfg)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := onnxruntime.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]onnxruntime.ArbitraryTensor{inputTensor},
		[]onnxruntime.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating onnxruntime session")
	}

	logger.Infow("onnxruntime session ready",
		"model", cfg.ModelPath,
		"provider", cfg.ExecutionProvider,
		"input", inputs[0].Name,
		"output", outputs[0].Name,
		"shape", shape.String(),
		"layout", layout.String(),
		"classes", numClasses,
	)

	nms := detector.DefaultNMSConfig()
	nms.IoUThreshold = cfg.NMSThreshold

	return &Detector{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		size:    size,
		decode: detector.DecodeOptions{
			Input:      boxspace.NewSize(size.X, size.Y),
			Classes:    classes,
			NumClasses: numClasses,
			NMS:        nms,
			Layout:     layout,
		},
		logger: logger,
	}, nil
}

// outputShape resolves a [1, 4+nc, N] head or [1, N, 6] end-to-end output shape,
// filling dynamic dimensions from the input size and class list, and rejects any other
// layout.
func outputShape(dims onnxruntime.Shape, size image.Point, classes models.OutputClassSet) (onnxruntime.Shape, detector.Layout, int, error) {
	if len(dims) != 3 {
		return nil, 0, 0, errors.Wrapf(detector.ErrOutputLayout, "expected a rank 3 output, got %v", dims)
	}
	shape := onnxruntime.NewShape(1, dims[1], dims[2])
	switch {
	case shape[2] == detector.EndToEndColumns && shape[1] <= 0:
		shape[1] = int64(detector.DefaultNMSConfig().MaxDetections)
	case shape[2] == detector.EndToEndColumns:
	default:
		if shape[1] <= 0 {
			shape[1] = int64(4 + classes.Len())
		}
		if shape[2] <= 0 {
			shape[2] = int64(detector.AnchorCount(size.X, size.Y))
		}
	}
	layout, numClasses, err := detector.ResolveLayout(int(shape[1]), int(shape[2]), size.X, size.Y, classes)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "output shape %v", shape)
	}
	return shape, layout, numClasses, nil
}

// sessionOptions applies thread counts, graph optimization and the execution provider.
func sessionOptions(cfg config.Detector) (*onnxruntime.SessionOptions, error) {
	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}

	err = configure(options, cfg)
	if err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *onnxruntime.SessionOptions, cfg config.Detector) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return errors.Wrap(err, "setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(onnxruntime.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}

	switch cfg.ExecutionProvider {
	case "", config.ProviderCPU:
		return nil
	case config.ProviderCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "enabling CoreML")
	case config.ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		}), "enabling OpenVINO")
	case config.ProviderCUDA:
		cuda, err := onnxruntime.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return errors.Wrap(err, "updating CUDA options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enabling CUDA")
	default:
		return errors.Errorf("unknown execution provider %q", cfg.ExecutionProvider)
	}
}

// Detect runs the model on img and returns detections in img's pixel coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if err := detector.PrepareInput(img, d.input.GetData(), d.size); err != nil {
		return nil, errors.Wrap(err, "preparing input")
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	opts := d.decode
	opts.Frame = boxspace.NewSize(img.Bounds().Dx(), img.Bounds().Dy())
	opts.MinConfidence = minConfidence
	return detector.Decode(d.output.GetData(), opts)
}

// Close releases the session and its tensors.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.session != nil {
		errs = append(errs, d.session.Destroy())
		d.session = nil
	}
	if d.input != nil {
		errs = append(errs, d.input.Destroy())
		d.input = nil
	}
	if d.output != nil {
		errs = append(errs, d.output.Destroy())
		d.output = nil
	}
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "releasing onnxruntime resources")
		}
	}
	return nil
}
