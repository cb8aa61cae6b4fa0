// Package dnn - OpenCV DNN detector backend for YOLOv8 exports.
package dnn

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
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector runs a YOLOv8 ONNX export with gocv.ReadNetFromONNX.
type Detector struct {
	mu     sync.Mutex
	net    gocv.Net
	open   bool
	size   image.Point
	decode detector.DecodeOptions
}

var _ detector.Detector = (*Detector)(nil)

// New loads the model at cfg.ModelPath on the OpenCV CPU backend.
func New(cfg config.Detector, classes models.OutputClassSet, logger *zap.SugaredLogger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load ONNX model: %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "setting dnn backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "setting dnn target")
	}

	logger.Infow("opencv dnn ready", "model", cfg.ModelPath, "input", cfg.InputSize)

	nms := detector.DefaultNMSConfig()
	nms.IoUThreshold = cfg.NMSThreshold

	return &Detector{
		net:  net,
		open: true,
		size: image.Point{X: cfg.InputSize, Y: cfg.InputSize},
		decode: detector.DecodeOptions{
			Input:   boxspace.NewSize(cfg.InputSize, cfg.InputSize),
			Classes: classes,
			NMS:     nms,
		},
	}, nil
}

// Detect runs the model on img and returns detections in img's pixel coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "converting image")
	}
	defer mat.Close()

	// ImageToMatRGB stores BGR, swapRB hands the model RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil, errors.New("detector is closed")
	}
	if err := d.net.SetInput(blob, ""); err != nil {
		return nil, errors.Wrap(err, "setting dnn input")
	}
	output := d.net.Forward("")
	defer output.Close()

	opts := d.decode
	opts.Frame = boxspace.NewSize(img.Bounds().Dx(), img.Bounds().Dy())
	opts.MinConfidence = minConfidence
	dims := output.Size()
	if len(dims) != 3 {
		return nil, errors.Wrapf(detector.ErrOutputLayout, "expected a rank 3 output, got %v", dims)
	}
	layout, numClasses, err := detector.ResolveLayout(dims[1], dims[2], d.size.X, d.size.Y, opts.Classes)
	if err != nil {
		return nil, err
	}
	opts.Layout = layout
	opts.NumClasses = numClasses

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "reading dnn output")
	}
	return detector.Decode(data, opts)
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	d.open = false
	return errors.Wrap(d.net.Close(), "closing dnn")
}
