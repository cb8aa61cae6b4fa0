// Package inference - Detector backend selection and profiling.
package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/detector"
	"github.com/nvr-ai/yolo-overlay/inference/dnn"
	"github.com/nvr-ai/yolo-overlay/inference/ort"
	"github.com/nvr-ai/yolo-overlay/inference/remote"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/nvr-ai/yolo-overlay/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backends lists every backend NewDetector accepts.
var Backends = []string{config.BackendONNXRuntime, config.BackendOpenCV, config.BackendRemote}

// Opener constructs a detector from configuration. NewDetector is the default; tests
// substitute fakes.
type Opener func(cfg config.Detector, classes models.OutputClassSet, logger *zap.SugaredLogger) (detector.Detector, error)

// NewDetector opens the backend named by cfg.Backend.
//
// Arguments:
//   - cfg: Detector configuration.
//   - classes: Class names reported with detections.
//   - logger: Logger handed to the backend.
//
// Returns:
//   - detector.Detector: The opened detector. The caller must Close it.
//   - error: An error if the backend is unknown or fails to load.
func NewDetector(cfg config.Detector, classes models.OutputClassSet, logger *zap.SugaredLogger) (detector.Detector, error) {
	var (
		d   detector.Detector
		err error
	)
	switch cfg.Backend {
	case config.BackendONNXRuntime:
		d, err = ort.New(cfg, classes, logger)
	case config.BackendOpenCV:
		d, err = dnn.New(cfg, classes, logger)
	case config.BackendRemote:
		d, err = remote.New(cfg, classes)
	default:
		return nil, errors.Errorf("unknown detector backend %q (want one of %v)", cfg.Backend, Backends)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s detector", cfg.Backend)
	}
	return d, nil
}

// Profiled wraps a detector so every call records its latency under operation in p and
// the number of boxes returned under operation+"_boxes".
type Profiled struct {
	detector.Detector
	profiler  *profiler.RuntimeProfiler
	operation string
}

// NewProfiled returns d wrapped with latency tracking.
func NewProfiled(d detector.Detector, p *profiler.RuntimeProfiler, operation string) *Profiled {
	return &Profiled{Detector: d, profiler: p, operation: operation}
}

// Detect times the wrapped call. Failed calls are not recorded.
func (p *Profiled) Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error) {
	done := p.profiler.StartOperation(p.operation)
	detections, err := p.Detector.Detect(ctx, img, minConfidence)
	if err != nil {
		return nil, err
	}
	done()
	p.profiler.RecordMetric(p.operation+"_boxes", float64(len(detections)))
	return detections, nil
}
