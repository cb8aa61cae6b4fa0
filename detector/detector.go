// Package detector - Object detector capability, YOLOv8 output decoding and NMS.
package detector

import (
	"context"
	"image"

	"github.com/nvr-ai/yolo-overlay/common"
)

// Detector runs an object detection model over images.
//
// Detect returns corner-form pixel boxes in the coordinates of img, with class id, class
// name and confidence. Detections scoring below minConfidence are dropped. Implementations
// must be safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error)
	Close() error
}

// Func adapts a plain function to the Detector interface. Close is a no-op.
type Func func(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error) {
	return f(ctx, img, minConfidence)
}

// Close does nothing.
func (f Func) Close() error {
	return nil
}
