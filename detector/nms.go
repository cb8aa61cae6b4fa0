package detector

import (
	"sort"

	"github.com/nvr-ai/yolo-overlay/common"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float64 // Overlap threshold for suppression.
	ClassAware    bool    // If true, suppress only within same class.
	MaxDetections int     // Upper bound on kept detections, 0 for no limit.
}

// DefaultNMSConfig matches the thresholds YOLOv8 predicts with.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.7, ClassAware: true, MaxDetections: 300}
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections. It is sorted by descending confidence in place.
//   - config: Suppression settings.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []common.Detection, config NMSConfig) []common.Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Label.Confidence > detections[j].Label.Confidence
	})

	filtered := make([]common.Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Label.ClassID != detections[j].Label.ClassID {
				continue
			}

			// Suppress if IoU exceeds threshold
			if anchor.IoU(detections[j]) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
