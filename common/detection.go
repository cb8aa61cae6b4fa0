// Package common - Detection values shared by detectors, renderers and the server.
package common

import (
	"fmt"
	"image"
	"math"

	"github.com/nvr-ai/yolo-overlay/boxspace"
)

// Detection is a single detected object: a pixel-domain corner-form box in the
// coordinates of the image it was detected on, its scored label and the class name.
type Detection struct {
	Box   boxspace.Box
	Label boxspace.Label
	Name  string
}

// NewDetection returns a detection for the pixel corner box (x1, y1, x2, y2).
func NewDetection(x1, y1, x2, y2 float64, classID int, confidence float64, name string) Detection {
	return Detection{
		Box:   boxspace.NewCorner(x1, y1, x2, y2, boxspace.Pixel),
		Label: boxspace.Scored(classID, confidence),
		Name:  name,
	}
}

// ClassID returns the class id of the detection.
func (d Detection) ClassID() int {
	return d.Label.ClassID
}

// Confidence returns the detection score.
func (d Detection) Confidence() float64 {
	return d.Label.Confidence
}

// String formats the detection as "name: conf [x1, y1, x2, y2]".
//
// @example
// d := NewDetection(100, 100, 200, 300, 0, 0.95, "person")
// fmt.Println(d.String()) // person: 0.95 [100, 100, 200, 300]
func (d Detection) String() string {
	x1, y1, x2, y2 := d.Box.Corners()
	return fmt.Sprintf("%s: %.2f [%d, %d, %d, %d]", d.Name, d.Label.Confidence,
		int(math.Round(x1)), int(math.Round(y1)), int(math.Round(x2)), int(math.Round(y2)))
}

// ToRect converts the detection box to an image.Rectangle.
//
// This won't be entirely precise due to conversion to integral rectangles, the
// coordinates are truncated towards zero.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
func (d Detection) ToRect() image.Rectangle {
	x1, y1, x2, y2 := d.Box.Corners()
	return image.Rect(int(x1), int(y1), int(x2), int(y2)).Canon()
}

// IoU calculates the Intersection over Union between two detections.
//
// This metric is used for Non-Maximum Suppression (NMS) to remove duplicate detections.
//
// Arguments:
// - other: The other detection to calculate IoU with.
//
// Returns:
// - The IoU value between 0 and 1. Detections in different domains give 0.
func (d Detection) IoU(other Detection) float64 {
	iou, err := boxspace.IoU(d.Box, other.Box)
	if err != nil {
		return 0
	}
	return iou
}

// Rescale returns a copy of the detection mapped from one pixel space to another.
func (d Detection) Rescale(from, to boxspace.Size) (Detection, error) {
	box, err := boxspace.Rescale(d.Box, from, to)
	if err != nil {
		return d, err
	}
	d.Box = box
	return d, nil
}

// Normalized returns the detection box in the normalized domain of frame.
func (d Detection) Normalized(frame boxspace.Size) (boxspace.Box, error) {
	return boxspace.Normalize(d.Box.ToCorner(), frame)
}
