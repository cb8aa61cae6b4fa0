package common

import (
	"math"

	"github.com/nvr-ai/yolo-overlay/boxspace"
)

// DetectRequest is the body of POST /detect and POST /overlay.
type DetectRequest struct {
	// Image is a data URL or a bare base64 payload.
	Image string `json:"image"`
	// Conf overrides the server's default confidence threshold when set.
	Conf *float64 `json:"conf,omitempty"`
	// DisplayW and DisplayH, when both positive, request boxes rescaled to the
	// surface the client draws on.
	DisplayW int `json:"displayW,omitempty"`
	DisplayH int `json:"displayH,omitempty"`
}

// Display returns the requested display size and whether one was given.
func (r DetectRequest) Display() (boxspace.Size, bool) {
	if r.DisplayW <= 0 || r.DisplayH <= 0 {
		return boxspace.Size{}, false
	}
	return boxspace.NewSize(r.DisplayW, r.DisplayH), true
}

// WireDetection is a detection as serialized by /detect. Coordinates are rounded to
// one decimal and confidence to three.
type WireDetection struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	Conf float64 `json:"conf"`
	Cls  int     `json:"cls"`
	Name string  `json:"name"`
}

// DetectResponse is the body returned by /detect.
type DetectResponse struct {
	Detections []WireDetection `json:"detections"`
	ImgW       int             `json:"imgW"`
	ImgH       int             `json:"imgH"`
	Display    []WireDetection `json:"display,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// ToWire converts a detection for the /detect response.
func ToWire(d Detection) WireDetection {
	x1, y1, x2, y2 := d.Box.Corners()
	return WireDetection{
		X1:   round(x1, 1),
		Y1:   round(y1, 1),
		X2:   round(x2, 1),
		Y2:   round(y2, 1),
		Conf: round(d.Label.Confidence, 3),
		Cls:  d.Label.ClassID,
		Name: d.Name,
	}
}

// ToWireAll converts a slice of detections, never returning nil.
func ToWireAll(detections []Detection) []WireDetection {
	out := make([]WireDetection, 0, len(detections))
	for _, d := range detections {
		out = append(out, ToWire(d))
	}
	return out
}

// Detection converts a wire detection back to a pixel corner-form detection.
func (w WireDetection) Detection() Detection {
	return NewDetection(w.X1, w.Y1, w.X2, w.Y2, w.Cls, w.Conf, w.Name)
}

// FrameDetection is one entry of the websocket response: the box is normalized and
// ordered [y1, x1, y2, x2].
type FrameDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// ToFrame converts a detection on an image of the given frame size for the websocket
// response.
func ToFrame(d Detection, frame boxspace.Size) (FrameDetection, error) {
	norm, err := d.Normalized(frame)
	if err != nil {
		return FrameDetection{}, err
	}
	return FrameDetection{
		Label:      d.Name,
		Confidence: round(d.Label.Confidence, 3),
		Box:        [4]float64{norm.V[1], norm.V[0], norm.V[3], norm.V[2]},
	}, nil
}
