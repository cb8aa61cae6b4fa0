package server

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/pkg/errors"
)

type indexData struct {
	Conf     float64
	FPSDelay int64
	FrameURL string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, indexData{
		Conf:     s.cfg.ConfThreshold,
		FPSDelay: s.cfg.FPSDelay().Milliseconds(),
		FrameURL: s.cfg.FrameURL,
	})
	if err != nil {
		s.logger.Errorw("rendering index", "error", err)
	}
}

func (s *Server) handleClasses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.classes.Names())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.profiler.Snapshot())
}

func handleNoContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(common.ErrorResponse{Error: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, common.ErrorResponse{Error: msg})
}

// detection is a decoded request with its detections.
type detection struct {
	request    common.DetectRequest
	frame      boxspace.Size
	detections []common.Detection
}

// detect decodes the request body, runs the detector and writes the error response
// itself when it returns false.
func (s *Server) detect(w http.ResponseWriter, r *http.Request) (detection, bool) {
	var out detection
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return out, false
		}
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return out, false
	}
	if err := json.Unmarshal(body, &out.request); err != nil {
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return out, false
	}
	if display, ok := out.request.Display(); ok && max(display.W, display.H) > float64(s.cfg.MaxDisplaySide) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("display size %dx%d exceeds %d",
			out.request.DisplayW, out.request.DisplayH, s.cfg.MaxDisplaySide))
		return out, false
	}

	img, err := images.DecodeDataURL(out.request.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad image")
		return out, false
	}
	out.frame = boxspace.NewSize(img.Bounds().Dx(), img.Bounds().Dy())

	detections, err := s.detector.Detect(r.Context(), img, s.confidence(out.request.Conf))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return out, false
	}
	out.detections = s.named(detections)
	return out, true
}

// confidence returns the requested threshold clamped to [0, 1], or the default.
func (s *Server) confidence(requested *float64) float32 {
	conf := s.cfg.ConfThreshold
	if requested != nil {
		conf = min(max(*requested, 0), 1)
	}
	return float32(conf)
}

// named fills missing class names from the server's class list.
func (s *Server) named(detections []common.Detection) []common.Detection {
	for i := range detections {
		if detections[i].Name == "" {
			detections[i].Name = s.classes.Name(detections[i].ClassID())
		}
	}
	return detections
}

func rescaleAll(detections []common.Detection, from, to boxspace.Size) ([]common.Detection, error) {
	out := make([]common.Detection, 0, len(detections))
	for _, d := range detections {
		scaled, err := d.Rescale(from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, scaled)
	}
	return out, nil
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	defer s.profiler.StartOperation("detect_request")()

	d, ok := s.detect(w, r)
	if !ok {
		return
	}

	resp := common.DetectResponse{
		Detections: common.ToWireAll(d.detections),
		ImgW:       int(d.frame.W),
		ImgH:       int(d.frame.H),
	}
	if display, ok := d.request.Display(); ok {
		scaled, err := rescaleAll(d.detections, d.frame, display)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Display = common.ToWireAll(scaled)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	defer s.profiler.StartOperation("overlay_request")()

	d, ok := s.detect(w, r)
	if !ok {
		return
	}

	target := d.frame
	if display, ok := d.request.Display(); ok {
		target = display
	}
	img, err := s.renderer.Overlay(d.detections, d.frame, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := images.Encode(w, img, images.FormatPNG); err != nil {
		s.logger.Warnw("writing overlay", "error", err)
	}
}
