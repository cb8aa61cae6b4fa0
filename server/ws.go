package server

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/images"
)

// handleWebsocket reads binary encoded frames and answers each with a JSON array of
// normalized detections. Frames that fail to decode or detect get an empty array so the
// client stays in step.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.streams.Add(1)
	defer s.streams.Add(-1)
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("websocket closed", "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		body, err := json.Marshal(s.detectFrame(ctx, msg))
		if err != nil {
			s.logger.Warnw("encoding frame result", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			s.logger.Debugw("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) detectFrame(ctx context.Context, frame []byte) []common.FrameDetection {
	defer s.profiler.StartOperation("ws_frame")()

	results := []common.FrameDetection{}
	img, _, err := images.DecodeBytes(frame)
	if err != nil {
		s.logger.Debugw("bad websocket frame", "error", err)
		return results
	}
	size := boxspace.NewSize(img.Bounds().Dx(), img.Bounds().Dy())

	detections, err := s.detector.Detect(ctx, img, s.confidence(nil))
	if err != nil {
		s.logger.Warnw("websocket detect failed", "error", err)
		return results
	}
	for _, d := range s.named(detections) {
		f, err := common.ToFrame(d, size)
		if err != nil {
			continue
		}
		results = append(results, f)
	}
	return results
}
