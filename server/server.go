// Package server - HTTP overlay server: page, detection API, overlay rendering and
// websocket frame detection.
package server

import (
	"context"
	_ "embed"
	"html/template"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/detector"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/nvr-ai/yolo-overlay/profiler"
	"github.com/nvr-ai/yolo-overlay/render"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"goji.io"
	"goji.io/pat"
)

//go:embed static/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// Options holds the dependencies of a Server.
type Options struct {
	Config   config.Server
	Detector detector.Detector
	Classes  models.OutputClassSet
	// Renderer paints /overlay responses. Nil uses the default overlay style.
	Renderer *render.Renderer
	// Profiler records request latencies for /stats. Nil creates one.
	Profiler *profiler.RuntimeProfiler
	Logger   *zap.SugaredLogger
}

// Server serves the overlay page and detection API. The detector is shared by all
// requests.
type Server struct {
	cfg      config.Server
	detector detector.Detector
	classes  models.OutputClassSet
	renderer *render.Renderer
	profiler *profiler.RuntimeProfiler
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
	handler  http.Handler

	streams  atomic.Int64
	inflight atomic.Int64
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Detector == nil {
		return nil, errors.New("server requires a detector")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(render.DefaultFont(), render.OverlayStyle())
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: opts.Logger})
	}

	s := &Server{
		cfg:      opts.Config,
		detector: opts.Detector,
		classes:  opts.Classes,
		renderer: opts.Renderer,
		profiler: opts.Profiler,
		logger:   opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 12,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.handler = s.routes()
	s.profiler.AddMetricsCollector(s)
	return s, nil
}

// CollectMetrics reports open websocket streams and detection requests in flight.
func (s *Server) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"ws_streams":         float64(s.streams.Load()),
		"requests_in_flight": float64(s.inflight.Load()),
	}
}

func (s *Server) routes() http.Handler {
	mux := goji.NewMux()

	page := gziphandler.GzipHandler(http.HandlerFunc(s.handleIndex))
	mux.Handle(pat.Get("/"), page)
	mux.Handle(pat.Get("/index.html"), page)
	mux.HandleFunc(pat.Get("/classes"), s.handleClasses)
	mux.HandleFunc(pat.Get("/stats"), s.handleStats)
	mux.HandleFunc(pat.Get("/ws"), s.handleWebsocket)
	mux.HandleFunc(pat.Post("/detect"), s.handleDetect)
	mux.HandleFunc(pat.Post("/overlay"), s.handleOverlay)
	for _, p := range []string{"/favicon.ico", "/robots.txt", "/sitemap.xml"} {
		mux.HandleFunc(pat.Get(p), handleNoContent)
	}
	mux.HandleFunc(pat.Options("/*"), handleOptions)

	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return s.logFailures(allowAnyOrigin(c.Handler(mux)))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// allowAnyOrigin sets the CORS origin header on every response, including requests
// that carry no Origin header.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// logFailures logs server errors only.
func (s *Server) logFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		if m.Code >= http.StatusInternalServerError {
			s.logger.Errorw("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", m.Code,
				"duration", m.Duration,
			)
		}
	})
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.profiler.Start()
	defer s.profiler.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Infof("Overlay server listening on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving")
	}
	s.logger.Info("Overlay server stopped")
	return nil
}
