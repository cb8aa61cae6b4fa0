// Package config - YAML configuration for the overlay server, augmenter and annotator.
package config

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Detector backends.
const (
	BackendONNXRuntime = "onnxruntime"
	BackendOpenCV      = "opencv"
	BackendRemote      = "remote"
)

// ONNX Runtime execution providers.
const (
	ProviderCPU      = "cpu"
	ProviderCoreML   = "coreml"
	ProviderOpenVINO = "openvino"
	ProviderCUDA     = "cuda"
)

// Config is the root configuration document.
type Config struct {
	Server   Server   `yaml:"server"`
	Detector Detector `yaml:"detector"`
	Augment  Augment  `yaml:"augment"`
	Annotate Annotate `yaml:"annotate"`
}

// Server configures the overlay server.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ConfThreshold is the default minimum confidence and the initial slider value.
	ConfThreshold float64 `yaml:"conf_threshold"`
	// FPSCap bounds the page's detection loop to FPSCap requests per second.
	FPSCap      int    `yaml:"fps_cap"`
	ClassesFile string `yaml:"classes_file"`
	// FrameURL is the page embedded under the overlay.
	FrameURL string `yaml:"frame_url"`
	// MaxBodyBytes bounds /detect and /overlay request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// MaxDisplaySide bounds the display width and height a client may request.
	MaxDisplaySide  int           `yaml:"max_display_side"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Detector configures the model backend.
type Detector struct {
	Backend   string `yaml:"backend"`
	ModelPath string `yaml:"model_path"`
	// InputSize is the square model input side in pixels.
	InputSize    int     `yaml:"input_size"`
	NMSThreshold float64 `yaml:"nms_threshold"`
	// LibraryPath points at the onnxruntime shared library. Empty picks a per-platform
	// default.
	LibraryPath       string        `yaml:"library_path"`
	ExecutionProvider string        `yaml:"execution_provider"`
	IntraOpThreads    int           `yaml:"intra_op_threads"`
	InterOpThreads    int           `yaml:"inter_op_threads"`
	RemoteURL         string        `yaml:"remote_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Augment configures the dataset augmenter.
type Augment struct {
	DataDir  string `yaml:"data_dir"`
	PerImage int    `yaml:"per_image"`
	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// ModelVariant is one model run by the annotator.
type ModelVariant struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Suffix string `yaml:"suffix"`
}

// Annotate configures the batch annotator.
type Annotate struct {
	// Size is the longest side images are downscaled to. Zero disables downscaling.
	Size          int            `yaml:"size"`
	Models        []ModelVariant `yaml:"models"`
	ConfThreshold float64        `yaml:"conf_threshold"`
	// FontPath is a TrueType font for labels. Empty uses the built-in Go font.
	FontPath string  `yaml:"font_path"`
	FontSize float64 `yaml:"font_size"`
}

// DefaultModels are the nano, small and medium variants the annotator compares.
func DefaultModels() []ModelVariant {
	return []ModelVariant{
		{Name: "nano", Path: "yolo26n.onnx", Suffix: "_1n"},
		{Name: "small", Path: "yolo26s.onnx", Suffix: "_2s"},
		{Name: "medium", Path: "yolo26m.onnx", Suffix: "_3m"},
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Host:            "localhost",
			Port:            7280,
			ConfThreshold:   0.2,
			FPSCap:          60,
			ClassesFile:     "dataset/classes.txt",
			FrameURL:        "https://arras.io/#wpd",
			MaxBodyBytes:    16 << 20,
			MaxDisplaySide:  8192,
			ShutdownTimeout: 5 * time.Second,
		},
		Detector: Detector{
			Backend:           BackendONNXRuntime,
			ModelPath:         "best.onnx",
			InputSize:         640,
			NMSThreshold:      0.7,
			ExecutionProvider: ProviderCPU,
			IntraOpThreads:    4,
			InterOpThreads:    2,
			Timeout:           10 * time.Second,
		},
		Augment: Augment{
			DataDir:  "dataset",
			PerImage: 5,
		},
		Annotate: Annotate{
			Size:          320,
			Models:        DefaultModels(),
			ConfThreshold: 0.25,
			FontSize:      12,
		},
	}
}

// Load reads a YAML document from path over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "opening config %s", path)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Read decodes a YAML document over the defaults and validates the result.
func Read(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}

	cfg := Default()
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "decoding config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !unit(c.Server.ConfThreshold) {
		return errors.Errorf("server.conf_threshold %v outside [0, 1]", c.Server.ConfThreshold)
	}
	if c.Server.FPSCap <= 0 {
		return errors.Errorf("server.fps_cap must be positive, got %d", c.Server.FPSCap)
	}
	if c.Server.MaxDisplaySide <= 0 {
		return errors.Errorf("server.max_display_side must be positive, got %d", c.Server.MaxDisplaySide)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	switch c.Detector.Backend {
	case BackendONNXRuntime, BackendOpenCV:
		if c.Detector.ModelPath == "" {
			return errors.Errorf("detector.model_path is required for the %s backend", c.Detector.Backend)
		}
	case BackendRemote:
		if c.Detector.RemoteURL == "" {
			return errors.New("detector.remote_url is required for the remote backend")
		}
	default:
		return errors.Errorf("unknown detector.backend %q", c.Detector.Backend)
	}
	switch c.Detector.ExecutionProvider {
	case "", ProviderCPU, ProviderCoreML, ProviderOpenVINO, ProviderCUDA:
	default:
		return errors.Errorf("unknown detector.execution_provider %q", c.Detector.ExecutionProvider)
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return errors.Errorf("detector.input_size must be a positive multiple of 32, got %d", c.Detector.InputSize)
	}
	if !unit(c.Detector.NMSThreshold) {
		return errors.Errorf("detector.nms_threshold %v outside [0, 1]", c.Detector.NMSThreshold)
	}

	if c.Augment.PerImage <= 0 {
		return errors.Errorf("augment.per_image must be positive, got %d", c.Augment.PerImage)
	}

	if c.Annotate.Size < 0 {
		return errors.Errorf("annotate.size must not be negative, got %d", c.Annotate.Size)
	}
	if !unit(c.Annotate.ConfThreshold) {
		return errors.Errorf("annotate.conf_threshold %v outside [0, 1]", c.Annotate.ConfThreshold)
	}
	for i, m := range c.Annotate.Models {
		if m.Path == "" {
			return errors.Errorf("annotate.models[%d] has no path", i)
		}
	}
	return nil
}

// Addr returns the server listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// FPSDelay returns the delay between detection requests in the page loop.
func (s Server) FPSDelay() time.Duration {
	return time.Second / time.Duration(s.FPSCap)
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
