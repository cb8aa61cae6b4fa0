// Package annotate - Batch detection over image files with annotated copies per model.
package annotate

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/detector"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/inference"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/nvr-ai/yolo-overlay/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoModels is returned when none of the configured model files exist.
var ErrNoModels = errors.New("no model files found")

// Options configures a Runner.
type Options struct {
	Config config.Annotate
	// Detector is the backend template. Each model variant replaces ModelPath.
	Detector config.Detector
	Classes  models.OutputClassSet
	// Open constructs detectors. Nil uses inference.NewDetector.
	Open inference.Opener
}

// Summary counts what a run did.
type Summary struct {
	Images  int
	Written int
	Failed  int
}

// Runner annotates images with every configured model variant. Each model is opened on
// first use and kept until Close.
type Runner struct {
	opts      Options
	logger    *zap.SugaredLogger
	renderer  *render.Renderer
	detectors map[string]detector.Detector
}

// NewRunner returns a runner. A font that fails to load is logged and replaced by the
// built-in font.
func NewRunner(opts Options, logger *zap.SugaredLogger) *Runner {
	if opts.Open == nil {
		opts.Open = inference.NewDetector
	}

	style := render.AnnotateStyle()
	if opts.Config.FontSize > 0 {
		style.FontSize = opts.Config.FontSize
	}
	font := render.DefaultFont()
	if opts.Config.FontPath != "" {
		f, err := render.LoadFont(opts.Config.FontPath)
		if err != nil {
			logger.Warnw("falling back to the built-in font", "error", err)
		} else {
			font = f
		}
	}

	return &Runner{
		opts:      opts,
		logger:    logger,
		renderer:  render.NewRenderer(font, style),
		detectors: make(map[string]detector.Detector),
	}
}

// OutputPath returns <dir>/<stem><suffix><ext> for an input image.
func OutputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(filepath.Dir(input), stem+suffix+ext)
}

// variants returns the configured models whose files exist. The remote backend has no
// local model files, so every variant is kept.
func (r *Runner) variants() []config.ModelVariant {
	var out []config.ModelVariant
	for _, v := range r.opts.Config.Models {
		if r.opts.Detector.Backend != config.BackendRemote {
			if _, err := os.Stat(v.Path); err != nil {
				r.logger.Warnf("Model %s not found, skipping %s", v.Path, v.Name)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// open returns the cached detector for v, opening it on first use.
func (r *Runner) open(v config.ModelVariant) (detector.Detector, error) {
	if d, ok := r.detectors[v.Path]; ok {
		return d, nil
	}
	cfg := r.opts.Detector
	cfg.ModelPath = v.Path
	d, err := r.opts.Open(cfg, r.opts.Classes, r.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s model", v.Name)
	}
	r.detectors[v.Path] = d
	return d, nil
}

// Run annotates the image at input, or every supported image directly inside the
// directory input. Failures on one image or model are logged and counted, the run
// continues with the next.
//
// Arguments:
//   - ctx: Cancels the run between images.
//   - input: An image file or a directory.
//
// Returns:
//   - Summary: What was processed.
//   - error: Input discovery errors, ErrNoModels, or ctx's error.
func (r *Runner) Run(ctx context.Context, input string) (Summary, error) {
	var summary Summary

	files, err := images.CollectFiles(input)
	if err != nil {
		return summary, err
	}
	summary.Images = len(files)
	r.logger.Infof("Found %d image(s) to process", len(files))

	variants := r.variants()
	if len(variants) == 0 {
		return summary, ErrNoModels
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		written, failed := r.annotate(ctx, path, variants)
		summary.Written += written
		summary.Failed += failed
	}
	r.logger.Info("Processing complete")
	return summary, nil
}

func (r *Runner) annotate(ctx context.Context, path string, variants []config.ModelVariant) (written, failed int) {
	r.logger.Infof("Processing: %s", filepath.Base(path))

	src, err := images.DecodeFile(path)
	if err != nil {
		r.logger.Errorf("Error processing %s: %v", filepath.Base(path), err)
		return 0, 1
	}
	img := images.Downscale(src, r.opts.Config.Size)
	r.logger.Infof("Image resized to %dx%d", img.Bounds().Dx(), img.Bounds().Dy())

	for _, v := range variants {
		if err := r.annotateWith(ctx, path, img, v); err != nil {
			r.logger.Errorf("Error processing %s with %s: %v", filepath.Base(path), v.Name, err)
			failed++
			continue
		}
		written++
	}
	return written, failed
}

func (r *Runner) annotateWith(ctx context.Context, path string, img image.Image, v config.ModelVariant) error {
	d, err := r.open(v)
	if err != nil {
		return err
	}

	r.logger.Infof("Analyzing with %s model (%s)", v.Name, v.Path)
	detections, err := d.Detect(ctx, img, float32(r.opts.Config.ConfThreshold))
	if err != nil {
		return err
	}
	for _, det := range detections {
		r.logger.Info(det.String())
	}
	if len(detections) == 0 {
		r.logger.Info("No detections.")
	}

	out := OutputPath(path, v.Suffix)
	if err := images.EncodeFile(out, r.renderer.Annotate(img, detections)); err != nil {
		return err
	}
	r.logger.Infof("Annotated image saved to %s", out)
	return nil
}

// Close releases every opened detector.
func (r *Runner) Close() error {
	var first error
	for path, d := range r.detectors {
		if err := d.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing %s", path)
		}
		delete(r.detectors, path)
	}
	return first
}
