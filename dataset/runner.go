// Package dataset - Augments a YOLO dataset in place.
package dataset

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nvr-ai/yolo-overlay/augment"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/labels"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options configures a Runner.
type Options struct {
	// DataDir holds images/ and labels/.
	DataDir string
	// PerImage is the number of augmented copies written per source image.
	PerImage int
	// Seed makes the run reproducible, including output names. Zero seeds randomly.
	Seed uint64
	// Pipeline is the augmentation applied to each copy.
	Pipeline augment.Compose
}

// Summary counts what a run did.
type Summary struct {
	Images    int `json:"images"`
	Augmented int `json:"augmented"`
	Skipped   int `json:"skipped"`
	Written   int `json:"written"`
}

// Runner writes augmented copies of every labelled image in a dataset.
type Runner struct {
	opts   Options
	logger *zap.SugaredLogger
	rng    *rand.Rand
	newID  func() string
}

// NewRunner returns a runner for opts.
func NewRunner(opts Options, logger *zap.SugaredLogger) *Runner {
	r := &Runner{opts: opts, logger: logger}
	if opts.Seed == 0 {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		r.newID = func() string { return shortID(uuid.New()) }
		return r
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	r.rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	ids := rand.NewChaCha8(seed)
	r.newID = func() string {
		u, err := uuid.NewRandomFromReader(ids)
		if err != nil {
			u = uuid.New()
		}
		return shortID(u)
	}
	return r
}

func shortID(u uuid.UUID) string {
	return hex.EncodeToString(u[:])[:6]
}

// ImageDir returns the dataset image directory.
func (r *Runner) ImageDir() string {
	return filepath.Join(r.opts.DataDir, "images")
}

// LabelDir returns the dataset label directory.
func (r *Runner) LabelDir() string {
	return filepath.Join(r.opts.DataDir, "labels")
}

// Run augments every image that has a non-empty label file. Outputs are named
// <stem>_aug<i>_<6 hex>.png and .txt and are written next to the sources. The image list
// is fixed before the first write so outputs are never augmented again.
//
// Images that cannot be read, or whose boxes are invalid, are logged and skipped.
//
// Arguments:
//   - ctx: Cancels the run between images.
//
// Returns:
//   - Summary: Counts of processed, skipped and written images.
//   - error: An error if the dataset cannot be listed, an output cannot be written, or
//     ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if r.opts.PerImage <= 0 {
		return summary, errors.Errorf("per-image count must be positive, got %d", r.opts.PerImage)
	}

	files, err := images.ListImages(r.ImageDir())
	if err != nil {
		return summary, err
	}
	summary.Images = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		sample, ok := r.load(path)
		if !ok {
			summary.Skipped++
			continue
		}

		stem := labels.Stem(path)
		for i := 1; i <= r.opts.PerImage; i++ {
			out, err := r.opts.Pipeline.Apply(r.rng, sample)
			if err != nil {
				return summary, errors.Wrapf(err, "augmenting %s", path)
			}
			name := fmt.Sprintf("%s_aug%d_%s", stem, i, r.newID())
			if err := images.EncodeFile(filepath.Join(r.ImageDir(), name+".png"), out.Image); err != nil {
				return summary, err
			}
			if err := labels.WriteFile(filepath.Join(r.LabelDir(), name+".txt"), out.Records()); err != nil {
				return summary, err
			}
			summary.Written++
		}
		summary.Augmented++
		r.logger.Infof("Augmented %s x%d", stem, r.opts.PerImage)
	}
	return summary, nil
}

// load reads an image and its labels, returning false when the image should be skipped.
func (r *Runner) load(path string) (augment.Sample, bool) {
	labelPath := labels.PathFor(r.LabelDir(), path)
	if _, err := os.Stat(labelPath); err != nil {
		r.logger.Debugw("no label file", "image", path, "labels", labelPath)
		return augment.Sample{}, false
	}
	records, err := labels.ReadFile(labelPath)
	if err != nil {
		r.logger.Warnw("cannot read labels", "labels", labelPath, "error", err)
		return augment.Sample{}, false
	}
	if len(records) == 0 {
		r.logger.Debugw("no label records", "labels", labelPath)
		return augment.Sample{}, false
	}

	img, err := images.DecodeFile(path)
	if err != nil {
		r.logger.Warnf("Skipping %s: %v", labels.Stem(path), err)
		return augment.Sample{}, false
	}
	sample := augment.NewSample(img, records)
	if err := sample.Validate(); err != nil {
		r.logger.Warnf("Skipping %s: %v", labels.Stem(path), err)
		return augment.Sample{}, false
	}
	return sample, true
}
