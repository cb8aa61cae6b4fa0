package dataset

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"

	"github.com/nvr-ai/yolo-overlay/augment"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/labels"
	"github.com/nvr-ai/yolo-overlay/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newDataset writes a small dataset: a labelled png, a labelled jpg with an invalid box,
// an unlabelled png and a png with an empty label file.
func newDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "images")
	lblDir := filepath.Join(dir, "labels")
	require.NoError(t, os.MkdirAll(imgDir, 0o755))
	require.NoError(t, os.MkdirAll(lblDir, 0o755))

	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}

	for _, name := range []string{"frame.png", "broken.jpg", "unlabelled.png", "empty.png"} {
		require.NoError(t, images.EncodeFile(filepath.Join(imgDir, name), img))
	}
	require.NoError(t, labels.WriteFile(filepath.Join(lblDir, "frame.txt"), []labels.Record{
		labels.NewRecord(0, 0.25, 0.5, 0.2, 0.2),
		labels.NewRecord(5, 0.7, 0.3, 0.1, 0.2),
	}))
	require.NoError(t, os.WriteFile(filepath.Join(lblDir, "broken.txt"), []byte("1 0.95 0.5 0.3 0.1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(lblDir, "empty.txt"), []byte("junk\n"), 0o644))
	return dir
}

func flipOnly() augment.Compose {
	return augment.Compose{Steps: []augment.Step{{Transform: augment.HorizontalFlip{}, P: 1}}}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunnerRun(t *testing.T) {
	dir := newDataset(t)
	logger, logs := logging.NewObservedTestLogger(t)

	runner := NewRunner(Options{DataDir: dir, PerImage: 3, Seed: 7, Pipeline: flipOnly()}, logger)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Images: 4, Augmented: 1, Skipped: 3, Written: 3}, summary)
	assert.Equal(t, 1, logs.FilterMessage("Augmented frame x3").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Skipping broken").Len())

	pattern := regexp.MustCompile(`^frame_aug[1-3]_[0-9a-f]{6}\.(png|txt)$`)
	var outputs []string
	for _, name := range listNames(t, runner.ImageDir()) {
		if pattern.MatchString(name) {
			outputs = append(outputs, name)
		}
	}
	require.Len(t, outputs, 3)

	for _, name := range outputs {
		stem := name[:len(name)-len(filepath.Ext(name))]
		img, err := images.DecodeFile(filepath.Join(runner.ImageDir(), name))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

		records, err := labels.ReadFile(filepath.Join(runner.LabelDir(), stem+".txt"))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 0, records[0].ClassID)
		assert.InDelta(t, 0.75, records[0].Box.V[0], 1e-6)
		assert.Equal(t, 5, records[1].ClassID)
		assert.InDelta(t, 0.3, records[1].Box.V[0], 1e-6)
	}
}

func TestRunnerSeedIsReproducible(t *testing.T) {
	first := newDataset(t)
	second := newDataset(t)

	for _, dir := range []string{first, second} {
		runner := NewRunner(Options{DataDir: dir, PerImage: 2, Seed: 99, Pipeline: augment.Default()}, zap.NewNop().Sugar())
		_, err := runner.Run(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, listNames(t, filepath.Join(first, "labels")), listNames(t, filepath.Join(second, "labels")))
	for _, name := range listNames(t, filepath.Join(first, "labels")) {
		a, err := os.ReadFile(filepath.Join(first, "labels", name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, "labels", name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}
}

func TestRunnerErrors(t *testing.T) {
	_, err := NewRunner(Options{DataDir: t.TempDir(), PerImage: 1}, zap.NewNop().Sugar()).Run(context.Background())
	assert.Error(t, err, "missing images directory")

	_, err = NewRunner(Options{DataDir: newDataset(t)}, zap.NewNop().Sugar()).Run(context.Background())
	assert.Error(t, err, "zero per-image count")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRunner(Options{DataDir: newDataset(t), PerImage: 1, Pipeline: flipOnly()}, zap.NewNop().Sugar()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnseededNamesDiffer(t *testing.T) {
	runner := NewRunner(Options{PerImage: 1}, zap.NewNop().Sugar())
	a, b := runner.newID(), runner.newID()
	assert.Len(t, a, 6)
	assert.NotEqual(t, a, b)
}
