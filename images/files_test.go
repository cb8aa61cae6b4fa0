package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.PNG"))
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))

	empty := t.TempDir()
	touch(t, filepath.Join(empty, "readme.md"))

	tests := []struct {
		name     string
		path     string
		expected []string
		err      error
	}{
		{
			name:     "directory",
			path:     dir,
			expected: []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.PNG")},
		},
		{
			name:     "single file",
			path:     filepath.Join(dir, "b.PNG"),
			expected: []string{filepath.Join(dir, "b.PNG")},
		},
		{name: "missing", path: filepath.Join(dir, "missing.png"), err: ErrPathNotFound},
		{name: "unsupported file", path: filepath.Join(dir, "notes.txt"), err: ErrUnsupportedFormat},
		{name: "no images", path: empty, err: ErrNoImages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := CollectFiles(tt.path)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, files)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	format, ok := FormatFromPath("shot.JPEG")
	assert.True(t, ok)
	assert.Equal(t, FormatJPEG, format)

	format, ok = FormatFromPath("scan.tif")
	assert.True(t, ok)
	assert.Equal(t, FormatTIFF, format)

	_, ok = FormatFromPath("clip.mp4")
	assert.False(t, ok)

	assert.True(t, IsSupported("x.WebP"))
	assert.False(t, IsSupported("x.tif"))
}
