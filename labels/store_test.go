package labels

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"0 0.5 0.5 0.2 0.2",
		"",
		"garbage",
		"1 0.1 0.2",
		"7 0.25 0.25 0.1 0.3",
	}, "\n")

	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].ClassID)
	assert.Equal(t, 7, records[1].ClassID)
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.txt")
	records := []Record{
		NewRecord(2, 0.512345, 0.333333, 0.1, 0.2),
		NewRecord(0, 0.9, 0.1, 0.05, 0.05),
	}

	require.NoError(t, WriteFile(path, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2 0.512345 0.333333 0.100000 0.200000\n0 0.900000 0.100000 0.050000 0.050000\n", string(raw))

	back, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, back, 2)
	for i := range records {
		assert.Equal(t, records[i].ClassID, back[i].ClassID)
		for j := range records[i].Box.V {
			assert.InDelta(t, records[i].Box.V[j], back[i].Box.V[j], 1e-6)
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestStemAndPathFor(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "simple", path: "dataset/images/frame01.png", expected: "frame01"},
		{name: "multiple dots", path: "/data/images/shot.2024.01.jpg", expected: "shot"},
		{name: "no extension", path: "images/raw", expected: "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stem(tt.path))
		})
	}

	assert.Equal(t, filepath.Join("dataset", "labels", "shot.txt"),
		PathFor(filepath.Join("dataset", "labels"), "dataset/images/shot.2024.01.jpg"))
}

func TestLoadClassNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("bullet\n\n  egg  \nhexagon\r\n\n"), 0o644))

	names, err := LoadClassNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"bullet", "egg", "hexagon"}, names)

	_, err = LoadClassNames(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
