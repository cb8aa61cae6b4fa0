package images

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Input discovery errors.
var (
	ErrPathNotFound      = errors.New("path not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNoImages          = errors.New("no images found in directory")
	ErrNotFileOrDir      = errors.New("path is neither a file nor a directory")
)

// CollectFiles resolves an input path to the image files it names: the file itself, or
// the supported images directly inside a directory, sorted by name. The directory is
// listed once so files written while processing are not picked up.
//
// Arguments:
//   - path: A file or directory path.
//
// Returns:
//   - []string: Image file paths.
//   - error: ErrPathNotFound, ErrUnsupportedFormat, ErrNoImages or ErrNotFileOrDir.
func CollectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrPathNotFound, path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	switch {
	case info.Mode().IsRegular():
		if !IsSupported(path) {
			return nil, errors.Wrapf(ErrUnsupportedFormat, "%s (supported: %s)",
				filepath.Ext(path), strings.Join(SupportedExtensions, ", "))
		}
		return []string{path}, nil
	case info.IsDir():
		files, err := ListImages(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.Wrap(ErrNoImages, path)
		}
		return files, nil
	default:
		return nil, errors.Wrap(ErrNotFileOrDir, path)
	}
}

// ListImages returns the supported image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
