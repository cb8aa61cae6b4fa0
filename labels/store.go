package labels

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Read parses every line of r, skipping blank and malformed lines.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	var records []Record
	for scanner.Scan() {
		record, err := ParseLine(scanner.Text())
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading label records")
	}
	return records, nil
}

// ReadFile reads the label file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening label file %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Write writes one line per record, each terminated by a newline.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for i, record := range records {
		line, err := FormatLine(record)
		if err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return errors.Wrap(err, "writing label record")
		}
	}
	return bw.Flush()
}

// WriteFile creates or truncates the file at path and writes the records to it.
func WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating label file %s", path)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PathFor returns the label file for an image: <labelDir>/<stem>.txt, where stem is
// the base name of the image up to its first dot.
func PathFor(labelDir, imagePath string) string {
	return filepath.Join(labelDir, Stem(imagePath)+".txt")
}

// Stem returns the base name of path up to its first dot.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// LoadClassNames reads a class name file with one name per line. Lines are trimmed and
// blank lines are ignored, so the n-th non-blank line names class n.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening class file %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var names []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading class file %s", path)
	}
	return names, nil
}
