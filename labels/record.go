// Package labels - YOLO label records and class name files.
package labels

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned by ParseLine for lines that do not hold a record.
var ErrMalformedRecord = errors.New("malformed label record")

// Record is one annotated object: a class id and a normalized center-form box.
type Record struct {
	ClassID int
	Box     boxspace.Box
}

// NewRecord returns a record for the normalized center-form box (cx, cy, w, h).
func NewRecord(classID int, cx, cy, w, h float64) Record {
	return Record{ClassID: classID, Box: boxspace.NewCenter(cx, cy, w, h, boxspace.Normalized)}
}

// Label returns the ground truth label of the record.
func (r Record) Label() boxspace.Label {
	return boxspace.GroundTruth(r.ClassID)
}

// ParseLine parses "<class_id> <cx> <cy> <w> <h>". Tokens past the fifth are ignored.
// The class id may be written as a float and is truncated. Coordinates are clamped
// into [0, 1].
//
// Arguments:
//   - line: A single line of a label file.
//
// Returns:
//   - Record: The parsed record.
//   - error: ErrMalformedRecord when the line has fewer than five tokens, a token does
//     not parse as a number, or the class id is negative.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "%d fields", len(fields))
	}

	var values [5]float64
	for i := range values {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Record{}, errors.Wrapf(ErrMalformedRecord, "field %d: %q", i, fields[i])
		}
		values[i] = v
	}

	if values[0] < 0 || math.IsNaN(values[0]) {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "class id %s", fields[0])
	}

	record := NewRecord(int(values[0]), values[1], values[2], values[3], values[4])
	record.Box = boxspace.Clip(record.Box, boxspace.Size{})
	for _, v := range record.Box.V {
		if math.IsNaN(v) {
			return Record{}, errors.Wrap(ErrMalformedRecord, "NaN coordinate")
		}
	}
	return record, nil
}

// FormatLine renders the record as "%d %.6f %.6f %.6f %.6f". Boxes in corner form are
// converted to center form first.
func FormatLine(r Record) (string, error) {
	if r.Box.Domain != boxspace.Normalized {
		return "", errors.Wrapf(boxspace.ErrDomainMismatch, "label records are normalized, got %s", r.Box.Domain)
	}
	if r.ClassID < 0 {
		return "", errors.Wrapf(boxspace.ErrInvalidLabel, "negative class id %d", r.ClassID)
	}
	cx, cy, w, h := r.Box.Centers()
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", r.ClassID, cx, cy, w, h), nil
}
