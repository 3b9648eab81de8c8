// Package oem reads CCSDS Orbit Ephemeris Messages (OEM) in their KVN text form,
// as published for the ISS by NASA JSC, and turns them into state vectors.
//
// A message has four regions, in order:
//
//	CCSDS_OEM_VERS = 2.0           header (key = value)
//	META_START ... META_STOP       metadata (key = value)
//	COMMENT ...                    comments, ending with "COMMENT End sequence of events"
//	2023-02-15T12:00:00.000 x y z vx vy vz
//
// Every region is extracted from the same raw text with its own start/stop
// markers and separator.
package oem

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Region markers and separators of the JSC ISS OEM.
const (
	MarkerMetaStart = "META_START"
	MarkerMetaStop  = "META_STOP"
	MarkerEventsEnd = "COMMENT End sequence of events"
	KeyValueSep     = " = "
	CommentPrefix   = "COMMENT "
	defaultLineSep  = "\n"
	defaultFieldSep = " "
	fieldEpoch      = "epoch"
)

// VectorFields are the column names of a state vector line, in feed order.
var VectorFields = []string{fieldEpoch, "X", "Y", "Z", "X_Dot", "Y_Dot", "Z_Dot"}

// ParseError reports a structural or numeric problem in the feed text.
// It is fatal: the whole load is aborted.
type ParseError struct {
	Line   int // 1-based line number, 0 when not tied to a line
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("parse error at line %d, field %s: %s", e.Line, e.Field, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	default:
		return "parse error: " + e.Reason
	}
}

// ParseRecords splits text into lines on lineSep and every non-empty line after
// the start marker line (from the first line when start is empty) into values on
// fieldSep, pairing them with fields. Runs of fieldSep count as one separator.
// A line whose value count differs from len(fields) aborts the parse.
func ParseRecords(text string, fields []string, lineSep, fieldSep, start string) ([]map[string]string, error) {
	lines, err := scanRecords(text, fields, lineSep, fieldSep, start)
	if err != nil {
		return nil, err
	}
	records := make([]map[string]string, len(lines))
	for i, l := range lines {
		records[i] = l.values
	}
	return records, nil
}

// recordLine is one parsed data line and its 1-based source line number.
type recordLine struct {
	line   int
	values map[string]string
}

func scanRecords(text string, fields []string, lineSep, fieldSep, start string) ([]recordLine, error) {
	if lineSep == "" {
		lineSep = defaultLineSep
	}
	if fieldSep == "" {
		fieldSep = defaultFieldSep
	}

	var records []recordLine
	parsing := start == ""
	marker := strings.TrimSpace(start)

	for i, line := range strings.Split(text, lineSep) {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if parsing && trimmed != "" {
			values := splitFields(trimmed, fieldSep)
			if len(values) != len(fields) {
				return nil, &ParseError{
					Line:   i + 1,
					Reason: fmt.Sprintf("got %d values for %d fields", len(values), len(fields)),
				}
			}
			rec := make(map[string]string, len(fields))
			for j, name := range fields {
				rec[name] = values[j]
			}
			records = append(records, recordLine{line: i + 1, values: rec})
		}

		if !parsing && trimmed == marker {
			parsing = true
		}
	}

	return records, nil
}

func splitFields(line, sep string) []string {
	parts := strings.Split(line, sep)
	values := parts[:0]
	for _, p := range parts {
		if p != "" {
			values = append(values, p)
		}
	}
	return values
}

// sectionLines yields the 1-based number and content of every non-empty line
// strictly between the start marker line and the stop marker line. An empty
// start begins at the first line; a missing stop runs to the end.
func sectionLines(text, start, stop string, fn func(n int, line string) error) error {
	parsing := start == ""
	startMarker := strings.TrimSpace(start)
	stopMarker := strings.TrimSpace(stop)

	for i, line := range strings.Split(text, defaultLineSep) {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if stopMarker != "" && trimmed == stopMarker {
			return nil
		}
		if trimmed == startMarker {
			parsing = true
			continue
		}
		if !parsing || trimmed == "" {
			continue
		}
		if err := fn(i+1, line); err != nil {
			return err
		}
	}
	return nil
}

// ExtractMap reads "key<sep>value" lines between start and stop into a map,
// trimming keys and values. A line without sep aborts the extraction.
func ExtractMap(text, sep, stop, start string) (map[string]string, error) {
	info := make(map[string]string)
	err := sectionLines(text, start, stop, func(n int, line string) error {
		key, value, ok := strings.Cut(line, sep)
		if !ok {
			return &ParseError{Line: n, Reason: fmt.Sprintf("missing separator %q", sep)}
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ExtractList reads the text after sep on each line between start and stop,
// trimmed. Lines without sep and empty values are dropped.
func ExtractList(text, sep, stop, start string) []string {
	var items []string
	sectionLines(text, start, stop, func(_ int, line string) error {
		if _, value, ok := strings.Cut(line, sep); ok {
			if value = strings.TrimSpace(value); value != "" {
				items = append(items, value)
			}
		}
		return nil
	})
	return items
}

// ParseHeader returns the key/value lines that precede META_START.
func ParseHeader(text string) (map[string]string, error) {
	return ExtractMap(text, KeyValueSep, MarkerMetaStart, "")
}

// ParseMetadata returns the key/value lines of the META_START/META_STOP block.
func ParseMetadata(text string) (map[string]string, error) {
	return ExtractMap(text, KeyValueSep, MarkerMetaStop, MarkerMetaStart)
}

// ParseComments returns the COMMENT lines between META_STOP and the end of the
// sequence-of-events block.
func ParseComments(text string) []string {
	return ExtractList(text, CommentPrefix, MarkerEventsEnd, MarkerMetaStop)
}

// ParseStateVectors decodes every data line after the end-of-events comment.
func ParseStateVectors(text string) ([]StateVector, error) {
	records, err := scanRecords(text, VectorFields, defaultLineSep, defaultFieldSep, MarkerEventsEnd)
	if err != nil {
		return nil, err
	}

	vectors := make([]StateVector, 0, len(records))
	for _, rec := range records {
		v, err := decodeVector(rec.values)
		if err != nil {
			err.Line = rec.line
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func decodeVector(rec map[string]string) (StateVector, *ParseError) {
	epoch := rec[fieldEpoch]
	t, err := ParseEpoch(epoch)
	if err != nil {
		return StateVector{}, &ParseError{Field: fieldEpoch, Reason: err.Error()}
	}

	var nums [6]float64
	for i, name := range VectorFields[1:] {
		f, err := strconv.ParseFloat(rec[name], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return StateVector{}, &ParseError{Field: name, Reason: fmt.Sprintf("non-numeric value %q", rec[name])}
		}
		nums[i] = f
	}

	return StateVector{
		Epoch:    epoch,
		Time:     t,
		Position: Vector3{X: nums[0], Y: nums[1], Z: nums[2]},
		Velocity: Vector3{X: nums[3], Y: nums[4], Z: nums[5]},
	}, nil
}

// Parse reads a complete OEM from r.
func Parse(r io.Reader, logger *slog.Logger) (*Feed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OEM data: %w", err)
	}
	return ParseText(string(raw), logger)
}

// ParseText parses every region of an OEM held in memory.
func ParseText(text string, logger *slog.Logger) (*Feed, error) {
	header, err := ParseHeader(text)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	meta, err := ParseMetadata(text)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	vectors, err := ParseStateVectors(text)
	if err != nil {
		return nil, fmt.Errorf("state vectors: %w", err)
	}

	feed := &Feed{
		Header:   header,
		Metadata: meta,
		Comments: ParseComments(text),
		Vectors:  vectors,
	}

	logger.Debug("parsed OEM",
		"component", "oem",
		"vectors", len(feed.Vectors),
		"comments", len(feed.Comments),
		"object", feed.Metadata["OBJECT_NAME"],
	)
	return feed, nil
}
