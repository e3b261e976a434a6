package timew

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sosodev/duration"
)

// Format is the serialization of a timew export.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a user supplied format name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", &UnsupportedFormatError{Format: s}
	}
}

// Interval is one tracked span of work. End is nil for an interval that is
// still open; Duration carries a length that was known upstream and only
// counts when End is nil.
type Interval struct {
	Start      time.Time
	End        *time.Time
	Tags       []string
	Annotation string
	Duration   *time.Duration
}

// Elapsed is the billable length of the interval.
func (i Interval) Elapsed() time.Duration {
	if i.End != nil {
		return i.End.Sub(i.Start)
	}
	if i.Duration != nil {
		return *i.Duration
	}
	return 0
}

// timestamps in exports are RFC 3339 or the compact layout timew writes natively.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"20060102T150405Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Parse turns raw export text into intervals, one per record, in input order.
func Parse(raw string, format Format) ([]Interval, error) {
	switch format {
	case FormatJSON:
		return parseJSON(raw)
	case FormatCSV:
		return parseCSV(raw)
	default:
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
}

type jsonRecord struct {
	Start      *string  `json:"start"`
	End        *string  `json:"end"`
	Tags       []string `json:"tags"`
	Annotation *string  `json:"annotation"`
	Duration   *string  `json:"duration"`
}

func parseJSON(raw string) ([]Interval, error) {
	var records []jsonRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, &MalformedExportError{Format: FormatJSON, Reason: "invalid json", Err: err}
	}

	intervals := make([]Interval, 0, len(records))
	for idx, rec := range records {
		fields := recordFields{tags: rec.Tags}
		if rec.Start != nil {
			fields.start = *rec.Start
		}
		if rec.End != nil {
			fields.end = *rec.End
		}
		if rec.Annotation != nil {
			fields.annotation = *rec.Annotation
		}
		if rec.Duration != nil {
			fields.duration = *rec.Duration
		}
		iv, err := fields.interval()
		if err != nil {
			return nil, &MalformedExportError{Format: FormatJSON, Record: idx + 1, Err: err}
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

func parseCSV(raw string) ([]Interval, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return []Interval{}, nil
	}
	if err != nil {
		return nil, &MalformedExportError{Format: FormatCSV, Reason: "invalid header", Err: err}
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["start"]; !ok {
		return nil, &MalformedExportError{Format: FormatCSV, Reason: `missing required column "start"`}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	intervals := []Interval{}
	for n := 1; ; n++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedExportError{Format: FormatCSV, Record: n, Err: err}
		}
		fields := recordFields{
			start:      field(row, "start"),
			end:        field(row, "end"),
			tags:       splitTags(field(row, "tags")),
			annotation: field(row, "annotation"),
			duration:   field(row, "duration"),
		}
		iv, err := fields.interval()
		if err != nil {
			return nil, &MalformedExportError{Format: FormatCSV, Record: n, Err: err}
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

// splitTags splits a comma joined tag cell, dropping blank tokens.
func splitTags(s string) []string {
	tags := []string{}
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tags = append(tags, tok)
		}
	}
	return tags
}

// recordFields is the format independent view of one export record.
type recordFields struct {
	start      string
	end        string
	tags       []string
	annotation string
	duration   string
}

func (f recordFields) interval() (Interval, error) {
	if strings.TrimSpace(f.start) == "" {
		return Interval{}, errors.New(`missing required field "start"`)
	}
	start, err := ParseTimestamp(f.start)
	if err != nil {
		return Interval{}, err
	}

	iv := Interval{Start: start, Tags: f.tags, Annotation: f.annotation}
	if iv.Tags == nil {
		iv.Tags = []string{}
	}
	if strings.TrimSpace(f.end) != "" {
		end, err := ParseTimestamp(f.end)
		if err != nil {
			return Interval{}, err
		}
		if end.Before(start) {
			return Interval{}, errors.New("end is before start")
		}
		iv.End = &end
	}
	if d := strings.TrimSpace(f.duration); d != "" {
		parsed, err := duration.Parse(d)
		if err != nil {
			return Interval{}, err
		}
		td := parsed.ToTimeDuration()
		if td < 0 {
			return Interval{}, errors.New("duration is negative")
		}
		iv.Duration = &td
	}
	return iv, nil
}

// ParseTimestamp accepts RFC 3339 (a trailing Z is UTC), timew's compact
// 20060102T150405Z form, and offset-less ISO timestamps which are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
