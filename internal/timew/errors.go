package timew

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrMalformedExport   = errors.New("malformed export")
	ErrTimewNotFound     = errors.New("timew command not found")
	ErrExportTimeout     = errors.New("timew export timed out")
)

// UnsupportedFormatError is returned for any format other than json or csv.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format %q (want json or csv)", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// MalformedExportError reports export text that cannot be parsed as the
// declared format. Record is 1-based; 0 means the document as a whole.
type MalformedExportError struct {
	Format Format
	Record int
	Reason string
	Err    error
}

func (e *MalformedExportError) Error() string {
	msg := fmt.Sprintf("malformed %s export", e.Format)
	if e.Record > 0 {
		msg += fmt.Sprintf(": record %d", e.Record)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedExportError) Unwrap() error { return e.Err }

func (e *MalformedExportError) Is(target error) bool { return target == ErrMalformedExport }
