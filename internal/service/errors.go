package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	ErrUnknownClient   = errors.New("unknown client")
	ErrNoEntries       = errors.New("no time entries in period")
	ErrNoClientEntries = errors.New("no time entries for client in period")
	ErrInvalidPeriod   = errors.New("invalid billing period")
	ErrNoExporter      = errors.New("no exporter configured")
)

// UnknownClientError names a client id missing from the configuration and,
// when one is close enough, the configured id it was probably meant to be.
type UnknownClientError struct {
	ID         string
	Known      []string
	Suggestion string
}

func (e *UnknownClientError) Error() string {
	msg := fmt.Sprintf("unknown client %q", e.ID)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	if len(e.Known) > 0 {
		msg += "; configured: " + strings.Join(e.Known, ", ")
	}
	return msg
}

func (e *UnknownClientError) Is(target error) bool { return target == ErrUnknownClient }

func newUnknownClientError(id string, known []string) *UnknownClientError {
	return &UnknownClientError{ID: id, Known: known, Suggestion: suggest(id, known)}
}

// suggest returns the known id closest to id, or "" when none is within a
// normalized edit distance of 0.4.
func suggest(id string, known []string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	best, bestScore := "", 1.0
	for _, k := range known {
		maxlen := max(len(id), len(k))
		if maxlen == 0 {
			continue
		}
		score := float64(levenshtein.ComputeDistance(id, strings.ToLower(k))) / float64(maxlen)
		if score < bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore < 0.4 {
		return best
	}
	return ""
}
