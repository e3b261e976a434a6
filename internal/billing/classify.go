package billing

import (
	"strings"

	"github.com/jask/timebill/internal/timew"
)

const (
	projectTagPrefix = "project:"
	clientTagPrefix  = "client:"

	// DefaultTask is the primary task of an entry with no task tag.
	DefaultTask = "general"
	// UnknownProject groups entries whose tags name no project.
	UnknownProject = "unknown"
)

// Entry is an interval with its derived project and primary task.
// Project is empty when no tag names one.
type Entry struct {
	timew.Interval
	Project string
	Task    string
}

// Classifier derives project and task from tags. The alias set is fixed at
// construction, so Classify depends on nothing but its input.
type Classifier struct {
	aliases map[string]struct{}
}

// NewClassifier builds a classifier that never treats the given client names
// or aliases as a task, in any letter case.
func NewClassifier(aliases ...string) Classifier {
	set := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			set[strings.ToLower(a)] = struct{}{}
		}
	}
	return Classifier{aliases: set}
}

// Classify returns the project (first match of project:X, client:X, first
// tag) and the primary task (first tag that is not a project or client tag,
// the project itself, or a known client alias).
func (c Classifier) Classify(tags []string) (project, task string) {
	project = projectFromTags(tags)

	for _, tag := range tags {
		if isScopedTag(tag) || tag == project {
			continue
		}
		if _, ok := c.aliases[strings.ToLower(tag)]; ok {
			continue
		}
		return project, tag
	}
	return project, DefaultTask
}

// ClassifyAll classifies every interval, keeping input order.
func (c Classifier) ClassifyAll(intervals []timew.Interval) []Entry {
	out := make([]Entry, 0, len(intervals))
	for _, iv := range intervals {
		project, task := c.Classify(iv.Tags)
		out = append(out, Entry{Interval: iv, Project: project, Task: task})
	}
	return out
}

func projectFromTags(tags []string) string {
	for _, tag := range tags {
		if v, ok := strings.CutPrefix(tag, projectTagPrefix); ok {
			return v
		}
	}
	for _, tag := range tags {
		if v, ok := strings.CutPrefix(tag, clientTagPrefix); ok {
			return v
		}
	}
	if len(tags) > 0 {
		return tags[0]
	}
	return ""
}

func isScopedTag(tag string) bool {
	return strings.HasPrefix(tag, projectTagPrefix) || strings.HasPrefix(tag, clientTagPrefix)
}
