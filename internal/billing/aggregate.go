package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderDescription describes a line item whose entries carry neither an
// annotation nor a descriptive tag.
const PlaceholderDescription = "Time tracking"

var secondsPerHour = decimal.NewFromInt(3600)

type taskGroup struct {
	task     string
	elapsed  time.Duration
	descs    []string
	seenDesc map[string]struct{}
	tags     []string
	seenTag  map[string]struct{}
}

type projectGroup struct {
	project string
	tasks   []*taskGroup
	byTask  map[string]*taskGroup
}

// Aggregate groups entries by project and then by task, in first-occurrence
// order, and prices each group with resolve. Groups that sum to zero hours
// are still emitted.
func Aggregate(entries []Entry, resolve RateResolver) []LineItem {
	var projects []*projectGroup
	byProject := map[string]*projectGroup{}

	for _, e := range entries {
		project := e.Project
		if project == "" {
			project = UnknownProject
		}
		pg, ok := byProject[project]
		if !ok {
			pg = &projectGroup{project: project, byTask: map[string]*taskGroup{}}
			byProject[project] = pg
			projects = append(projects, pg)
		}
		tg, ok := pg.byTask[e.Task]
		if !ok {
			tg = &taskGroup{task: e.Task, seenDesc: map[string]struct{}{}, seenTag: map[string]struct{}{}}
			pg.byTask[e.Task] = tg
			pg.tasks = append(pg.tasks, tg)
		}
		tg.add(e)
	}

	var items []LineItem
	for _, pg := range projects {
		for _, tg := range pg.tasks {
			description := PlaceholderDescription
			if len(tg.descs) > 0 {
				description = strings.Join(tg.descs, "; ")
			}
			items = append(items, NewLineItem(
				description,
				pg.project,
				tg.task,
				Hours(tg.elapsed),
				resolve(pg.project, tg.task),
				tg.tags,
			))
		}
	}
	return items
}

// Hours converts a duration to decimal hours without float rounding.
func Hours(d time.Duration) decimal.Decimal {
	return decimal.New(int64(d), -9).Div(secondsPerHour)
}

func (g *taskGroup) add(e Entry) {
	g.elapsed += e.Elapsed()

	if d := entryDescription(e); d != "" {
		if _, ok := g.seenDesc[d]; !ok {
			g.seenDesc[d] = struct{}{}
			g.descs = append(g.descs, d)
		}
	}
	for _, tag := range e.Tags {
		if _, ok := g.seenTag[tag]; !ok {
			g.seenTag[tag] = struct{}{}
			g.tags = append(g.tags, tag)
		}
	}
}

// entryDescription is the annotation when present, else the entry's
// descriptive tags joined by comma.
func entryDescription(e Entry) string {
	if a := strings.TrimSpace(e.Annotation); a != "" {
		return a
	}
	var parts []string
	for _, tag := range e.Tags {
		if !isScopedTag(tag) {
			parts = append(parts, tag)
		}
	}
	return strings.Join(parts, ", ")
}
