package testdata

import (
	"math/rand"
	"time"

	"github.com/goccy/go-json"

	"github.com/jask/timebill/internal/timew"
)

// Options controls Generate. Zero values pick small defaults.
type Options struct {
	Seed    int64
	Count   int
	Clients []string
	Tasks   []string
	// Start is the first day entries may fall on; entries spread over Days.
	Start time.Time
	Days  int
}

var (
	defaultClients = []string{"madrona", "acme", "globex"}
	defaultTasks   = []string{"development", "testing", "design", "consulting", "meeting"}
	annotations    = []string{"", "", "API work", "Mockups", "Sprint review", "Bug triage"}
)

// Generate returns sample intervals that look like a month of tracked work.
// The same Options always produce the same intervals.
func Generate(o Options) []timew.Interval {
	if o.Count <= 0 {
		o.Count = 20
	}
	if len(o.Clients) == 0 {
		o.Clients = defaultClients
	}
	if len(o.Tasks) == 0 {
		o.Tasks = defaultTasks
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.Days <= 0 {
		o.Days = 28
	}

	r := rand.New(rand.NewSource(o.Seed))
	out := make([]timew.Interval, 0, o.Count)
	for i := 0; i < o.Count; i++ {
		start := o.Start.AddDate(0, 0, r.Intn(o.Days)).
			Add(time.Duration(8+r.Intn(9)) * time.Hour).
			Add(time.Duration(r.Intn(4)*15) * time.Minute)
		end := start.Add(time.Duration(1+r.Intn(16)) * 15 * time.Minute)

		client := o.Clients[r.Intn(len(o.Clients))]
		var tags []string
		switch r.Intn(3) {
		case 0:
			tags = []string{"project:" + client}
		case 1:
			tags = []string{"client:" + client}
		default:
			tags = []string{client}
		}
		tags = append(tags, o.Tasks[r.Intn(len(o.Tasks))])

		out = append(out, timew.Interval{
			Start:      start,
			End:        &end,
			Tags:       tags,
			Annotation: annotations[r.Intn(len(annotations))],
		})
	}
	return out
}

type exportRecord struct {
	ID         int      `json:"id"`
	Start      string   `json:"start"`
	End        string   `json:"end,omitempty"`
	Tags       []string `json:"tags"`
	Annotation string   `json:"annotation,omitempty"`
}

// ExportJSON renders intervals the way `timew export` does.
func ExportJSON(intervals []timew.Interval) (string, error) {
	const layout = "20060102T150405Z"
	records := make([]exportRecord, 0, len(intervals))
	for i, iv := range intervals {
		rec := exportRecord{
			ID:         i + 1,
			Start:      iv.Start.UTC().Format(layout),
			Tags:       iv.Tags,
			Annotation: iv.Annotation,
		}
		if iv.End != nil {
			rec.End = iv.End.UTC().Format(layout)
		}
		records = append(records, rec)
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Shuffle returns a reordered copy of intervals.
func Shuffle(intervals []timew.Interval, seed int64) []timew.Interval {
	out := make([]timew.Interval, len(intervals))
	copy(out, intervals)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
