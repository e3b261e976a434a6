package testdata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/timebill/internal/timew"
)

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	a := Generate(Options{Seed: 42, Count: 30})
	b := Generate(Options{Seed: 42, Count: 30})
	require.Len(t, a, 30)
	require.Equal(t, a, b)
	require.NotEqual(t, a, Generate(Options{Seed: 43, Count: 30}))

	for _, iv := range a {
		require.NotNil(t, iv.End)
		require.True(t, iv.End.After(iv.Start))
		require.Len(t, iv.Tags, 2)
	}
}

func TestExportJSON_ParsesBack(t *testing.T) {
	t.Parallel()

	intervals := Generate(Options{Seed: 1, Count: 10})
	raw, err := ExportJSON(intervals)
	require.NoError(t, err)

	parsed, err := timew.Parse(raw, timew.FormatJSON)
	require.NoError(t, err)
	require.Len(t, parsed, len(intervals))
	for i := range intervals {
		require.True(t, intervals[i].Start.Equal(parsed[i].Start))
		require.Equal(t, intervals[i].Elapsed(), parsed[i].Elapsed())
		require.Equal(t, intervals[i].Tags, parsed[i].Tags)
		require.Equal(t, intervals[i].Annotation, parsed[i].Annotation)
	}
}

func TestShuffle_KeepsInput(t *testing.T) {
	t.Parallel()

	intervals := Generate(Options{Seed: 3, Count: 15})
	before := append([]timew.Interval(nil), intervals...)
	shuffled := Shuffle(intervals, 9)
	require.Equal(t, before, intervals)
	require.ElementsMatch(t, intervals, shuffled)
}
