package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gong-wizard-go/internal/aggregator"
	"gong-wizard-go/internal/classifier"
	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/types"
)

var (
	day0 = time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	week = types.NewDateRange(day0, day0.AddDate(0, 0, 7))
)

// input classifies calls against {odcv, secure air} and returns a complete report input.
func input(t *testing.T, calls []types.Call) Input {
	t.Helper()
	f, err := types.NewFilterConfig(week, []string{"odcv", "secure air"}, types.NewCatalog(), types.FilterOptions{
		ExcludedTopics:       []string{"Small Talk"},
		ExcludedAffiliations: []string{"Internal"},
		MinWordCount:         2,
	})
	require.NoError(t, err)
	c := classifier.New(f)
	st := classifier.NewRunState()
	agg := aggregator.New()
	for _, call := range calls {
		agg.Observe(call, c.Classify(st, call))
	}
	return Input{
		RunID:       "run-1",
		Range:       week,
		Products:    f.Products(),
		Calls:       agg.Calls,
		Utterances:  agg.Utterances,
		Included:    agg.IncludedCalls(),
		StartedAt:   day0.AddDate(0, 0, 8),
		CompletedAt: day0.AddDate(0, 0, 8).Add(90 * time.Second),
		Complete:    true,
	}
}

func call(i int, products ...string) types.Call {
	id := fmt.Sprintf("call%04d", i)
	started := day0.Add(time.Duration(i) * time.Hour)
	return types.Call{
		ID:          id,
		ShortID:     types.ShortCallID(id, started),
		Title:       "Call " + id,
		Started:     started,
		DurationSec: 900,
		Products:    products,
		Parties:     []types.Party{{SpeakerID: "c", Name: "Pat", Affiliation: types.AffiliationExternal}},
		Trackers:    []types.Tracker{{Name: "ODCV", Count: 2}},
		Topics:      []types.Topic{{Name: "Pricing", Duration: 30}},
		Utterances: []types.Utterance{
			{ID: id + ":0", CallID: id, SpeakerID: "c", Speaker: "Pat", Affiliation: types.AffiliationExternal, Text: "what does odcv cost", Topics: []string{"Pricing"}, StartMs: 61000, EndMs: 64000},
			{ID: id + ":1", CallID: id, SpeakerID: "c", Affiliation: types.AffiliationExternal, Text: "ok"},
		},
	}
}

func readCSV(t *testing.T, a Artifact) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(a.Data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func mustArtifact(t *testing.T, r *Report, name string) Artifact {
	t.Helper()
	a, ok := r.Artifact(name)
	require.True(t, ok, "artifact %s missing", name)
	return a
}

func TestBuildProducesEveryArtifact(t *testing.T) {
	calls := []types.Call{call(1, "odcv"), call(2), call(3, "odcv", "secure air")}
	rep := NewBuilder(logger.Discard()).Build(input(t, calls))
	require.Empty(t, rep.Failures)

	summary := readCSV(t, mustArtifact(t, rep, ArtifactCallSummary))
	require.Len(t, summary, 3)
	assert.Equal(t, "CALL_ID", summary[0][0])
	assert.Equal(t, "call0001", summary[1][0])
	assert.Equal(t, "odcv; secure air", summary[2][9])
	assert.Equal(t, "summary_gong_07apr25_to_14apr25.csv", mustArtifact(t, rep, ArtifactCallSummary).Filename)

	exclusions := readCSV(t, mustArtifact(t, rep, ArtifactCallExclusions))
	require.Len(t, exclusions, 1+len(types.CallReasons))
	assert.Equal(t, []string{"no_matching_product", "1", "33.3"}, exclusions[2])

	utts := readCSV(t, mustArtifact(t, rep, ArtifactUtterances))
	require.Len(t, utts, 3)
	assert.Equal(t, "call0001:0", utts[1][1])
	assert.Equal(t, "3000", utts[1][6])

	uex := readCSV(t, mustArtifact(t, rep, ArtifactUtteranceExclusions))
	require.Len(t, uex, 1+len(types.UtteranceReasons))

	products := readCSV(t, mustArtifact(t, rep, ArtifactProducts))
	assert.Equal(t, [][]string{{"PRODUCT", "COUNT", "PERCENT"}, {"odcv", "2", "100.0"}, {"secure air", "1", "50.0"}}, products)

	topics := readCSV(t, mustArtifact(t, rep, ArtifactTopics))
	assert.Equal(t, [][]string{{"TOPIC", "COUNT", "PERCENT"}, {"Pricing", "2", "100.0"}}, topics)
}

func TestTranscriptExportKeepsOnlyIncludedUtterances(t *testing.T) {
	rep := NewBuilder(logger.Discard()).Build(input(t, []types.Call{call(1, "odcv"), call(2)}))
	a := mustArtifact(t, rep, ArtifactTranscriptExport)
	assert.Equal(t, "json_gong_07apr25_to_14apr25.json", a.Filename)

	var doc types.Export
	require.NoError(t, json.Unmarshal(a.Data, &doc))
	assert.Equal(t, "2025-04-07", doc.Range.Start)
	require.Len(t, doc.Calls, 1)
	require.Len(t, doc.Calls[0].Utterances, 1)
	assert.Equal(t, "call0001:0", doc.Calls[0].Utterances[0].ID)
}

func TestWorkbookHasOneSheetPerTable(t *testing.T) {
	rep := NewBuilder(logger.Discard()).Build(input(t, []types.Call{call(1, "odcv")}))
	a := mustArtifact(t, rep, ArtifactWorkbook)

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"calls", "call_exclusions", "utterances", "utterance_exclusions", "products", "topics"}, f.GetSheetList())

	rows, err := f.GetRows("calls")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "call0001", rows[1][0])
}

func TestProductGroupsAreNaturallyOrdered(t *testing.T) {
	var calls []types.Call
	for i := 1; i <= 12; i++ {
		calls = append(calls, call(i, "secure air"))
	}
	calls = append(calls, call(20, "odcv"))
	rep := NewBuilder(logger.Discard()).Build(input(t, calls))
	require.Empty(t, rep.Failures)

	require.Len(t, rep.Groups, 3)
	assert.Equal(t, SummaryGroup, rep.Groups[0].Name)
	assert.Contains(t, rep.Groups[0].Files, "fetch_stats.json")
	assert.Equal(t, "odcv", rep.Groups[1].Name)
	assert.Equal(t, []string{"odcv_call_1.txt"}, rep.Groups[1].Files)
	assert.Equal(t, "secure air", rep.Groups[2].Name)

	files := rep.Groups[2].Files
	require.Len(t, files, 12)
	assert.Equal(t, "secure_air_call_1.txt", files[0])
	assert.Equal(t, "secure_air_call_2.txt", files[1])
	assert.Equal(t, "secure_air_call_10.txt", files[9])
	assert.Equal(t, "secure_air_call_12.txt", files[11])
}

func TestTranscriptText(t *testing.T) {
	rep := NewBuilder(logger.Discard()).Build(input(t, []types.Call{call(1, "odcv")}))
	var text string
	for _, a := range rep.Artifacts {
		if a.Filename == "odcv_call_1.txt" {
			text = string(a.Data)
		}
	}
	assert.Contains(t, text, "Call ID: call0001 (call0_2025-04-07)")
	assert.Contains(t, text, "[01:01] Pat: what does odcv cost")
	assert.NotContains(t, text, ": ok\n")
}

func TestFailingArtifactDoesNotBlockOthers(t *testing.T) {
	b := NewBuilder(logger.Discard())
	b.generators = append(b.generators,
		generator{name: "boom", build: func(Input) ([]Artifact, error) { panic("bad row") }},
		generator{name: "broken", build: func(Input) ([]Artifact, error) { return nil, errors.New("disk full") }},
	)
	rep := b.Build(input(t, []types.Call{call(1, "odcv")}))

	require.Len(t, rep.Failures, 2)
	for _, f := range rep.Failures {
		assert.True(t, perr.IsCode(f.Err, perr.CodeArtifactGeneration))
		assert.False(t, perr.CodeOf(f.Err).Fatal())
	}
	assert.Contains(t, rep.Failures[0].Err.Error(), "bad row")
	_, ok := rep.Artifact(ArtifactFetchStats)
	assert.True(t, ok)
	_, ok = rep.Artifact(ArtifactCallSummary)
	assert.True(t, ok)
}

func TestEmptyRunBuildsCleanly(t *testing.T) {
	rep := NewBuilder(logger.Discard()).Build(input(t, nil))
	require.Empty(t, rep.Failures)

	var st Stats
	require.NoError(t, json.Unmarshal(mustArtifact(t, rep, ArtifactFetchStats).Data, &st))
	assert.Zero(t, st.TotalCalls)
	assert.Zero(t, st.CallPercent)
	assert.True(t, st.Complete)
	assert.Len(t, st.CallExclusions, len(types.CallReasons))
	assert.InDelta(t, 90, st.DurationSeconds, 0.001)

	for _, row := range readCSV(t, mustArtifact(t, rep, ArtifactCallExclusions))[1:] {
		assert.Equal(t, "0", row[1])
		assert.Equal(t, "0.0", row[2])
	}
	assert.Len(t, rep.Groups, 3)
	assert.Empty(t, rep.Groups[1].Files)
}

func TestIncompleteRunOnlyReportsStats(t *testing.T) {
	in := input(t, []types.Call{call(1, "odcv")})
	in.Complete = false
	rep := NewBuilder(logger.Discard()).Build(in)

	require.Len(t, rep.Artifacts, 1)
	assert.Equal(t, ArtifactFetchStats, rep.Artifacts[0].Name)
	var st Stats
	require.NoError(t, json.Unmarshal(rep.Artifacts[0].Data, &st))
	assert.False(t, st.Complete)
	assert.Equal(t, 1, st.TotalCalls)
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", clock(0))
	assert.Equal(t, "01:01", clock(61000))
	assert.Equal(t, "1:00:05", clock(3605000))
}
