package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gong-wizard-go/internal/aggregator"
	"gong-wizard-go/internal/types"
)

// Artifact names.
const (
	ArtifactCallSummary         = "call_summary"
	ArtifactCallExclusions      = "call_exclusions"
	ArtifactUtterances          = "utterances"
	ArtifactUtteranceExclusions = "utterance_exclusions"
	ArtifactProducts            = "products"
	ArtifactTopics              = "topics"
	ArtifactTranscriptExport    = "transcript_export"
	ArtifactWorkbook            = "workbook"
	ArtifactTranscripts         = "product_transcripts"
	ArtifactFetchStats          = "fetch_stats"
)

// table is a tabular artifact before it is rendered to CSV or a workbook sheet.
type table struct {
	sheet  string
	header []string
	rows   [][]string
}

type tableFunc func(Input) table

// tables lists the tabular artifacts in the order their sheets appear in the workbook.
var tables = []tableFunc{
	callSummaryTable,
	callExclusionTable,
	utteranceTable,
	utteranceExclusionTable,
	productTable,
	topicTable,
}

// fileName follows <kind>_gong_<ddmonyy>_to_<ddmonyy>.<ext>.
func fileName(kind, ext string, r types.DateRange) string {
	return fmt.Sprintf("%s_gong_%s.%s", kind, r.Label(), ext)
}

func tableArtifact(name, kind string, fn tableFunc) func(Input) ([]Artifact, error) {
	return func(in Input) ([]Artifact, error) {
		data, err := renderCSV(fn(in))
		if err != nil {
			return nil, err
		}
		return []Artifact{{
			Name:        name,
			Filename:    fileName(kind, "csv", in.Range),
			Group:       SummaryGroup,
			ContentType: ContentCSV,
			Data:        data,
		}}, nil
	}
}

func renderCSV(t table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func callSummaryTable(in Input) table {
	t := table{
		sheet: "calls",
		header: []string{
			"CALL_ID", "SHORT_CALL_ID", "CALL_TITLE", "CALL_START_TIME", "CALL_DATE",
			"DURATION", "MEETING_URL", "ACCOUNT", "INDUSTRY", "PRODUCTS", "TOPICS",
			"EXTERNAL_PARTICIPANTS", "INTERNAL_PARTICIPANTS", "TOTAL_SPEAKERS", "INCLUDED_UTTERANCES",
			"TRACKERS_ALL", "PRICING_DURATION", "NEXT_STEPS_DURATION", "CALL_BRIEF", "KEY_POINTS",
		},
	}
	for _, ic := range in.Included {
		c := ic.Call
		t.rows = append(t.rows, []string{
			c.ID,
			c.ShortID,
			c.Title,
			formatTime(c.Started),
			formatDate(c.Started),
			strconv.FormatInt(c.DurationSec, 10),
			c.MeetingURL,
			c.Account,
			c.Industry,
			strings.Join(ic.Verdict.Products, "; "),
			strings.Join(ic.Verdict.Topics, "; "),
			strconv.Itoa(c.ExternalParticipants()),
			strconv.Itoa(c.InternalParticipants()),
			strconv.Itoa(c.SpeakerCount()),
			strconv.Itoa(len(ic.Utterances)),
			trackersAll(c.Trackers),
			formatSeconds(topicDuration(c.Topics, "Pricing")),
			formatSeconds(topicDuration(c.Topics, "Next Steps")),
			c.Brief,
			strings.Join(c.KeyPoints, " | "),
		})
	}
	return t
}

func utteranceTable(in Input) table {
	t := table{
		sheet: "utterances",
		header: []string{
			"CALL_ID", "UTTERANCE_ID", "SHORT_CALL_ID", "CALL_DATE", "SPEAKER", "SPEAKER_JOB_TITLE",
			"UTTERANCE_DURATION", "UTTERANCE_TEXT", "TOPICS", "PRODUCTS",
		},
	}
	for _, ic := range in.Included {
		for _, iu := range ic.Utterances {
			u := iu.Utterance
			t.rows = append(t.rows, []string{
				ic.Call.ID,
				u.ID,
				ic.Call.ShortID,
				formatDate(ic.Call.Started),
				u.Speaker,
				u.SpeakerTitle,
				strconv.FormatInt(u.Duration().Milliseconds(), 10),
				u.Text,
				strings.Join(iu.Verdict.Topics, "; "),
				strings.Join(iu.Verdict.Products, "; "),
			})
		}
	}
	return t
}

func exclusionTable(sheet string, tally *aggregator.Tally, reasons []types.ExclusionReason) table {
	t := table{sheet: sheet, header: []string{"REASON", "COUNT", "PERCENT"}}
	for _, rc := range tally.Breakdown(reasons) {
		t.rows = append(t.rows, []string{
			string(rc.Reason),
			strconv.Itoa(rc.Count),
			formatPercent(aggregator.Percentage(rc.Count, tally.Total)),
		})
	}
	return t
}

func callExclusionTable(in Input) table {
	return exclusionTable("call_exclusions", in.Calls, types.CallReasons)
}

func utteranceExclusionTable(in Input) table {
	return exclusionTable("utterance_exclusions", in.Utterances, types.UtteranceReasons)
}

func breakdownTable(sheet, key string, counts map[string]int, included int) table {
	t := table{sheet: sheet, header: []string{key, "COUNT", "PERCENT"}}
	for _, kc := range aggregator.Ranked(counts) {
		t.rows = append(t.rows, []string{
			kc.Key,
			strconv.Itoa(kc.Count),
			formatPercent(aggregator.Percentage(kc.Count, included)),
		})
	}
	return t
}

// productTable counts included utterances per product.
func productTable(in Input) table {
	return breakdownTable("products", "PRODUCT", in.Utterances.Products, in.Utterances.Included)
}

func topicTable(in Input) table {
	return breakdownTable("topics", "TOPIC", in.Utterances.Topics, in.Utterances.Included)
}

func trackersAll(ts []types.Tracker) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, fmt.Sprintf("%s:%d", t.Name, t.Count))
	}
	return strings.Join(parts, ";")
}

func topicDuration(topics []types.Topic, name string) float64 {
	for _, t := range topics {
		if t.Name == name {
			return t.Duration
		}
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatSeconds(s float64) string { return strconv.FormatFloat(s, 'f', -1, 64) }

func formatPercent(p float64) string { return strconv.FormatFloat(p, 'f', 1, 64) }
