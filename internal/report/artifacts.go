package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gong-wizard-go/internal/aggregator"
	"gong-wizard-go/internal/types"
)

// transcriptExport writes the included calls with only their included
// utterances. The document round-trips through the dataset loader.
func transcriptExport(in Input) ([]Artifact, error) {
	doc := types.Export{
		Range:    types.NewExportRange(in.Range),
		Products: append([]string{}, in.Products...),
		Calls:    make([]types.Call, 0, len(in.Included)),
	}
	for _, ic := range in.Included {
		call := ic.Call
		call.Utterances = make([]types.Utterance, 0, len(ic.Utterances))
		for _, iu := range ic.Utterances {
			call.Utterances = append(call.Utterances, iu.Utterance)
		}
		doc.Calls = append(doc.Calls, call)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return []Artifact{{
		Name:        ArtifactTranscriptExport,
		Filename:    fileName("json", "json", in.Range),
		Group:       SummaryGroup,
		ContentType: ContentJSON,
		Data:        data,
	}}, nil
}

// workbook puts every tabular artifact on its own sheet.
func workbook(in Input) ([]Artifact, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, fn := range tables {
		t := fn(in)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(t.sheet); err != nil {
			return nil, err
		}
		if err := writeSheet(f, t); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", t.sheet, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return []Artifact{{
		Name:        ArtifactWorkbook,
		Filename:    fileName("workbook", "xlsx", in.Range),
		Group:       SummaryGroup,
		ContentType: ContentXLSX,
		Data:        buf.Bytes(),
	}}, nil
}

func writeSheet(f *excelize.File, t table) error {
	if err := f.SetSheetRow(t.sheet, "A1", &t.header); err != nil {
		return err
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(t.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// productTranscripts renders one text file per included call and product.
// n in <slug>_call_<n>.txt is the call's 1-based position by start time within
// the product bucket.
func productTranscripts(in Input) ([]Artifact, error) {
	buckets := map[string][]aggregator.IncludedCall{}
	for _, ic := range in.Included {
		for _, p := range ic.Verdict.Products {
			buckets[p] = append(buckets[p], ic)
		}
	}
	tags := make([]string, 0, len(buckets))
	for tag := range buckets {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var out []Artifact
	for _, tag := range tags {
		calls := buckets[tag]
		sort.SliceStable(calls, func(i, j int) bool {
			if !calls[i].Call.Started.Equal(calls[j].Call.Started) {
				return calls[i].Call.Started.Before(calls[j].Call.Started)
			}
			return calls[i].Call.ID < calls[j].Call.ID
		})
		slug := types.Slug(tag)
		for i, ic := range calls {
			out = append(out, Artifact{
				Name:        ArtifactTranscripts,
				Filename:    fmt.Sprintf("%s_call_%d.txt", slug, i+1),
				Group:       tag,
				ContentType: ContentText,
				Data:        []byte(renderTranscript(ic)),
			})
		}
	}
	return out, nil
}

func renderTranscript(ic aggregator.IncludedCall) string {
	c := ic.Call
	var b strings.Builder
	fmt.Fprintf(&b, "Call: %s\n", c.Title)
	fmt.Fprintf(&b, "Call ID: %s (%s)\n", c.ID, c.ShortID)
	fmt.Fprintf(&b, "Started: %s\n", formatTime(c.Started))
	fmt.Fprintf(&b, "Duration: %s\n", c.Duration())
	if c.Account != "" {
		fmt.Fprintf(&b, "Account: %s\n", c.Account)
	}
	fmt.Fprintf(&b, "Products: %s\n", strings.Join(ic.Verdict.Products, ", "))
	if len(ic.Verdict.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(ic.Verdict.Topics, ", "))
	}
	b.WriteString("\n")
	for _, iu := range ic.Utterances {
		u := iu.Utterance
		speaker := u.Speaker
		if speaker == "" {
			speaker = "Unknown speaker"
		}
		if u.SpeakerTitle != "" {
			speaker += " (" + u.SpeakerTitle + ")"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", clock(u.StartMs), speaker, u.Text)
	}
	return b.String()
}

// clock renders milliseconds as mm:ss, or h:mm:ss past the hour.
func clock(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Stats is the fetch_stats.json document.
type Stats struct {
	RunID               string                        `json:"run_id"`
	Range               types.ExportRange             `json:"range"`
	Products            []string                      `json:"products"`
	StartedAt           time.Time                     `json:"started_at"`
	CompletedAt         time.Time                     `json:"completed_at"`
	DurationSeconds     float64                       `json:"duration_seconds"`
	TotalCalls          int                           `json:"total_calls"`
	IncludedCalls       int                           `json:"included_calls"`
	CallPercent         float64                       `json:"call_percent"`
	TotalUtterances     int                           `json:"total_utterances"`
	IncludedUtterances  int                           `json:"included_utterances"`
	UtterancePercent    float64                       `json:"utterance_percent"`
	CallExclusions      map[types.ExclusionReason]int `json:"call_exclusions"`
	UtteranceExclusions map[types.ExclusionReason]int `json:"utterance_exclusions"`
	Complete            bool                          `json:"complete"`
}

func fetchStats(in Input) ([]Artifact, error) {
	st := Stats{
		RunID:               in.RunID,
		Range:               types.NewExportRange(in.Range),
		Products:            append([]string{}, in.Products...),
		StartedAt:           in.StartedAt,
		CompletedAt:         in.CompletedAt,
		DurationSeconds:     in.CompletedAt.Sub(in.StartedAt).Seconds(),
		TotalCalls:          in.Calls.Total,
		IncludedCalls:       in.Calls.Included,
		CallPercent:         in.Calls.Percent(),
		TotalUtterances:     in.Utterances.Total,
		IncludedUtterances:  in.Utterances.Included,
		UtterancePercent:    in.Utterances.Percent(),
		CallExclusions:      reasonMap(in.Calls, types.CallReasons),
		UtteranceExclusions: reasonMap(in.Utterances, types.UtteranceReasons),
		Complete:            in.Complete,
	}
	if st.DurationSeconds < 0 {
		st.DurationSeconds = 0
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, err
	}
	return []Artifact{{
		Name:        ArtifactFetchStats,
		Filename:    "fetch_stats.json",
		Group:       SummaryGroup,
		ContentType: ContentJSON,
		Data:        data,
	}}, nil
}

func reasonMap(t *aggregator.Tally, reasons []types.ExclusionReason) map[types.ExclusionReason]int {
	out := make(map[types.ExclusionReason]int, len(reasons))
	for _, rc := range t.Breakdown(reasons) {
		out[rc.Reason] = rc.Count
	}
	return out
}
