package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/types"
)

// Source replays calls from a file instead of the live API.
type Source struct {
	path  string
	calls []types.Call
	log   *logger.Logger
}

// Load reads a transcript export (.json) or a call workbook (.xlsx).
func Load(path string, catalog types.Catalog, log *logger.Logger) (*Source, error) {
	if log == nil {
		log = logger.New()
	}
	log = log.Component("dataset")

	var (
		calls []types.Call
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		calls, err = loadExport(path)
	case ".xlsx":
		calls, err = loadWorkbook(path, catalog)
	default:
		return nil, perr.Configf("unsupported input %q: want .json or .xlsx", path)
	}
	if err != nil {
		log.WithError(err).WithField("path", path).Error("load failed")
		return nil, perr.WithOp(err, "load "+path)
	}
	for i := range calls {
		if calls[i].ShortID == "" {
			calls[i].ShortID = types.ShortCallID(calls[i].ID, calls[i].Started)
		}
		for j := range calls[i].Parties {
			calls[i].Parties[j].Affiliation = types.NormalizeAffiliation(calls[i].Parties[j].Affiliation)
		}
		for j := range calls[i].Utterances {
			u := &calls[i].Utterances[j]
			if u.CallID == "" {
				u.CallID = calls[i].ID
			}
			u.Affiliation = types.NormalizeAffiliation(u.Affiliation)
		}
	}
	log.WithField("path", path).WithField("calls", len(calls)).Info("dataset loaded")
	return &Source{path: path, calls: calls, log: log}, nil
}

// Len is the number of calls in the file, in or out of any range.
func (s *Source) Len() int { return len(s.calls) }

// Calls yields the loaded calls that started inside rng, in file order.
func (s *Source) Calls(ctx context.Context, rng types.DateRange) iter.Seq2[types.Call, error] {
	return func(yield func(types.Call, error) bool) {
		if err := rng.Validate(); err != nil {
			yield(types.Call{}, perr.WithStage(err, "fetch"))
			return
		}
		for _, call := range s.calls {
			if err := ctx.Err(); err != nil {
				yield(types.Call{}, perr.WithStage(perr.Wrap(err, perr.CodePartialFetch, "replay interrupted"), "fetch"))
				return
			}
			if !rng.Contains(call.Started) {
				continue
			}
			if !yield(call, nil) {
				return
			}
		}
	}
}

func loadExport(path string) ([]types.Call, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(err, perr.CodeSourceUnavailable, "read export")
	}
	var doc types.Export
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, perr.Wrap(err, perr.CodeSourceUnavailable, "decode export")
	}
	return doc.Calls, nil
}

// loadWorkbook reads a "calls" sheet (first sheet when absent) and an optional
// "utterances" sheet. Columns are found by header name.
func loadWorkbook(path string, catalog types.Catalog) ([]types.Call, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, perr.Wrap(err, perr.CodeSourceUnavailable, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, perr.Unavailablef("workbook has no sheets")
	}
	callSheet := findSheet(sheets, "calls")
	if callSheet == "" {
		callSheet = sheets[0]
	}
	rows, err := f.GetRows(callSheet)
	if err != nil {
		return nil, perr.Wrapf(err, perr.CodeSourceUnavailable, "read sheet %s", callSheet)
	}
	if len(rows) == 0 {
		return nil, perr.Unavailablef("sheet %s is empty", callSheet)
	}

	col := headerIndex(rows[0], map[string][]string{
		"id":       {"call_id", "call id", "id"},
		"title":    {"call_title", "title"},
		"started":  {"call_start_time", "started", "start", "call_date", "date"},
		"duration": {"duration", "duration_sec"},
		"products": {"products", "product"},
		"scope":    {"scope"},
		"account":  {"account", "account_normalized"},
		"industry": {"industry", "industry_normalized"},
	})
	if col["id"] < 0 || col["started"] < 0 {
		return nil, perr.Unavailablef("sheet %s needs call id and start columns", callSheet)
	}

	var calls []types.Call
	byID := map[string]int{}
	for i, r := range rows[1:] {
		id := cell(r, col["id"])
		if id == "" {
			continue
		}
		started, err := parseTime(cell(r, col["started"]))
		if err != nil {
			return nil, perr.WithRecord(perr.Wrapf(err, perr.CodeSourceUnavailable, "row %d: bad start", i+2), id)
		}
		dur, _ := strconv.ParseInt(cell(r, col["duration"]), 10, 64)
		call := types.Call{
			ID:          id,
			Title:       cell(r, col["title"]),
			Started:     started,
			DurationSec: dur,
			Scope:       cell(r, col["scope"]),
			Products:    catalog.Recognize(splitList(cell(r, col["products"]))),
			Account:     cell(r, col["account"]),
			Industry:    cell(r, col["industry"]),
		}
		byID[id] = len(calls)
		calls = append(calls, call)
	}

	uttSheet := findSheet(sheets, "utterances")
	if uttSheet == "" {
		return calls, nil
	}
	urows, err := f.GetRows(uttSheet)
	if err != nil {
		return nil, perr.Wrapf(err, perr.CodeSourceUnavailable, "read sheet %s", uttSheet)
	}
	if len(urows) == 0 {
		return calls, nil
	}
	ucol := headerIndex(urows[0], map[string][]string{
		"call":        {"call_id", "call id"},
		"id":          {"utterance_id", "utterance id", "id"},
		"speaker":     {"speaker"},
		"title":       {"speaker_job_title", "speaker_title"},
		"affiliation": {"affiliation"},
		"text":        {"utterance_text", "text"},
		"topics":      {"topics", "topic"},
		"products":    {"products"},
		"start":       {"start_ms"},
		"end":         {"end_ms"},
	})
	if ucol["call"] < 0 || ucol["text"] < 0 {
		return nil, perr.Unavailablef("sheet %s needs call id and text columns", uttSheet)
	}
	for i, r := range urows[1:] {
		callID := cell(r, ucol["call"])
		idx, ok := byID[callID]
		if !ok {
			continue
		}
		uid := cell(r, ucol["id"])
		if uid == "" {
			uid = fmt.Sprintf("%s:%d", callID, i)
		}
		start, _ := strconv.ParseInt(cell(r, ucol["start"]), 10, 64)
		end, _ := strconv.ParseInt(cell(r, ucol["end"]), 10, 64)
		calls[idx].Utterances = append(calls[idx].Utterances, types.Utterance{
			ID:           uid,
			CallID:       callID,
			Speaker:      cell(r, ucol["speaker"]),
			SpeakerTitle: cell(r, ucol["title"]),
			Affiliation:  types.NormalizeAffiliation(cell(r, ucol["affiliation"])),
			Text:         cell(r, ucol["text"]),
			Topics:       splitList(cell(r, ucol["topics"])),
			Products:     catalog.Recognize(splitList(cell(r, ucol["products"]))),
			StartMs:      start,
			EndMs:        end,
		})
	}
	return calls, nil
}

func findSheet(sheets []string, name string) string {
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s
		}
	}
	return ""
}

// headerIndex maps each key to the first header column matching one of its
// aliases, or -1. Earlier aliases win over later ones.
func headerIndex(header []string, aliases map[string][]string) map[string]int {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}
	out := make(map[string]int, len(aliases))
	for key, names := range aliases {
		out[key] = -1
	lookup:
		for _, name := range names {
			for i, h := range norm {
				if h == name {
					out[key] = i
					break lookup
				}
			}
		}
	}
	return out
}

func cell(r []string, i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// splitList splits "a; b, c" into its trimmed, sorted parts.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
