package aggregator

import (
	"math"
	"sort"

	"gong-wizard-go/internal/classifier"
	"gong-wizard-go/internal/types"
)

// Tally is the running count for one record kind (calls or utterances).
// Invariant: Included + sum(Exclusions) == Total.
type Tally struct {
	Total      int                           `json:"total"`
	Included   int                           `json:"included"`
	Exclusions map[types.ExclusionReason]int `json:"exclusions"`
	Products   map[string]int                `json:"products"`
	Topics     map[string]int                `json:"topics"`
}

func NewTally() *Tally {
	return &Tally{
		Exclusions: map[types.ExclusionReason]int{},
		Products:   map[string]int{},
		Topics:     map[string]int{},
	}
}

// Add counts one classified record. An included record adds one to every
// product and topic it matched, so bucket sums may exceed Included.
func (t *Tally) Add(v types.Verdict) {
	t.Total++
	if !v.Included() {
		t.Exclusions[v.Reason]++
		return
	}
	t.Included++
	for _, p := range v.Products {
		t.Products[p]++
	}
	for _, tp := range v.Topics {
		t.Topics[tp]++
	}
}

func (t *Tally) Excluded() int {
	n := 0
	for _, c := range t.Exclusions {
		n += c
	}
	return n
}

func (t *Tally) Balanced() bool { return t.Included+t.Excluded() == t.Total }

// Percent is the included share of the total, see Percentage.
func (t *Tally) Percent() float64 { return Percentage(t.Included, t.Total) }

// Percentage returns part/total*100 rounded to one decimal; a zero total yields 0.
func Percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

type ReasonCount struct {
	Reason types.ExclusionReason `json:"reason"`
	Count  int                   `json:"count"`
}

// Breakdown lists every reason in the given order, including those never hit.
func (t *Tally) Breakdown(reasons []types.ExclusionReason) []ReasonCount {
	out := make([]ReasonCount, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, ReasonCount{Reason: r, Count: t.Exclusions[r]})
	}
	return out
}

type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Ranked orders counts by descending count, then by key.
func Ranked(m map[string]int) []KeyCount {
	out := make([]KeyCount, 0, len(m))
	for k, v := range m {
		out = append(out, KeyCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// IncludedUtterance pairs an included utterance with what it matched.
type IncludedUtterance struct {
	Utterance types.Utterance
	Verdict   types.Verdict
}

// IncludedCall is an included call together with its included utterances.
type IncludedCall struct {
	Call       types.Call
	Verdict    types.Verdict
	Utterances []IncludedUtterance
}

// Aggregator folds classified calls into a call Tally and an utterance Tally
// and keeps the included records for the report. Feed it from one goroutine.
type Aggregator struct {
	Calls      *Tally
	Utterances *Tally
	included   []IncludedCall
}

func New() *Aggregator {
	return &Aggregator{Calls: NewTally(), Utterances: NewTally()}
}

// Observe counts call and its utterances using the classifier result for that call.
func (a *Aggregator) Observe(call types.Call, res classifier.Result) {
	a.Calls.Add(res.Call)
	var kept []IncludedUtterance
	for i, v := range res.Utterances {
		a.Utterances.Add(v)
		if v.Included() {
			kept = append(kept, IncludedUtterance{Utterance: call.Utterances[i], Verdict: v})
		}
	}
	if res.Call.Included() {
		a.included = append(a.included, IncludedCall{Call: call, Verdict: res.Call, Utterances: kept})
	}
}

// IncludedCalls returns the included calls ordered by start time, then id,
// independent of the order they were observed in.
func (a *Aggregator) IncludedCalls() []IncludedCall {
	out := make([]IncludedCall, len(a.included))
	copy(out, a.included)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Call.Started.Equal(out[j].Call.Started) {
			return out[i].Call.Started.Before(out[j].Call.Started)
		}
		return out[i].Call.ID < out[j].Call.ID
	})
	return out
}
