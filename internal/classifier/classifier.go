// Package classifier decides, for every call and utterance of a run, whether it
// is included in the report or which single reason excludes it.
//
// Rules are evaluated in a fixed order and the first match wins. Call and
// utterance passes are independent; an utterance of an excluded call is itself
// excluded with ReasonExcludedCall before any product or topic check.
package classifier

import (
	"sort"
	"strings"

	"gong-wizard-go/internal/types"
)

// RunState is the per-run duplicate tracking. It must be owned by a single
// goroutine; create a fresh one for every run.
type RunState struct {
	seenCalls      map[string]struct{}
	seenUtterances map[string]struct{}
}

func NewRunState() *RunState {
	return &RunState{
		seenCalls:      map[string]struct{}{},
		seenUtterances: map[string]struct{}{},
	}
}

// observe records id and reports whether it had been seen before.
// Records without an identifier are never treated as duplicates.
func observe(seen map[string]struct{}, id string) bool {
	if id == "" {
		return false
	}
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}

// Classifier applies one run's FilterConfig.
type Classifier struct {
	filter types.FilterConfig
}

func New(filter types.FilterConfig) *Classifier {
	return &Classifier{filter: filter}
}

func (c *Classifier) Filter() types.FilterConfig { return c.filter }

// Result is the classification of one call and each of its utterances, in transcript order.
type Result struct {
	Call       types.Verdict
	Utterances []types.Verdict
}

// Classify runs the call pass and then the utterance pass for every utterance of call.
func (c *Classifier) Classify(st *RunState, call types.Call) Result {
	res := Result{Call: c.ClassifyCall(st, call)}
	res.Utterances = make([]types.Verdict, len(call.Utterances))
	for i, u := range call.Utterances {
		res.Utterances[i] = c.ClassifyUtterance(st, call, res.Call, u)
	}
	return res
}

type callRule struct {
	reason types.ExclusionReason
	match  func(c *Classifier, st *RunState, call types.Call) bool
}

var callRules = []callRule{
	{types.ReasonDateOutOfRange, func(c *Classifier, _ *RunState, call types.Call) bool {
		return !c.filter.Range().Contains(call.Started)
	}},
	{types.ReasonNoMatchingProduct, func(c *Classifier, _ *RunState, call types.Call) bool {
		return len(c.filter.MatchProducts(call.Products)) == 0
	}},
	{types.ReasonDuplicate, func(_ *Classifier, st *RunState, call types.Call) bool {
		return observe(st.seenCalls, call.ID)
	}},
	{types.ReasonInternalCall, func(_ *Classifier, _ *RunState, call types.Call) bool {
		return call.Internal()
	}},
	{types.ReasonTooShort, func(c *Classifier, _ *RunState, call types.Call) bool {
		floor := c.filter.MinCallDuration()
		return floor > 0 && call.Duration() < floor
	}},
}

// ClassifyCall returns the call-level verdict. Only the duplicate rule touches st.
func (c *Classifier) ClassifyCall(st *RunState, call types.Call) types.Verdict {
	for _, r := range callRules {
		if r.match(c, st, call) {
			return types.Exclude(r.reason)
		}
	}
	topics := make([]string, 0, len(call.Topics))
	for _, t := range call.Topics {
		topics = append(topics, t.Name)
	}
	return types.Verdict{
		Products: c.filter.MatchProducts(call.Products),
		Topics:   uniqueTopics(topics),
	}
}

type utteranceInput struct {
	call        types.Call
	callVerdict types.Verdict
	utt         types.Utterance
}

// products returns the utterance's own tags, or the call's when it has none.
func (in utteranceInput) products() []string {
	if len(in.utt.Products) > 0 {
		return in.utt.Products
	}
	return in.call.Products
}

type utteranceRule struct {
	reason types.ExclusionReason
	match  func(c *Classifier, st *RunState, in utteranceInput) bool
}

var utteranceRules = []utteranceRule{
	{types.ReasonDateOutOfRange, func(c *Classifier, _ *RunState, in utteranceInput) bool {
		return !c.filter.Range().Contains(in.call.Started)
	}},
	{types.ReasonExcludedCall, func(_ *Classifier, _ *RunState, in utteranceInput) bool {
		return !in.callVerdict.Included()
	}},
	{types.ReasonNoMatchingProduct, func(c *Classifier, _ *RunState, in utteranceInput) bool {
		return len(c.filter.MatchProducts(in.products())) == 0
	}},
	{types.ReasonDuplicate, func(_ *Classifier, st *RunState, in utteranceInput) bool {
		return observe(st.seenUtterances, in.utt.ID)
	}},
	{types.ReasonInternalSpeaker, func(c *Classifier, _ *RunState, in utteranceInput) bool {
		return in.utt.Affiliation != "" && c.filter.AffiliationExcluded(in.utt.Affiliation)
	}},
	{types.ReasonExcludedTopic, func(c *Classifier, _ *RunState, in utteranceInput) bool {
		if len(in.utt.Topics) == 0 {
			return false
		}
		for _, t := range in.utt.Topics {
			if !c.filter.TopicExcluded(t) {
				return false
			}
		}
		return true
	}},
	{types.ReasonTooShort, func(c *Classifier, _ *RunState, in utteranceInput) bool {
		n := in.utt.WordCount()
		return n == 0 || n <= c.filter.MinWordCount()
	}},
}

// ClassifyUtterance returns the utterance-level verdict given its parent call and that call's verdict.
func (c *Classifier) ClassifyUtterance(st *RunState, call types.Call, callVerdict types.Verdict, u types.Utterance) types.Verdict {
	in := utteranceInput{call: call, callVerdict: callVerdict, utt: u}
	for _, r := range utteranceRules {
		if r.match(c, st, in) {
			return types.Exclude(r.reason)
		}
	}
	return types.Verdict{
		Products: c.filter.MatchProducts(in.products()),
		Topics:   uniqueTopics(u.Topics),
	}
}

func uniqueTopics(topics []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
