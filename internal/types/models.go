package types

import (
	"strings"
	"time"
)

const (
	AffiliationInternal = "Internal"
	AffiliationExternal = "External"
	AffiliationUnknown  = "Unknown"

	ScopeInternal = "Internal"
)

// NormalizeAffiliation maps a raw party affiliation onto Internal or External.
// Empty and Unknown count as External; other values keep their spelling.
func NormalizeAffiliation(aff string) string {
	aff = strings.TrimSpace(aff)
	switch {
	case aff == "", strings.EqualFold(aff, AffiliationUnknown), strings.EqualFold(aff, AffiliationExternal):
		return AffiliationExternal
	case strings.EqualFold(aff, AffiliationInternal):
		return AffiliationInternal
	}
	return aff
}

// Party is one participant listed on a call.
type Party struct {
	SpeakerID   string `json:"speaker_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Affiliation string `json:"affiliation"`
}

type Tracker struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Topic is a call-level topic with the seconds spent on it.
type Topic struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// Utterance is one speaker turn. It belongs to exactly one Call.
type Utterance struct {
	ID           string   `json:"id"`
	CallID       string   `json:"call_id"`
	SpeakerID    string   `json:"speaker_id,omitempty"`
	Speaker      string   `json:"speaker,omitempty"`
	SpeakerTitle string   `json:"speaker_title,omitempty"`
	Affiliation  string   `json:"affiliation,omitempty"`
	Text         string   `json:"text"`
	StartMs      int64    `json:"start_ms"`
	EndMs        int64    `json:"end_ms"`
	Topics       []string `json:"topics,omitempty"`
	Products     []string `json:"products,omitempty"` // empty means the call's products apply
}

func (u Utterance) WordCount() int { return len(strings.Fields(u.Text)) }

func (u Utterance) Duration() time.Duration {
	if u.EndMs < u.StartMs {
		return 0
	}
	return time.Duration(u.EndMs-u.StartMs) * time.Millisecond
}

// Call is a fetched call with its transcript. Calls are built once by a fetcher
// and only read afterwards.
type Call struct {
	ID          string      `json:"id"`
	ShortID     string      `json:"short_id"`
	Title       string      `json:"title,omitempty"`
	Started     time.Time   `json:"started"`
	DurationSec int64       `json:"duration_sec"`
	MeetingURL  string      `json:"meeting_url,omitempty"`
	Scope       string      `json:"scope,omitempty"`
	Parties     []Party     `json:"parties,omitempty"`
	Trackers    []Tracker   `json:"trackers,omitempty"`
	Topics      []Topic     `json:"topics,omitempty"`
	Products    []string    `json:"products,omitempty"`
	Account     string      `json:"account,omitempty"`
	Industry    string      `json:"industry,omitempty"`
	Website     string      `json:"website,omitempty"`
	Brief       string      `json:"brief,omitempty"`
	KeyPoints   []string    `json:"key_points,omitempty"`
	Utterances  []Utterance `json:"utterances"`
}

func (c Call) Duration() time.Duration { return time.Duration(c.DurationSec) * time.Second }

// Internal reports whether the call is internal-only: either the upstream scope
// says so, or parties are known and none of them is external.
func (c Call) Internal() bool {
	if strings.EqualFold(c.Scope, ScopeInternal) {
		return true
	}
	return len(c.Parties) > 0 && c.ExternalParticipants() == 0
}

func (c Call) ExternalParticipants() int { return c.countAffiliation(AffiliationExternal) }

func (c Call) InternalParticipants() int { return c.countAffiliation(AffiliationInternal) }

func (c Call) countAffiliation(aff string) int {
	n := 0
	for _, p := range c.Parties {
		if NormalizeAffiliation(p.Affiliation) == aff {
			n++
		}
	}
	return n
}

// SpeakerCount counts distinct speakers that actually spoke.
func (c Call) SpeakerCount() int {
	seen := map[string]struct{}{}
	for _, u := range c.Utterances {
		if u.SpeakerID != "" {
			seen[u.SpeakerID] = struct{}{}
		}
	}
	return len(seen)
}

// ShortCallID is the first five characters of the id plus the start date.
func ShortCallID(id string, started time.Time) string {
	prefix := id
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	date := "unknown-date"
	if !started.IsZero() {
		date = started.Format("2006-01-02")
	}
	return prefix + "_" + date
}
