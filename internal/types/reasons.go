package types

// ExclusionReason is the single cause a call or utterance was left out of a report.
// The zero value means the record was included.
type ExclusionReason string

const (
	ReasonNone              ExclusionReason = ""
	ReasonDateOutOfRange    ExclusionReason = "date_out_of_range"
	ReasonNoMatchingProduct ExclusionReason = "no_matching_product"
	ReasonDuplicate         ExclusionReason = "duplicate"
	ReasonInternalCall      ExclusionReason = "internal_call"
	ReasonTooShort          ExclusionReason = "too_short"
	ReasonExcludedCall      ExclusionReason = "excluded_call"
	ReasonInternalSpeaker   ExclusionReason = "internal_speaker"
	ReasonExcludedTopic     ExclusionReason = "excluded_topic"
)

// CallReasons lists call-level reasons in evaluation priority order.
var CallReasons = []ExclusionReason{
	ReasonDateOutOfRange,
	ReasonNoMatchingProduct,
	ReasonDuplicate,
	ReasonInternalCall,
	ReasonTooShort,
}

// UtteranceReasons lists utterance-level reasons in evaluation priority order.
var UtteranceReasons = []ExclusionReason{
	ReasonDateOutOfRange,
	ReasonExcludedCall,
	ReasonNoMatchingProduct,
	ReasonDuplicate,
	ReasonInternalSpeaker,
	ReasonExcludedTopic,
	ReasonTooShort,
}

// Verdict is the outcome of classifying one record.
type Verdict struct {
	Reason   ExclusionReason `json:"reason,omitempty"`
	Products []string        `json:"products,omitempty"`
	Topics   []string        `json:"topics,omitempty"`
}

func (v Verdict) Included() bool { return v.Reason == ReasonNone }

func Exclude(r ExclusionReason) Verdict { return Verdict{Reason: r} }
