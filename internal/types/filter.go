package types

import (
	"sort"
	"strings"
	"time"

	perr "gong-wizard-go/internal/errors"
)

const dateLayout = "2006-01-02"

// DateRange is a span of calendar days, both ends inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both ends to midnight in their own location.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: midnight(start), End: midnight(end)}
}

// ParseDateRange parses two YYYY-MM-DD dates in loc and validates their order.
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(from), loc)
	if err != nil {
		return DateRange{}, perr.Wrapf(err, perr.CodeConfiguration, "invalid start date %q", from)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(to), loc)
	if err != nil {
		return DateRange{}, perr.Wrapf(err, perr.CodeConfiguration, "invalid end date %q", to)
	}
	r := DateRange{Start: start, End: end}
	return r, r.Validate()
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return perr.Configf("date range needs both a start and an end")
	}
	if r.Start.After(r.End) {
		return perr.InvalidRangef("start %s is after end %s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	return nil
}

// From is the first instant inside the range.
func (r DateRange) From() time.Time { return midnight(r.Start) }

// Until is the first instant after the range.
func (r DateRange) Until() time.Time { return midnight(r.End).AddDate(0, 0, 1) }

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From()) && t.Before(r.Until())
}

// Label renders the range the way artifact file names embed it, e.g. 07apr25_to_14apr25.
func (r DateRange) Label() string {
	return strings.ToLower(r.Start.Format("02Jan06")) + "_to_" + strings.ToLower(r.End.Format("02Jan06"))
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

func midnight(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FilterOptions are the source specific disqualifiers applied after product matching.
type FilterOptions struct {
	ExcludedTopics       []string
	ExcludedAffiliations []string
	MinWordCount         int
	MinCallDuration      time.Duration
}

// FilterConfig is the validated, read-only filter for one run.
type FilterConfig struct {
	rng                  DateRange
	products             map[string]struct{}
	excludedTopics       map[string]struct{}
	excludedAffiliations map[string]struct{}
	minWordCount         int
	minCallDuration      time.Duration
}

// NewFilterConfig validates the range and the product selection against catalog.
// An empty selection is a configuration error, never "match everything".
func NewFilterConfig(rng DateRange, products []string, catalog Catalog, opts FilterOptions) (FilterConfig, error) {
	if err := rng.Validate(); err != nil {
		return FilterConfig{}, err
	}
	if len(products) == 0 {
		return FilterConfig{}, perr.Configf("no products selected")
	}
	if err := catalog.Validate(); err != nil {
		return FilterConfig{}, err
	}
	selected := map[string]struct{}{}
	for _, p := range products {
		n, ok := catalog.Canonical(p)
		if !ok {
			return FilterConfig{}, perr.Configf("unrecognized product %q", p)
		}
		selected[n] = struct{}{}
	}
	if opts.MinWordCount < 0 {
		return FilterConfig{}, perr.Configf("min word count must be >= 0, got %d", opts.MinWordCount)
	}
	if opts.MinCallDuration < 0 {
		return FilterConfig{}, perr.Configf("min call duration must be >= 0, got %s", opts.MinCallDuration)
	}
	return FilterConfig{
		rng:                  rng,
		products:             selected,
		excludedTopics:       tagSet(opts.ExcludedTopics),
		excludedAffiliations: tagSet(opts.ExcludedAffiliations),
		minWordCount:         opts.MinWordCount,
		minCallDuration:      opts.MinCallDuration,
	}, nil
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func (f FilterConfig) Range() DateRange { return f.rng }

// Products returns the selected product tags, sorted.
func (f FilterConfig) Products() []string {
	out := make([]string, 0, len(f.products))
	for p := range f.products {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MatchProducts returns the subset of tags that are selected, normalized, sorted and deduplicated.
func (f FilterConfig) MatchProducts(tags []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tags {
		n := NormalizeTag(t)
		if _, ok := f.products[n]; !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (f FilterConfig) TopicExcluded(topic string) bool {
	_, ok := f.excludedTopics[NormalizeTag(topic)]
	return ok
}

func (f FilterConfig) AffiliationExcluded(affiliation string) bool {
	_, ok := f.excludedAffiliations[NormalizeTag(affiliation)]
	return ok
}

func (f FilterConfig) MinWordCount() int { return f.minWordCount }

func (f FilterConfig) MinCallDuration() time.Duration { return f.minCallDuration }
