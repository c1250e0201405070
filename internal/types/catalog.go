package types

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	perr "gong-wizard-go/internal/errors"
)

// SummaryGroup names the report bucket for run-level artifacts. No product may
// slug to it.
const SummaryGroup = "summary"

// DefaultProducts is the product catalog recognized by every deployment.
var DefaultProducts = []string{
	"secure air",
	"eaas and savings measurement",
	"odcv",
	"occupancy analytics",
	"iaq monitoring",
}

// NormalizeTag folds case and collapses whitespace so that "  IAQ   Monitoring"
// and "iaq monitoring" compare equal.
func NormalizeTag(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Catalog is the set of product tags a deployment recognizes.
type Catalog struct {
	tags map[string]struct{}
}

// NewCatalog returns DefaultProducts plus any deployment specific extras.
func NewCatalog(extra ...string) Catalog {
	c := Catalog{tags: map[string]struct{}{}}
	for _, p := range DefaultProducts {
		c.tags[NormalizeTag(p)] = struct{}{}
	}
	for _, p := range extra {
		if n := NormalizeTag(p); n != "" {
			c.tags[n] = struct{}{}
		}
	}
	return c
}

// Canonical returns the normalized form of tag if the catalog knows it.
func (c Catalog) Canonical(tag string) (string, bool) {
	n := NormalizeTag(tag)
	if n == "" {
		return "", false
	}
	_, ok := c.tags[n]
	return n, ok
}

// Validate fails when two products would share an output directory or a
// product would land in the summary bucket.
func (c Catalog) Validate() error {
	owners := map[string]string{}
	for _, tag := range c.Names() {
		slug := Slug(tag)
		switch {
		case slug == "":
			return perr.Configf("product %q has no usable characters for a file name", tag)
		case slug == SummaryGroup:
			return perr.Configf("product %q is reserved for the summary bucket", tag)
		}
		if other, ok := owners[slug]; ok {
			return perr.Configf("products %q and %q both map to %q", other, tag, slug)
		}
		owners[slug] = tag
	}
	return nil
}

// Slug turns a product tag into a file-name-safe token.
func Slug(tag string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func (c Catalog) Names() []string {
	out := make([]string, 0, len(c.tags))
	for t := range c.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Recognize keeps the tags that name a catalog product, normalized, sorted and deduplicated.
func (c Catalog) Recognize(tags []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tags {
		n, ok := c.Canonical(t)
		if !ok {
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
