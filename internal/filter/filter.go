// Package filter applies the optional offer predicates and sorting used by
// the offers command. Every predicate defaults to "pass everything" when
// its controlling option is unset, and a value an offer simply does not
// have never excludes it.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/everstacklabs/orin/internal/catalog"
)

// Options holds the independent, AND-combined offer filters.
// Price ceilings are per million tokens.
type Options struct {
	MinQuant           string
	MinContext         string
	Reasoning          *bool
	Tools              *bool
	Image              *bool
	MaxPromptPrice     *float64
	MaxCompletionPrice *float64
}

// UsageError reports mutually exclusive flags set together. It is raised
// while building Options, before any filtering or network work.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// TriState folds a require-true/require-false flag pair into an optional
// bool. Setting both is a usage error.
func TriState(name string, yes, no bool) (*bool, error) {
	if yes && no {
		return nil, &UsageError{Message: fmt.Sprintf("--%s and --no-%s cannot be used together", name, name)}
	}
	if yes {
		v := true
		return &v, nil
	}
	if no {
		v := false
		return &v, nil
	}
	return nil, nil
}

// Apply returns the offers passing every configured predicate, preserving
// input order. Evaluation short-circuits per offer; predicate order does
// not change the result set.
func Apply(offers []catalog.OfferDetails, opts Options) []catalog.OfferDetails {
	minBits := math.Inf(-1)
	if opts.MinQuant != "" {
		minBits = QuantBits(opts.MinQuant)
	}
	minCtx := 0
	if opts.MinContext != "" {
		minCtx = ParseContextFloor(opts.MinContext)
	}

	out := make([]catalog.OfferDetails, 0, len(offers))
	for _, d := range offers {
		if passes(&d.Offer, opts, minBits, minCtx) {
			out = append(out, d)
		}
	}
	return out
}

func passes(o *catalog.ProviderOffer, opts Options, minBits float64, minCtx int) bool {
	if opts.MinQuant != "" && quantScore(o.Quantization) < minBits {
		return false
	}
	if minCtx > 0 && o.ContextWindow < minCtx {
		return false
	}
	if opts.Reasoning != nil && o.IsReasoning != *opts.Reasoning {
		return false
	}
	if opts.Tools != nil && o.SupportsTools != *opts.Tools {
		return false
	}
	if opts.Image != nil && o.SupportedParameters.HasCapability("image") != *opts.Image {
		return false
	}
	if opts.MaxPromptPrice != nil && !priceWithin(o.Pricing, "prompt", *opts.MaxPromptPrice) {
		return false
	}
	if opts.MaxCompletionPrice != nil && !priceWithin(o.Pricing, "completion", *opts.MaxCompletionPrice) {
		return false
	}
	return true
}

// priceWithin compares a stored per-token price against a per-1M-token
// ceiling. An offer with no price for that side always passes.
func priceWithin(pricing map[string]float64, kind string, ceiling float64) bool {
	p, ok := pricing[kind]
	if !ok {
		return true
	}
	return p*1_000_000 <= ceiling
}

// quantScore is QuantBits with the absence rule applied: an offer that
// does not state its quantization is treated as best and never floored out.
func quantScore(label string) float64 {
	if label == "" {
		return math.Inf(1)
	}
	return QuantBits(label)
}

// QuantBits maps a quantization label to a numeric bit-width score:
// any label containing "bf16" scores 16; otherwise the first run of
// digits in the lowered label; no digits scores 0.
func QuantBits(label string) float64 {
	s := strings.ToLower(label)
	if strings.Contains(s, "bf16") {
		return 16
	}
	start, end := -1, -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			end = i + 1
			continue
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseContextFloor parses a human context size: a case-insensitive "k"
// suffix scales by 1000, otherwise the bare number is used. Unparseable
// input yields 0, which never filters anything.
func ParseContextFloor(s string) int {
	t := strings.TrimSpace(strings.ToLower(s))
	if t == "" {
		return 0
	}
	mult := 1.0
	if strings.HasSuffix(t, "k") {
		mult = 1000
		t = strings.TrimSpace(strings.TrimSuffix(t, "k"))
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0
	}
	return int(v * mult)
}
