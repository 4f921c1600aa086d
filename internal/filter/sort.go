package filter

import (
	"math"
	"sort"
	"strings"

	"github.com/everstacklabs/orin/internal/catalog"
)

// SortKeyAPI keeps the upstream-provided order, which the marketplace
// ranks by significance. It is the default for offers output.
const SortKeyAPI = "api"

// SortKeys lists the accepted --sort-by values for offers output.
var SortKeys = []string{SortKeyAPI, "provider", "model", "quant", "context", "maxout", "price_in", "price_out"}

// Sort orders offers in place by the given key. String comparisons are
// case-insensitive; missing numeric values sort as +Inf, pushing them last
// in ascending order. The sort is stable, and desc reverses the final
// order wholesale so equal-key elements end up in exactly the opposite
// relative order.
func Sort(offers []catalog.OfferDetails, key string, desc bool) {
	// The api key skips sorting entirely; desc has no meaning for an
	// order we did not impose.
	k := strings.ToLower(key)
	if k == SortKeyAPI || k == "" {
		return
	}

	switch k {
	case "provider", "model", "quant":
		sort.SliceStable(offers, func(i, j int) bool {
			return stringKey(&offers[i].Offer, k) < stringKey(&offers[j].Offer, k)
		})
	default:
		sort.SliceStable(offers, func(i, j int) bool {
			return numericKey(&offers[i].Offer, k) < numericKey(&offers[j].Offer, k)
		})
	}

	if desc {
		reverse(offers)
	}
}

func stringKey(o *catalog.ProviderOffer, key string) string {
	switch key {
	case "provider":
		return strings.ToLower(o.ProviderName)
	case "model":
		return strings.ToLower(o.EndpointName)
	case "quant":
		return strings.ToLower(o.Quantization)
	}
	return strings.ToLower(o.ProviderName)
}

func numericKey(o *catalog.ProviderOffer, key string) float64 {
	switch key {
	case "context":
		if o.ContextWindow > 0 {
			return float64(o.ContextWindow)
		}
	case "maxout":
		if o.MaxCompletionTokens > 0 {
			return float64(o.MaxCompletionTokens)
		}
	case "price_in":
		if p, ok := o.Pricing["prompt"]; ok {
			return p
		}
	case "price_out":
		if p, ok := o.Pricing["completion"]; ok {
			return p
		}
	}
	return math.Inf(1)
}

func reverse(offers []catalog.OfferDetails) {
	for i, j := 0, len(offers)-1; i < j; i, j = i+1, j-1 {
		offers[i], offers[j] = offers[j], offers[i]
	}
}
