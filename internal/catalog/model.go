package catalog

import (
	"fmt"
	"strings"
	"time"
)

// ModelSummary is one entry of the marketplace model catalog.
// Identifiers follow the "author/slug[:variant]" format.
type ModelSummary struct {
	ID            string             `json:"id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	Description   string             `json:"description,omitempty" yaml:"description,omitempty"`
	ContextLength int                `json:"context_length" yaml:"context_length"`
	Pricing       map[string]float64 `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Created       time.Time          `json:"created" yaml:"created"`
}

// ProviderOffer is one provider's hosting of a model: its own pricing,
// capabilities, quantization, and uptime. A model typically has several.
type ProviderOffer struct {
	ProviderName        string              `json:"provider_name" yaml:"provider_name"`
	ModelID             string              `json:"model_id" yaml:"model_id"`
	EndpointName        string              `json:"endpoint_name,omitempty" yaml:"endpoint_name,omitempty"`
	Status              string              `json:"status,omitempty" yaml:"status,omitempty"`
	ContextWindow       int                 `json:"context_window" yaml:"context_window"`
	SupportsTools       bool                `json:"supports_tools" yaml:"supports_tools"`
	IsReasoning         bool                `json:"is_reasoning" yaml:"is_reasoning"`
	Quantization        string              `json:"quantization,omitempty" yaml:"quantization,omitempty"`
	Uptime30Min         float64             `json:"uptime_30min" yaml:"uptime_30min"`
	PerformanceTPS      *float64            `json:"performance_tps,omitempty" yaml:"performance_tps,omitempty"`
	Pricing             map[string]float64  `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty" yaml:"max_completion_tokens,omitempty"`
	SupportedParameters SupportedParameters `json:"supported_parameters,omitempty" yaml:"supported_parameters,omitempty"`
}

// OfferDetails wraps a ProviderOffer with its availability snapshot.
// This is the unit the filter engine and presenters operate on.
type OfferDetails struct {
	Offer       ProviderOffer      `json:"provider" yaml:"provider"`
	Available   bool               `json:"availability" yaml:"availability"`
	LastUpdated time.Time          `json:"last_updated" yaml:"last_updated"`
	Web         *WebProviderMetric `json:"web_data,omitempty" yaml:"web_data,omitempty"`
}

// WebProviderMetric is best-effort enrichment scraped from a model's web
// page. Never authoritative: API data wins when the two disagree.
type WebProviderMetric struct {
	ProviderName        string    `json:"provider_name" yaml:"provider_name"`
	Quantization        string    `json:"quantization,omitempty" yaml:"quantization,omitempty"`
	ContextWindow       int       `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty" yaml:"max_completion_tokens,omitempty"`
	ThroughputTPS       *float64  `json:"throughput_tps,omitempty" yaml:"throughput_tps,omitempty"`
	LatencySeconds      *float64  `json:"latency_seconds,omitempty" yaml:"latency_seconds,omitempty"`
	UptimePercentage    *float64  `json:"uptime_percentage,omitempty" yaml:"uptime_percentage,omitempty"`
	ScrapedAt           time.Time `json:"last_scraped" yaml:"last_scraped"`
}

// Key returns the identity key for this scraped offer. One provider can
// publish multiple simultaneous offers for the same model (different
// quantizations, context windows), so the name alone is not unique.
func (w *WebProviderMetric) Key() string {
	return OfferKey(w.ProviderName, w.Quantization, w.ContextWindow, w.MaxCompletionTokens)
}

// Key returns the identity key for this offer, comparable with
// WebProviderMetric keys when merging scraped data onto API offers.
func (o *ProviderOffer) Key() string {
	return OfferKey(o.ProviderName, o.Quantization, o.ContextWindow, o.MaxCompletionTokens)
}

// OfferKey builds a composite identity key from a provider name and the
// attributes that distinguish simultaneous offers. Zero-valued attributes
// are left out so partially-populated records still collapse correctly.
func OfferKey(provider, quantization string, contextWindow, maxTokens int) string {
	parts := []string{NormalizeProviderName(provider)}
	if quantization != "" {
		parts = append(parts, "quant:"+strings.ToLower(quantization))
	}
	if contextWindow > 0 {
		parts = append(parts, fmt.Sprintf("ctx:%d", contextWindow))
	}
	if maxTokens > 0 {
		parts = append(parts, fmt.Sprintf("max:%d", maxTokens))
	}
	return strings.Join(parts, "|")
}

// NormalizeProviderName lowers and strips a provider name down to its
// alphanumeric characters so "DeepInfra" and "deep-infra" compare equal.
func NormalizeProviderName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SearchFilters narrows a model search. Nil pointer fields and zero
// MinContext mean no constraint. Constructed fresh per query.
type SearchFilters struct {
	MinContext       int
	SupportsTools    *bool
	ReasoningOnly    bool
	MaxPricePerToken *float64
}
