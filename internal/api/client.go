package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/everstacklabs/orin/internal/catalog"
	"github.com/everstacklabs/orin/internal/httpclient"
)

// Client talks to the marketplace catalog API with bearer-token auth.
type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

// New creates a catalog client. baseURL must not end with a slash.
func New(apiKey, baseURL string, http *httpclient.Client) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
}

// GET /models response types.
type modelsResponse struct {
	Data []apiModel `json:"data"`
}

type apiModel struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	ContextLength int               `json:"context_length"`
	Pricing       map[string]string `json:"pricing"`
	Created       int64             `json:"created"`
}

// Models fetches the full model catalog.
func (c *Client) Models(ctx context.Context) ([]catalog.ModelSummary, error) {
	url := c.baseURL + "/models"

	resp, err := c.http.Get(ctx, url, c.headers())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, statusToError(resp.StatusCode, "model catalog", string(resp.Body))
	}

	var parsed modelsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling models response: %w", err)
	}

	models := make([]catalog.ModelSummary, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, catalog.ModelSummary{
			ID:            m.ID,
			Name:          m.Name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
			Pricing:       parsePricing(m.Pricing),
			Created:       time.Unix(m.Created, 0).UTC(),
		})
	}

	slog.Debug("fetched model catalog", "models", len(models), "from_cache", resp.FromCache)
	return models, nil
}

// GET /models/{author}/{slug}/endpoints response types.
type endpointsResponse struct {
	Data endpointsData `json:"data"`
}

type endpointsData struct {
	ID        string        `json:"id"`
	Endpoints []apiEndpoint `json:"endpoints"`
}

type apiEndpoint struct {
	Name                string                      `json:"name"`
	ProviderName        string                      `json:"provider_name"`
	Status              json.RawMessage             `json:"status"`
	ContextLength       int                         `json:"context_length"`
	Quantization        string                      `json:"quantization"`
	UptimeLast30m       float64                     `json:"uptime_last_30m"`
	MaxCompletionTokens int                         `json:"max_completion_tokens"`
	Pricing             map[string]string           `json:"pricing"`
	SupportedParameters catalog.SupportedParameters `json:"supported_parameters"`
}

// Endpoints fetches the provider offers for an exact model id. The variant
// suffix, when present, rides on the slug path segment.
func (c *Client) Endpoints(ctx context.Context, modelID string) ([]catalog.OfferDetails, error) {
	author, slug, ok := strings.Cut(modelID, "/")
	if !ok {
		return nil, &NotFoundError{Resource: modelID}
	}
	url := fmt.Sprintf("%s/models/%s/%s/endpoints", c.baseURL, author, slug)

	resp, err := c.http.Get(ctx, url, c.headers())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, statusToError(resp.StatusCode, modelID, string(resp.Body))
	}

	var parsed endpointsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling endpoints response: %w", err)
	}

	now := time.Now().UTC()
	offers := make([]catalog.OfferDetails, 0, len(parsed.Data.Endpoints))
	for _, ep := range parsed.Data.Endpoints {
		offer := toOffer(ep, modelID)
		offers = append(offers, catalog.OfferDetails{
			Offer:       offer,
			Available:   offer.Status != "offline" && offer.Status != "disabled",
			LastUpdated: now,
		})
	}

	return offers, nil
}

// toOffer converts a wire endpoint to the domain offer. Capability flags
// are derived once here via the supported-parameters inference so callers
// never pattern-match the polymorphic field themselves.
func toOffer(ep apiEndpoint, modelID string) catalog.ProviderOffer {
	provider := ep.ProviderName
	endpoint := ep.Name
	if provider == "" {
		provider, endpoint = splitEndpointName(ep.Name)
	}

	return catalog.ProviderOffer{
		ProviderName:        provider,
		ModelID:             modelID,
		EndpointName:        endpoint,
		Status:              statusText(ep.Status),
		ContextWindow:       ep.ContextLength,
		SupportsTools:       ep.SupportedParameters.HasCapability("tools"),
		IsReasoning:         ep.SupportedParameters.HasCapability("reasoning") || ep.SupportedParameters.HasCapability("include_reasoning"),
		Quantization:        ep.Quantization,
		Uptime30Min:         clampPercent(ep.UptimeLast30m),
		Pricing:             parsePricing(ep.Pricing),
		MaxCompletionTokens: ep.MaxCompletionTokens,
		SupportedParameters: ep.SupportedParameters,
	}
}

// splitEndpointName pulls a provider name out of display names shaped like
// "DeepInfra | quantized" or "qwen-2.5 via Chutes".
func splitEndpointName(name string) (provider, endpoint string) {
	s := strings.TrimSpace(name)
	if before, after, ok := strings.Cut(s, "|"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if before, after, ok := strings.Cut(s, " via "); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	return s, s
}

// statusText renders the polymorphic wire status (string or number) as the
// small free-text value the rest of the system works with.
func statusText(raw json.RawMessage) string {
	t := strings.TrimSpace(string(raw))
	if t == "" || t == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return "degraded"
		}
		return "online"
	}
	return ""
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// parsePricing converts string-encoded per-token prices to floats,
// dropping entries that do not parse or are negative.
func parsePricing(raw map[string]string) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < 0 {
			continue
		}
		out[k] = f
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
