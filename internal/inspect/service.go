// Package inspect is the orchestration layer behind the CLI commands.
// It composes the API client, resolver, filter engine, and scraper into
// the operations a command invokes, keeping the commands themselves thin.
package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/orin/internal/api"
	"github.com/everstacklabs/orin/internal/catalog"
	"github.com/everstacklabs/orin/internal/filter"
	"github.com/everstacklabs/orin/internal/resolver"
)

// providerCountConcurrency bounds the fan-out when counting active
// providers across many models.
const providerCountConcurrency = 8

// API is the marketplace surface the service consumes.
type API interface {
	Models(ctx context.Context) ([]catalog.ModelSummary, error)
	Endpoints(ctx context.Context, modelID string) ([]catalog.OfferDetails, error)
	ChatCompletion(ctx context.Context, req api.ChatRequest) (*api.ChatResult, error)
}

// Scraper provides best-effort web metrics for a model page.
type Scraper interface {
	FetchMetrics(ctx context.Context, modelID string) ([]catalog.WebProviderMetric, error)
}

// Service wires the pieces together. The scraper is optional; without
// one, offer enrichment is silently unavailable.
type Service struct {
	api      API
	resolver *resolver.Resolver
	scraper  Scraper
}

// Option configures a Service.
type Option func(*Service)

// WithScraper enables web enrichment for Offers.
func WithScraper(s Scraper) Option {
	return func(svc *Service) { svc.scraper = s }
}

func New(client API, opts ...Option) *Service {
	svc := &Service{
		api:      client,
		resolver: resolver.New(client),
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// ListModels returns catalog entries matching every text filter
// (case-insensitive substring over id and name, AND semantics) and the
// structured filters, sorted by the requested key.
func (s *Service) ListModels(ctx context.Context, textFilters []string, f catalog.SearchFilters, sortBy string, desc bool) ([]catalog.ModelSummary, error) {
	models, err := s.searchCatalog(ctx, "", f)
	if err != nil {
		return nil, err
	}

	var out []catalog.ModelSummary
	for _, m := range models {
		if matchesAll(m, textFilters) {
			out = append(out, m)
		}
	}

	sortModels(out, sortBy, desc)
	return out, nil
}

// Search returns catalog entries matching a single query substring plus
// the structured filters.
func (s *Service) Search(ctx context.Context, query string, f catalog.SearchFilters) ([]catalog.ModelSummary, error) {
	return s.searchCatalog(ctx, query, f)
}

func (s *Service) searchCatalog(ctx context.Context, query string, f catalog.SearchFilters) ([]catalog.ModelSummary, error) {
	models, err := s.api.Models(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var candidates []catalog.ModelSummary
	for _, m := range models {
		if q != "" && !strings.Contains(strings.ToLower(m.ID), q) && !strings.Contains(strings.ToLower(m.Name), q) {
			continue
		}
		if f.MinContext > 0 && m.ContextLength < f.MinContext {
			continue
		}
		if f.MaxPricePerToken != nil && !cheapestWithin(m.Pricing, *f.MaxPricePerToken) {
			continue
		}
		candidates = append(candidates, m)
	}

	// Tool and reasoning support vary per provider, so those filters
	// need an offer lookup for each remaining candidate.
	if f.SupportsTools == nil && !f.ReasoningOnly {
		return candidates, nil
	}

	var out []catalog.ModelSummary
	for _, m := range candidates {
		offers, err := s.api.Endpoints(ctx, m.ID)
		if err != nil {
			slog.Debug("skipping candidate, offer lookup failed", "model", m.ID, "error", err)
			continue
		}
		if anyOfferSatisfies(offers, f) {
			out = append(out, m)
		}
	}
	return out, nil
}

func anyOfferSatisfies(offers []catalog.OfferDetails, f catalog.SearchFilters) bool {
	for _, o := range offers {
		if f.SupportsTools != nil && o.Offer.SupportsTools != *f.SupportsTools {
			continue
		}
		if f.ReasoningOnly && !o.Offer.IsReasoning {
			continue
		}
		return true
	}
	return false
}

func cheapestWithin(pricing map[string]float64, ceiling float64) bool {
	if len(pricing) == 0 {
		return true
	}
	cheapest := false
	for _, p := range pricing {
		if p <= ceiling {
			cheapest = true
			break
		}
	}
	return cheapest
}

func matchesAll(m catalog.ModelSummary, textFilters []string) bool {
	hay := strings.ToLower(m.ID + " " + m.Name)
	for _, t := range textFilters {
		if !strings.Contains(hay, strings.ToLower(strings.TrimSpace(t))) {
			return false
		}
	}
	return true
}

func sortModels(models []catalog.ModelSummary, sortBy string, desc bool) {
	switch strings.ToLower(sortBy) {
	case "name":
		sort.SliceStable(models, func(i, j int) bool {
			return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
		})
	case "context":
		sort.SliceStable(models, func(i, j int) bool {
			return models[i].ContextLength < models[j].ContextLength
		})
	default:
		sort.SliceStable(models, func(i, j int) bool {
			return strings.ToLower(models[i].ID) < strings.ToLower(models[j].ID)
		})
	}
	if desc {
		for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
			models[i], models[j] = models[j], models[i]
		}
	}
}

// Offers resolves rawID, applies the offer filters, sorts, and, when
// withWeb is set and a scraper is configured, merges scraped metrics
// onto matching offers. Enrichment failures degrade the output instead
// of failing the command.
func (s *Service) Offers(ctx context.Context, rawID string, opts filter.Options, sortKey string, desc bool, withWeb bool) (string, []catalog.OfferDetails, error) {
	res, err := s.resolver.Resolve(ctx, rawID)
	if err != nil {
		return "", nil, err
	}

	offers := filter.Apply(res.Offers, opts)
	filter.Sort(offers, sortKey, desc)

	if withWeb && s.scraper != nil {
		s.enrich(ctx, res.ResolvedID, offers)
	}
	return res.ResolvedID, offers, nil
}

// enrich attaches scraped metrics to offers. A metric binds to an offer
// by exact identity key first; metrics left over bind by provider name
// alone when that name maps to exactly one unenriched offer.
func (s *Service) enrich(ctx context.Context, modelID string, offers []catalog.OfferDetails) {
	metrics, err := s.scraper.FetchMetrics(ctx, modelID)
	if err != nil {
		slog.Warn("web enrichment unavailable", "model", modelID, "error", err)
		return
	}
	if len(metrics) == 0 {
		return
	}

	byKey := make(map[string]*catalog.WebProviderMetric, len(metrics))
	byProvider := make(map[string][]*catalog.WebProviderMetric)
	for i := range metrics {
		m := &metrics[i]
		byKey[m.Key()] = m
		name := catalog.NormalizeProviderName(m.ProviderName)
		byProvider[name] = append(byProvider[name], m)
	}

	for i := range offers {
		if m, ok := byKey[offers[i].Offer.Key()]; ok {
			offers[i].Web = m
		}
	}
	for i := range offers {
		if offers[i].Web != nil {
			continue
		}
		name := catalog.NormalizeProviderName(offers[i].Offer.ProviderName)
		if ms := byProvider[name]; len(ms) == 1 {
			offers[i].Web = ms[0]
		}
	}
}

// ProviderCounts fetches the number of active providers for each model
// concurrently. Active means available and not reporting offline. A
// lookup failure counts as zero rather than failing the listing.
func (s *Service) ProviderCounts(ctx context.Context, models []catalog.ModelSummary) (map[string]int, error) {
	counts := make(map[string]int, len(models))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(providerCountConcurrency)
	for _, m := range models {
		m := m // per-iteration copy; required while go.mod targets go < 1.22
		g.Go(func() error {
			offers, err := s.api.Endpoints(ctx, m.ID)
			if err != nil {
				slog.Debug("provider count unavailable", "model", m.ID, "error", err)
				offers = nil
			}
			n := 0
			for _, o := range offers {
				if o.Available && o.Offer.Status != "offline" {
					n++
				}
			}
			mu.Lock()
			counts[m.ID] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// EndpointState is the health verdict for a provider's endpoint.
type EndpointState string

const (
	StateFunctional EndpointState = "Functional"
	StateDisabled   EndpointState = "Disabled"
)

// Check resolves a model, locates the offer served by the given
// provider (optionally narrowed by endpoint name), and reports whether
// that endpoint is currently usable.
func (s *Service) Check(ctx context.Context, rawID, provider, endpoint string) (EndpointState, error) {
	res, err := s.resolver.Resolve(ctx, rawID)
	if err != nil {
		return "", err
	}

	want := catalog.NormalizeProviderName(provider)
	for _, o := range res.Offers {
		if catalog.NormalizeProviderName(o.Offer.ProviderName) != want {
			continue
		}
		if endpoint != "" && !strings.Contains(strings.ToLower(o.Offer.EndpointName), strings.ToLower(endpoint)) {
			continue
		}
		if o.Available && o.Offer.Status != "offline" && o.Offer.Status != "disabled" {
			return StateFunctional, nil
		}
		return StateDisabled, nil
	}
	return "", fmt.Errorf("no endpoint for provider %q on model %s", provider, res.ResolvedID)
}

// SplitTarget separates an optional "@provider" suffix from a probe
// target, so "deepseek/deepseek-r1@DeepInfra" pins the probe the same
// way a separate provider argument would. Model ids never contain "@".
func SplitTarget(target string) (modelID, provider string) {
	modelID, provider, _ = strings.Cut(target, "@")
	return modelID, provider
}

// pingPrompt invites the shortest possible reply so measured latency is
// dominated by routing, not generation.
const pingPrompt = "Hi! Let's play a game: when I say Ping, you reply with Pong. I say: Ping"

// PingResult is one round-trip probe against a live endpoint.
type PingResult struct {
	Target           string
	Provider         string
	PromptTokens     int
	CompletionTokens int
	Cost             string
	Elapsed          time.Duration
	TTL              time.Duration
	Err              error
}

// Line renders the probe in the style of ping(8): a header naming the
// target, then a reply line with tokens, cost, and wall time.
func (r *PingResult) Line() string {
	target := r.Target
	if r.Provider != "" {
		target += "@" + r.Provider
	}

	if r.Err != nil {
		return fmt.Sprintf("Pinging %s with 0 input tokens:\nReply from: %s tokens: 0 time=%s TTL=%ds (error: %v)",
			target, target, formatElapsed(r.Elapsed), int(r.TTL.Seconds()), r.Err)
	}

	cost := r.Cost
	if cost == "" {
		cost = "0.00"
	}
	return fmt.Sprintf("Pinging %s with %d input tokens:\nReply from: %s tokens: %d cost: $%s time=%s TTL=%ds",
		target, r.PromptTokens, target, r.CompletionTokens, cost, formatElapsed(r.Elapsed), int(r.TTL.Seconds()))
}

func formatElapsed(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// Ping probes a model (optionally pinned to one provider) with a
// minimal chat completion and measures the wall time. Probe failures
// are reported inside the result so callers can render them in the
// same shape as successes.
func (s *Service) Ping(ctx context.Context, modelID, provider string, timeout time.Duration) *PingResult {
	res := &PingResult{
		Target:   modelID,
		Provider: provider,
		TTL:      timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.api.ChatCompletion(ctx, api.ChatRequest{
		Model:     modelID,
		Prompt:    pingPrompt,
		Provider:  provider,
		MaxTokens: 4,
	})
	res.Elapsed = time.Since(start)

	if err != nil {
		res.Err = err
		return res
	}

	res.PromptTokens = reply.PromptTokens
	res.CompletionTokens = reply.CompletionTokens
	res.Cost = reply.Cost
	if provider == "" && reply.Provider != "" {
		res.Provider = reply.Provider
	}
	if !strings.Contains(strings.ToLower(reply.Content), "pong") {
		slog.Debug("probe reply did not echo pong", "model", modelID, "content", reply.Content)
	}
	return res
}
