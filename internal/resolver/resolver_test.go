package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/everstacklabs/orin/internal/catalog"
)

type fakeCatalog struct {
	models    []catalog.ModelSummary
	offers    map[string][]catalog.OfferDetails
	errors    map[string]error
	modelsErr error

	endpointCalls []string
	modelsCalls   int
}

func (f *fakeCatalog) Models(ctx context.Context) ([]catalog.ModelSummary, error) {
	f.modelsCalls++
	return f.models, f.modelsErr
}

func (f *fakeCatalog) Endpoints(ctx context.Context, modelID string) ([]catalog.OfferDetails, error) {
	f.endpointCalls = append(f.endpointCalls, modelID)
	if err, ok := f.errors[modelID]; ok {
		return nil, err
	}
	return f.offers[modelID], nil
}

func offer(provider string) catalog.OfferDetails {
	return catalog.OfferDetails{
		Offer:     catalog.ProviderOffer{ProviderName: provider},
		Available: true,
	}
}

func TestResolveExactIDShortCircuits(t *testing.T) {
	fc := &fakeCatalog{
		offers: map[string][]catalog.OfferDetails{
			"deepseek/deepseek-r1": {offer("DeepInfra")},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "deepseek/deepseek-r1")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "deepseek/deepseek-r1" || len(res.Offers) != 1 {
		t.Errorf("res = %+v", res)
	}
	if fc.modelsCalls != 0 {
		t.Errorf("catalog fetched %d times on the exact path, want 0", fc.modelsCalls)
	}
}

func TestResolveSingleSubstringCandidate(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "deepseek/deepseek-r1", Name: "DeepSeek R1"},
			{ID: "openai/gpt-4o", Name: "GPT-4o"},
		},
		offers: map[string][]catalog.OfferDetails{
			"deepseek/deepseek-r1": {offer("Fireworks")},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "deepseek/deepseek-r1" {
		t.Errorf("ResolvedID = %q, want deepseek/deepseek-r1", res.ResolvedID)
	}
	if len(res.Offers) != 1 || res.Offers[0].Offer.ProviderName != "Fireworks" {
		t.Errorf("Offers = %+v", res.Offers)
	}
}

func TestResolveMatchesDisplayName(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "qwen/qwen-2.5-72b", Name: "Qwen 2.5 72B Instruct"},
		},
		offers: map[string][]catalog.OfferDetails{
			"qwen/qwen-2.5-72b": {offer("Together")},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "instruct")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "qwen/qwen-2.5-72b" {
		t.Errorf("ResolvedID = %q", res.ResolvedID)
	}
}

func TestResolveExactCaseInsensitivePreferred(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "openai/GPT-4o", Name: "GPT-4o"},
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini"},
		},
		offers: map[string][]catalog.OfferDetails{
			"openai/GPT-4o":      {offer("OpenAI")},
			"openai/gpt-4o-mini": {offer("OpenAI")},
		},
		errors: map[string]error{},
	}
	// The verbatim id misses; both catalog entries match the substring.
	res, err := New(fc).Resolve(context.Background(), "openai/gpt-4o")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "openai/GPT-4o" {
		t.Errorf("ResolvedID = %q, want the case-insensitive exact match", res.ResolvedID)
	}
}

func TestResolvePrefersNonFreeThenShortest(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "meta-llama/llama-3.1-8b:free", Name: "Llama 3.1 8B (free)"},
			{ID: "meta-llama/llama-3.1-8b-instruct", Name: "Llama 3.1 8B Instruct"},
			{ID: "meta-llama/llama-3.1-8b", Name: "Llama 3.1 8B"},
		},
		offers: map[string][]catalog.OfferDetails{
			"meta-llama/llama-3.1-8b:free":     {offer("Free Host")},
			"meta-llama/llama-3.1-8b-instruct": {offer("DeepInfra")},
			"meta-llama/llama-3.1-8b":          {offer("Lepton")},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "llama-3.1-8b")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "meta-llama/llama-3.1-8b" {
		t.Errorf("ResolvedID = %q, want shortest non-free id", res.ResolvedID)
	}
}

func TestResolveFreeVariantIsLastResort(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "meta-llama/llama-3.1-8b:free", Name: "Llama 3.1 8B (free)"},
			{ID: "meta-llama/llama-3.1-8b", Name: "Llama 3.1 8B"},
		},
		offers: map[string][]catalog.OfferDetails{
			"meta-llama/llama-3.1-8b:free": {offer("Free Host")},
		},
	}

	// Every non-free candidate comes up empty, so the free variant
	// still resolves rather than the whole lookup failing.
	res, err := New(fc).Resolve(context.Background(), "llama-3.1-8b")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "meta-llama/llama-3.1-8b:free" {
		t.Errorf("ResolvedID = %q, want the free variant as last resort", res.ResolvedID)
	}
	if fc.endpointCalls[len(fc.endpointCalls)-1] != "meta-llama/llama-3.1-8b:free" {
		t.Errorf("endpoint calls = %v, free variant must be tried last", fc.endpointCalls)
	}
}

func TestResolveFallsPastCandidatesWithoutOffers(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "mistralai/mixtral-8x7b", Name: "Mixtral 8x7B"},
			{ID: "mistralai/mixtral-8x22b-instruct", Name: "Mixtral 8x22B Instruct"},
		},
		offers: map[string][]catalog.OfferDetails{
			"mistralai/mixtral-8x22b-instruct": {offer("Fireworks")},
		},
		errors: map[string]error{
			"mistralai/mixtral-8x7b": errors.New("upstream hiccup"),
		},
	}

	res, err := New(fc).Resolve(context.Background(), "mixtral")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "mistralai/mixtral-8x22b-instruct" {
		t.Errorf("ResolvedID = %q", res.ResolvedID)
	}
}

func TestResolveExhaustionListsCandidates(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "a/model-one", Name: "Model One"},
			{ID: "a/model-two", Name: "Model Two"},
		},
	}

	_, err := New(fc).Resolve(context.Background(), "model")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if len(nf.Candidates) != 2 {
		t.Errorf("Candidates = %+v, want both", nf.Candidates)
	}
	if !strings.Contains(nf.Error(), "a/model-one") || !strings.Contains(nf.Error(), "Model Two") {
		t.Errorf("Error() = %q, want candidate ids and names", nf.Error())
	}
}

func TestResolveSuggestionsCapped(t *testing.T) {
	fc := &fakeCatalog{}
	for i := 0; i < 30; i++ {
		id := "vendor/model-" + strings.Repeat("x", i+1)
		fc.models = append(fc.models, catalog.ModelSummary{ID: id, Name: "Model"})
	}

	_, err := New(fc).Resolve(context.Background(), "vendor")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if len(nf.Candidates) != maxSuggestions {
		t.Errorf("len(Candidates) = %d, want %d", len(nf.Candidates), maxSuggestions)
	}
}

func TestResolveSingleCandidateToleratesEmptyOffers(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "deepseek/deepseek-r1", Name: "DeepSeek R1"},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "deepseek/deepseek-r1" || len(res.Offers) != 0 {
		t.Errorf("res = %+v, want resolved id with no offers", res)
	}
}

func TestResolveNoCandidatesSoftFails(t *testing.T) {
	fc := &fakeCatalog{
		models: []catalog.ModelSummary{
			{ID: "openai/gpt-4o", Name: "GPT-4o"},
		},
	}

	res, err := New(fc).Resolve(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.ResolvedID != "does-not-exist" || len(res.Offers) != 0 {
		t.Errorf("res = %+v, want original id with empty offers", res)
	}
}

func TestResolveCatalogFailureIsFatal(t *testing.T) {
	fc := &fakeCatalog{modelsErr: errors.New("upstream down")}

	_, err := New(fc).Resolve(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("err = %v, want wrapped catalog error", err)
	}
}

func TestResolveDeterministicAcrossRuns(t *testing.T) {
	build := func() *fakeCatalog {
		return &fakeCatalog{
			models: []catalog.ModelSummary{
				{ID: "x/alpha-long-name", Name: "Alpha"},
				{ID: "x/alpha", Name: "Alpha Short"},
			},
			offers: map[string][]catalog.OfferDetails{
				"x/alpha-long-name": {offer("P1")},
				"x/alpha":           {offer("P2")},
			},
		}
	}

	first, err := New(build()).Resolve(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		res, err := New(build()).Resolve(context.Background(), "alpha")
		if err != nil {
			t.Fatalf("Resolve() run %d: %v", i, err)
		}
		if res.ResolvedID != first.ResolvedID {
			t.Fatalf("run %d resolved %q, first run %q", i, res.ResolvedID, first.ResolvedID)
		}
	}
}
