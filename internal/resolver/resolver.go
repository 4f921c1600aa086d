// Package resolver maps user-typed model identifiers to exact catalog
// entries and their provider offers. Marketplace ids are inconsistently
// cased and punctuated and users frequently type partial slugs, so
// resolution is a forgiving, ordered sequence of strategies rather than
// a single lookup.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/everstacklabs/orin/internal/catalog"
)

// maxSuggestions caps the candidate list attached to a NotFoundError.
const maxSuggestions = 20

// Catalog is the upstream surface resolution runs against.
type Catalog interface {
	Models(ctx context.Context) ([]catalog.ModelSummary, error)
	Endpoints(ctx context.Context, modelID string) ([]catalog.OfferDetails, error)
}

// Candidate is an (id, name) pair surfaced in diagnostics when
// disambiguation exhausts every option.
type Candidate struct {
	ID   string
	Name string
}

// NotFoundError reports that every resolution strategy was exhausted.
// Candidates, when non-empty, lists the substring matches the user may
// have meant.
type NotFoundError struct {
	RawID      string
	Candidates []Candidate
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("model %q not found", e.RawID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "model %q not found, did you mean one of these?", e.RawID)
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n- %s  (%s)", c.ID, c.Name)
	}
	return b.String()
}

// Result is a successful resolution. Offers may be empty: the caller
// distinguishes "no such model" from "exists but currently has no
// offers" by comparing ResolvedID against its input.
type Result struct {
	ResolvedID string
	Offers     []catalog.OfferDetails
}

// Resolver runs the resolution policy against a catalog.
type Resolver struct {
	catalog Catalog
}

func New(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve maps rawID to exactly one catalog entry plus its offers.
//
// The strategies run in order, short-circuiting on the first that
// yields a non-empty offer list:
//
//  1. fetch offers for rawID verbatim (the common, cheap path);
//  2. scan the catalog for case-insensitive substring matches on id or
//     display name;
//  3. prefer a candidate whose id equals rawID case-insensitively;
//  4. with multiple candidates, prefer non-":free" variants, then
//     shorter ids, trying each until one returns offers;
//  5. a single candidate is fetched directly, empty offers tolerated;
//  6. no candidates at all soft-fails: rawID comes back with an empty
//     list so callers can render "no offers" instead of a hard error.
//
// Errors from intermediate candidate attempts mean "try the next one";
// only exhaustion of step 4 produces a NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, rawID string) (*Result, error) {
	if offers, err := r.catalog.Endpoints(ctx, rawID); err == nil && len(offers) > 0 {
		return &Result{ResolvedID: rawID, Offers: offers}, nil
	} else if err != nil {
		slog.Debug("exact offer lookup failed, scanning catalog", "model", rawID, "error", err)
	}

	models, err := r.catalog.Models(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	candidates := substringMatches(models, rawID)

	if exact := exactInsensitive(candidates, rawID); exact != nil {
		offers, err := r.tryCandidate(ctx, exact.ID)
		if err == nil && len(offers) > 0 {
			return &Result{ResolvedID: exact.ID, Offers: offers}, nil
		}
		// The exact match has no offers. With other candidates in
		// play disambiguation may still succeed; alone, it cannot.
		if len(candidates) == 1 {
			return nil, &NotFoundError{RawID: rawID, Candidates: suggestions(candidates)}
		}
	}

	switch len(candidates) {
	case 0:
		return &Result{ResolvedID: rawID, Offers: nil}, nil
	case 1:
		offers, err := r.catalog.Endpoints(ctx, candidates[0].ID)
		if err != nil {
			slog.Debug("candidate offer lookup failed", "model", candidates[0].ID, "error", err)
			offers = nil
		}
		return &Result{ResolvedID: candidates[0].ID, Offers: offers}, nil
	}

	for _, c := range disambiguate(candidates) {
		offers, err := r.tryCandidate(ctx, c.ID)
		if err != nil {
			continue
		}
		if len(offers) > 0 {
			return &Result{ResolvedID: c.ID, Offers: offers}, nil
		}
	}

	return nil, &NotFoundError{RawID: rawID, Candidates: suggestions(candidates)}
}

func (r *Resolver) tryCandidate(ctx context.Context, id string) ([]catalog.OfferDetails, error) {
	offers, err := r.catalog.Endpoints(ctx, id)
	if err != nil {
		slog.Debug("candidate offer lookup failed", "model", id, "error", err)
		return nil, err
	}
	return offers, nil
}

func substringMatches(models []catalog.ModelSummary, rawID string) []catalog.ModelSummary {
	s := strings.ToLower(strings.TrimSpace(rawID))
	var out []catalog.ModelSummary
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.ID), s) || strings.Contains(strings.ToLower(m.Name), s) {
			out = append(out, m)
		}
	}
	return out
}

func exactInsensitive(candidates []catalog.ModelSummary, rawID string) *catalog.ModelSummary {
	for i := range candidates {
		if strings.EqualFold(candidates[i].ID, rawID) {
			return &candidates[i]
		}
	}
	return nil
}

// disambiguate orders candidates by preference: ids without the
// free-tier marker first, then ascending id length as a proxy for a
// more canonical name. The order is stable for equally ranked entries.
func disambiguate(candidates []catalog.ModelSummary) []catalog.ModelSummary {
	ordered := make([]catalog.ModelSummary, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		fi := strings.Contains(ordered[i].ID, ":free")
		fj := strings.Contains(ordered[j].ID, ":free")
		if fi != fj {
			return !fi
		}
		return len(ordered[i].ID) < len(ordered[j].ID)
	})
	return ordered
}

func suggestions(candidates []catalog.ModelSummary) []Candidate {
	n := len(candidates)
	if n > maxSuggestions {
		n = maxSuggestions
	}
	out := make([]Candidate, 0, n)
	for _, m := range candidates[:n] {
		out = append(out, Candidate{ID: m.ID, Name: m.Name})
	}
	return out
}
