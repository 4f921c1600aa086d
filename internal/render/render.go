// Package render turns resolved, filtered data into terminal output.
// It is a pure formatting boundary: everything it receives has already
// been resolved, filtered, and sorted.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/orin/internal/catalog"
)

// placeholder stands in for values the upstream did not publish.
const placeholder = "—"

// Format selects the output shape.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, json, or yaml)", s)
}

// Models writes the model listing. counts, when non-nil, adds a
// Providers column keyed by model id.
func Models(w io.Writer, models []catalog.ModelSummary, counts map[string]int, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, models)
	case FormatYAML:
		return writeYAML(w, models)
	}

	if counts != nil {
		fmt.Fprintf(w, "%-45s %-35s %10s %10s\n", "ID", "Name", "Context", "Providers")
		for _, m := range models {
			fmt.Fprintf(w, "%-45s %-35s %10s %10d\n", m.ID, m.Name, formatContext(m.ContextLength), counts[m.ID])
		}
	} else {
		fmt.Fprintf(w, "%-45s %-35s %10s\n", "ID", "Name", "Context")
		for _, m := range models {
			fmt.Fprintf(w, "%-45s %-35s %10s\n", m.ID, m.Name, formatContext(m.ContextLength))
		}
	}
	fmt.Fprintf(w, "\n%d models\n", len(models))
	return nil
}

// Offers writes the provider offers for a resolved model. Prices are
// shown per million tokens.
func Offers(w io.Writer, resolvedID string, offers []catalog.OfferDetails, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, offerDoc{Model: resolvedID, Offers: offers})
	case FormatYAML:
		return writeYAML(w, offerDoc{Model: resolvedID, Offers: offers})
	}

	fmt.Fprintf(w, "Offers for %s\n\n", resolvedID)
	fmt.Fprintf(w, "%-20s %-8s %-7s %10s %9s %10s %11s %8s %6s\n",
		"Provider", "Status", "Quant", "Context", "Max Out", "$/M In", "$/M Out", "Uptime", "TPS")
	for i := range offers {
		o := &offers[i]
		fmt.Fprintf(w, "%-20s %-8s %-7s %10s %9s %10s %11s %8s %6s\n",
			o.Offer.ProviderName,
			statusCell(o),
			orDash(o.Offer.Quantization),
			formatContext(o.Offer.ContextWindow),
			formatCount(o.Offer.MaxCompletionTokens),
			pricePerMillion(o.Offer.Pricing, "prompt"),
			pricePerMillion(o.Offer.Pricing, "completion"),
			uptimeCell(o),
			tpsCell(o),
		)
	}
	fmt.Fprintf(w, "\n%d offers\n", len(offers))
	return nil
}

type offerDoc struct {
	Model  string                 `json:"model" yaml:"model"`
	Offers []catalog.OfferDetails `json:"offers" yaml:"offers"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func formatContext(n int) string {
	if n <= 0 {
		return placeholder
	}
	if n >= 1000 && n%1000 == 0 {
		return fmt.Sprintf("%dK", n/1000)
	}
	return fmt.Sprintf("%d", n)
}

func formatCount(n int) string {
	if n <= 0 {
		return placeholder
	}
	return fmt.Sprintf("%d", n)
}

// pricePerMillion scales a stored per-token rate up to the per-million
// figure users compare offers by.
func pricePerMillion(pricing map[string]float64, key string) string {
	p, ok := pricing[key]
	if !ok {
		return placeholder
	}
	return fmt.Sprintf("$%.2f", p*1e6)
}

func statusCell(o *catalog.OfferDetails) string {
	if !o.Available {
		return "offline"
	}
	return orDash(o.Offer.Status)
}

// uptimeCell prefers the API figure and falls back to scraped data.
func uptimeCell(o *catalog.OfferDetails) string {
	if o.Offer.Uptime30Min > 0 {
		return fmt.Sprintf("%.1f%%", o.Offer.Uptime30Min)
	}
	if o.Web != nil && o.Web.UptimePercentage != nil {
		return fmt.Sprintf("%.1f%%", *o.Web.UptimePercentage)
	}
	return placeholder
}

func tpsCell(o *catalog.OfferDetails) string {
	if o.Offer.PerformanceTPS != nil {
		return fmt.Sprintf("%.0f", *o.Offer.PerformanceTPS)
	}
	if o.Web != nil && o.Web.ThroughputTPS != nil {
		return fmt.Sprintf("%.0f", *o.Web.ThroughputTPS)
	}
	return placeholder
}
