package scrape

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/orin/internal/catalog"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing test HTML: %v", err)
	}
	return doc
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestExtractSimpleProviderTable(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Quantization</th><th>Context</th><th>Throughput</th><th>Latency</th><th>Uptime</th></tr>
	  <tr><td>DeepInfra</td><td>fp8</td><td>164K</td><td>42.5 TPS</td><td>850ms</td><td>99.2%</td></tr>
	  <tr><td>Parasail</td><td>—</td><td>131072</td><td>88 tokens/s</td><td>1.2s</td><td>0.98</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2", len(offers))
	}

	first := offers[0]
	if first.ProviderName != "DeepInfra" || first.Quantization != "fp8" {
		t.Errorf("first = %+v", first)
	}
	if first.ContextWindow != 164000 {
		t.Errorf("context = %d, want 164000", first.ContextWindow)
	}
	if first.ThroughputTPS == nil || *first.ThroughputTPS != 42.5 {
		t.Errorf("throughput = %v", first.ThroughputTPS)
	}
	if first.LatencySeconds == nil || *first.LatencySeconds != 0.85 {
		t.Errorf("latency = %v", first.LatencySeconds)
	}
	if first.UptimePercentage == nil || *first.UptimePercentage != 99.2 {
		t.Errorf("uptime = %v", first.UptimePercentage)
	}

	second := offers[1]
	if second.Quantization != "" {
		t.Errorf("placeholder quantization should stay empty, got %q", second.Quantization)
	}
	if second.UptimePercentage == nil || *second.UptimePercentage != 98 {
		t.Errorf("fractional uptime = %v", second.UptimePercentage)
	}
}

func TestMultipleOffersFromSameProviderSurvive(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Quant</th><th>Uptime</th></tr>
	  <tr><td>Chutes</td><td>fp16</td><td>99%</td></tr>
	  <tr><td>Chutes</td><td>int8</td><td>97%</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2 distinct Chutes offers", len(offers))
	}
	if offers[0].Key() == offers[1].Key() {
		t.Error("offers differing in quantization must have distinct keys")
	}
}

func TestNonProviderTableIgnored(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Month</th><th>Revenue</th></tr>
	  <tr><td>January</td><td>$100</td></tr>
	</table>`)

	if offers := ExtractOffers(doc, now); len(offers) != 0 {
		t.Errorf("got %d offers from a non-provider table", len(offers))
	}
}

func TestProviderTableNeedsMetricHeader(t *testing.T) {
	// Has "provider" but no performance term.
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Homepage</th></tr>
	  <tr><td>DeepInfra</td><td>example.com</td></tr>
	</table>`)

	if offers := ExtractOffers(doc, now); len(offers) != 0 {
		t.Errorf("table without metric headers should not qualify, got %d offers", len(offers))
	}
}

func TestAlternativeHeaderNames(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Service</th><th>Precision</th><th>Window</th><th>TPS</th><th>Response Time</th><th>Availability</th></tr>
	  <tr><td>Lambda</td><td>bf16</td><td>32k</td><td>55</td><td>500ms</td><td>98.5%</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1", len(offers))
	}
	o := offers[0]
	if o.ProviderName != "Lambda" || o.Quantization != "bf16" || o.ContextWindow != 32000 {
		t.Errorf("offer = %+v", o)
	}
	if o.LatencySeconds == nil || *o.LatencySeconds != 0.5 {
		t.Errorf("latency = %v", o.LatencySeconds)
	}
}

func TestRowsWithTooFewCellsOrBlankProviderSkipped(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Uptime</th></tr>
	  <tr><td>OnlyOneCell</td></tr>
	  <tr><td></td><td>99%</td></tr>
	  <tr><td>Valid</td><td>98%</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 || offers[0].ProviderName != "Valid" {
		t.Errorf("offers = %+v", offers)
	}
}

func TestContainerFallbackPass(t *testing.T) {
	doc := parseDoc(t, `
	<div class="provider-card">
	  <h3>Hyperbolic</h3>
	  <span>Throughput: 64.2 TPS</span>
	  <span>latency: 1.1s</span>
	  <span>uptime: 97.5%</span>
	</div>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1 from container pass", len(offers))
	}
	o := offers[0]
	if o.ProviderName != "Hyperbolic" {
		t.Errorf("name = %q", o.ProviderName)
	}
	if o.ThroughputTPS == nil || *o.ThroughputTPS != 64.2 {
		t.Errorf("throughput = %v", o.ThroughputTPS)
	}
	if o.UptimePercentage == nil || *o.UptimePercentage != 97.5 {
		t.Errorf("uptime = %v", o.UptimePercentage)
	}
}

func TestTablePassWinsOverContainerPass(t *testing.T) {
	// Same provider identity in both layouts: the table record must win
	// and the container duplicate must be dropped.
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Throughput</th></tr>
	  <tr><td>Novita</td><td>100 TPS</td></tr>
	</table>
	<div class="offer"><h3>Novita</h3><span>55 tps</span></div>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1 after merge", len(offers))
	}
	if offers[0].ThroughputTPS == nil || *offers[0].ThroughputTPS != 100 {
		t.Errorf("table data should take precedence, got %v", offers[0].ThroughputTPS)
	}
}

func TestWrapperContainersDiscarded(t *testing.T) {
	long := strings.Repeat("Provider 1 stats and Provider 2 stats and more text. ", 5)
	doc := parseDoc(t, `
	<div class="offer-list card">`+long+`
	  <div class="provider-card"><h4>Mancer</h4><span>uptime: 95%</span></div>
	</div>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 || offers[0].ProviderName != "Mancer" {
		t.Errorf("offers = %+v, want just the inner card", offers)
	}
}

func TestDedupeAcrossSelectorStrategies(t *testing.T) {
	// A table matching both the class selector and the generic "table"
	// selector must be processed once.
	doc := parseDoc(t, `
	<table class="provider-table">
	  <tr><th>Provider</th><th>Uptime</th></tr>
	  <tr><td>Friendli</td><td>99%</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 {
		t.Errorf("got %d offers, want 1 (no duplicates from selectors)", len(offers))
	}
}

func TestEmptyPageYieldsNoOffers(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>Nothing to see.</p></body></html>`)
	if offers := ExtractOffers(doc, now); len(offers) != 0 {
		t.Errorf("got %d offers from empty page", len(offers))
	}
}

func TestMapColumnsFirstMatchWins(t *testing.T) {
	cols := mapColumns([]string{"Provider", "Provider Name", "Context", "Context Window", "Uptime"})
	if cols[colProvider] != 0 {
		t.Errorf("provider column = %d, want 0", cols[colProvider])
	}
	if cols[colContext] != 2 {
		t.Errorf("context column = %d, want 2", cols[colContext])
	}
	if cols[colUptime] != 4 {
		t.Errorf("uptime column = %d, want 4", cols[colUptime])
	}
}

func TestExtractedOfferTimestamps(t *testing.T) {
	doc := parseDoc(t, `
	<table>
	  <tr><th>Provider</th><th>Uptime</th></tr>
	  <tr><td>Baseten</td><td>99%</td></tr>
	</table>`)

	offers := ExtractOffers(doc, now)
	if len(offers) != 1 || !offers[0].ScrapedAt.Equal(now) {
		t.Errorf("offers = %+v", offers)
	}
	var _ catalog.WebProviderMetric = offers[0]
}
