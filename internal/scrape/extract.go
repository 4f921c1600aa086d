package scrape

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/everstacklabs/orin/internal/catalog"
)

// tableSelectors are tried in order when hunting for provider tables.
// Later strategies are broader; duplicates are collapsed by node identity.
var tableSelectors = []string{
	".provider-table",
	"#providers",
	`[data-testid*="provider"]`,
	"table",
}

var metricTerms = []string{
	"throughput", "latency", "uptime", "tps", "response time", "availability", "performance",
}

// ExtractOffers pulls per-provider offer records out of a parsed model
// page. Two passes run unconditionally: a table pass over qualifying
// provider tables and a container pass over card/div layouts. Records from
// the container pass are merged in only when their identity key is not
// already taken, so table data wins for the same offer.
func ExtractOffers(doc *goquery.Document, now time.Time) []catalog.WebProviderMetric {
	var offers []catalog.WebProviderMetric

	for _, table := range findProviderTables(doc) {
		offers = append(offers, extractFromTable(table, now)...)
	}

	seen := make(map[string]bool, len(offers))
	for i := range offers {
		seen[offers[i].Key()] = true
	}

	for _, o := range extractFromContainers(doc, now) {
		if !seen[o.Key()] {
			offers = append(offers, o)
			seen[o.Key()] = true
		}
	}

	return offers
}

// findProviderTables enumerates candidate tables across all selector
// strategies, keeping each table node once and only when it qualifies.
func findProviderTables(doc *goquery.Document) []*goquery.Selection {
	var tables []*goquery.Selection
	seen := make(map[*html.Node]bool)

	for _, sel := range tableSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if node == nil || goquery.NodeName(s) != "table" || seen[node] {
				return
			}
			if isProviderTable(s) {
				tables = append(tables, s)
				seen[node] = true
			}
		})
	}

	return tables
}

// isProviderTable qualifies a table by its header row: the joined header
// text must name a provider-ish column and at least one performance metric.
func isProviderTable(table *goquery.Selection) bool {
	header := table.Find("tr").First()
	if header.Length() == 0 {
		return false
	}

	var parts []string
	header.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		parts = append(parts, strings.ToLower(cell.Text()))
	})
	joined := strings.Join(parts, " ")

	hasProvider := strings.Contains(joined, "provider") ||
		strings.Contains(joined, "service") ||
		strings.Contains(joined, "name")
	if !hasProvider {
		return false
	}
	for _, term := range metricTerms {
		if strings.Contains(joined, term) {
			return true
		}
	}
	return false
}

// semantic column identifiers used by the table pass.
const (
	colProvider = "provider"
	colQuant    = "quantization"
	colContext  = "context"
	colMaxOut   = "max_output"
	colTPS      = "throughput"
	colLatency  = "latency"
	colUptime   = "uptime"
)

// mapColumns assigns header cells to semantic columns. Each header lands
// in at most one column, and the first header matching a column wins.
func mapColumns(headers []string) map[string]int {
	indices := make(map[string]int)

	assign := func(col string, i int) {
		if _, taken := indices[col]; !taken {
			indices[col] = i
		}
	}
	containsAny := func(h string, terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(h, t) {
				return true
			}
		}
		return false
	}

	for i, raw := range headers {
		h := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case h == "provider" || h == "provider name" || h == "service" || h == "name" ||
			(containsAny(h, "provider", "service") && strings.Contains(h, "name")):
			assign(colProvider, i)
		case containsAny(h, "quantization", "quant", "precision"):
			assign(colQuant, i)
		case containsAny(h, "context", "ctx", "window"):
			assign(colContext, i)
		case containsAny(h, "max output", "max completion", "max tokens", "output limit"):
			assign(colMaxOut, i)
		case containsAny(h, "throughput", "tps") || h == "tokens/s" || h == "tokens per second" || h == "t/s":
			assign(colTPS, i)
		case containsAny(h, "latency", "response time", "delay") || h == "time":
			assign(colLatency, i)
		case containsAny(h, "uptime", "availability", "online") || h == "up":
			assign(colUptime, i)
		}
	}

	return indices
}

// extractFromTable reads every data row of a qualifying table. Rows need
// at least two cells and a non-blank provider cell.
func extractFromTable(table *goquery.Selection, now time.Time) []catalog.WebProviderMetric {
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil
	}

	var headers []string
	rows.First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})
	cols := mapColumns(headers)
	providerIdx, ok := cols[colProvider]
	if !ok {
		return nil
	}

	var offers []catalog.WebProviderMetric
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		cellText := func(col string) string {
			idx, ok := cols[col]
			if !ok || idx >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(idx).Text())
		}

		provider := strings.TrimSpace(cells.Eq(providerIdx).Text())
		if provider == "" {
			return
		}

		m := catalog.WebProviderMetric{ProviderName: provider, ScrapedAt: now}
		if q := cellText(colQuant); !isPlaceholder(q) {
			m.Quantization = q
		}
		if v, ok := ParseContextSize(cellText(colContext)); ok {
			m.ContextWindow = v
		}
		if v, ok := ParseContextSize(cellText(colMaxOut)); ok {
			m.MaxCompletionTokens = v
		}
		if v, ok := ParseThroughput(cellText(colTPS)); ok {
			m.ThroughputTPS = &v
		}
		if v, ok := ParseLatency(cellText(colLatency)); ok {
			m.LatencySeconds = &v
		}
		if v, ok := ParseUptime(cellText(colUptime)); ok {
			m.UptimePercentage = &v
		}
		offers = append(offers, m)
	})

	return offers
}

var (
	containerClassRe   = regexp.MustCompile(`provider-offer|provider-card|offer|card`)
	providerMentionRe  = regexp.MustCompile(`(?i)\bprovider\s*\d+|\bcardprovider\d+`)
	containerTextLimit = 150
)

// nameSelectors locate the name-bearing element inside an offer card, in
// priority order.
var nameSelectors = []string{
	".provider-name", ".name", "h3", "h4", ".title",
	`[data-testid*="provider"]`, `[data-testid*="name"]`,
}

// extractFromContainers is the fallback pass for card/div layouts. Large
// containers mentioning several provider names are assumed to be wrappers
// around the actual cards and skipped.
func extractFromContainers(doc *goquery.Document, now time.Time) []catalog.WebProviderMetric {
	var offers []catalog.WebProviderMetric
	seen := make(map[string]bool)

	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if !containerClassRe.MatchString(class) {
			return
		}

		text := s.Text()
		if len(text) >= containerTextLimit && len(providerMentionRe.FindAllString(text, -1)) > 1 {
			return
		}

		m := extractFromContainer(s, now)
		if m == nil {
			return
		}
		if key := m.Key(); !seen[key] {
			offers = append(offers, *m)
			seen[key] = true
		}
	})

	return offers
}

func extractFromContainer(s *goquery.Selection, now time.Time) *catalog.WebProviderMetric {
	var name string
	for _, sel := range nameSelectors {
		el := s.Find(sel).First()
		if el.Length() > 0 {
			name = strings.TrimSpace(el.Text())
			break
		}
	}
	if name == "" {
		return nil
	}

	text := s.Text()
	m := &catalog.WebProviderMetric{ProviderName: name, ScrapedAt: now}
	if v, ok := throughputFromText(text); ok {
		m.ThroughputTPS = &v
	}
	if v, ok := latencyFromText(text); ok {
		m.LatencySeconds = &v
	}
	if v, ok := uptimeFromText(text); ok {
		m.UptimePercentage = &v
	}
	return m
}
