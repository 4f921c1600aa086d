package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

// The metric parsers turn loosely-formatted cell or card text into
// numbers. Blank and placeholder text ("—", "-", "N/A") means "no value",
// never an error.

func isPlaceholder(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || t == "—" || t == "-" || t == "N/A"
}

var (
	ctxKiloRe = regexp.MustCompile(`(\d+\.?\d*)\s*k`)
	ctxMegaRe = regexp.MustCompile(`(\d+\.?\d*)\s*m`)
	bareIntRe = regexp.MustCompile(`^(\d+)$`)
)

// ParseContextSize parses a context or token-limit value such as "33K",
// "1M", or "131072" into a token count.
func ParseContextSize(text string) (int, bool) {
	if isPlaceholder(text) {
		return 0, false
	}
	t := strings.ToLower(strings.TrimSpace(text))

	for _, p := range []struct {
		re   *regexp.Regexp
		mult float64
	}{
		{ctxKiloRe, 1000},
		{ctxMegaRe, 1000000},
		{bareIntRe, 1},
	} {
		if m := p.re.FindStringSubmatch(t); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return int(v * p.mult), true
		}
	}
	return 0, false
}

var throughputRes = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.?\d*)\s*tps`),
	regexp.MustCompile(`(\d+\.?\d*)\s*tokens?[/\s]s(?:ec|ond)?`),
	regexp.MustCompile(`(\d+\.?\d*)\s*tokens?\s+per\s+second`),
	regexp.MustCompile(`(\d+\.?\d*)\s*t/s`),
	regexp.MustCompile(`^(\d+\.?\d*)$`),
}

// ParseThroughput parses a tokens-per-second value: "15.2 TPS",
// "12 tokens/s", "18 tokens per second", "15 t/s", or a bare number
// (assumed TPS). Text carrying a different unit ("850ms") does not match.
func ParseThroughput(text string) (float64, bool) {
	if isPlaceholder(text) {
		return 0, false
	}
	t := strings.ToLower(strings.TrimSpace(text))

	for _, re := range throughputRes {
		if m := re.FindStringSubmatch(t); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return v, true
		}
	}
	return 0, false
}

var latencyRes = []struct {
	re   *regexp.Regexp
	mult float64
}{
	{regexp.MustCompile(`(\d+\.?\d*)\s*ms`), 0.001},
	{regexp.MustCompile(`(\d+\.?\d*)\s*s(?:ec|onds?)?`), 1},
	{regexp.MustCompile(`(\d+\.?\d*)\s*minutes?`), 60},
}

// ParseLatency parses a latency value into seconds: "850ms" → 0.85,
// "1.2 seconds" → 1.2, "2 minutes" → 120, or a bare number (assumed
// seconds).
func ParseLatency(text string) (float64, bool) {
	if isPlaceholder(text) {
		return 0, false
	}
	t := strings.ToLower(strings.TrimSpace(text))

	for _, p := range latencyRes {
		if m := p.re.FindStringSubmatch(t); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return v * p.mult, true
		}
	}

	if v, err := strconv.ParseFloat(t, 64); err == nil {
		return v, true
	}
	return 0, false
}

var (
	uptimePercentRe = regexp.MustCompile(`(\d+\.?\d*)\s*%`)
	uptimeBareRe    = regexp.MustCompile(`^(\d+\.?\d*)$`)
)

// ParseUptime parses an uptime percentage: "99.5%" or a bare number. A
// bare value in [0,1] is read as a fraction and scaled to percent; values
// above 100 are rejected.
func ParseUptime(text string) (float64, bool) {
	if isPlaceholder(text) {
		return 0, false
	}
	t := strings.ToLower(strings.TrimSpace(text))

	for _, re := range []*regexp.Regexp{uptimePercentRe, uptimeBareRe} {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v >= 0 && v <= 1 {
			return v * 100, true
		}
		if v <= 100 {
			return v, true
		}
	}
	return 0, false
}

var (
	textThroughputRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+\.?\d*)\s*tps`),
		regexp.MustCompile(`(?i)(\d+\.?\d*)\s*tokens?[/\s]s(?:ec|ond)?`),
		regexp.MustCompile(`(?i)(\d+\.?\d*)\s*tokens?\s+per\s+second`),
		regexp.MustCompile(`(?i)throughput[:\s]+(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)performance[:\s]+(\d+\.?\d*)\s*(?:tps|tokens?[/\s]s|tokens?\s+per\s+second)`),
		regexp.MustCompile(`(?i)tps[:\s]+(\d+\.?\d*)`),
	}
	textLatencyRes = []struct {
		re   *regexp.Regexp
		ms   bool
	}{
		{regexp.MustCompile(`(?i)(\d+\.?\d*)\s*ms`), true},
		{regexp.MustCompile(`(?i)(\d+\.?\d*)\s*s(?:ec|onds?)?`), false},
		{regexp.MustCompile(`(?i)latency[:\s]+(\d+\.?\d*)`), false},
		{regexp.MustCompile(`(?i)response\s+time[:\s]+(\d+\.?\d*)\s*ms`), true},
		{regexp.MustCompile(`(?i)response\s+time[:\s]+(\d+\.?\d*)\s*s(?:ec|onds?)?`), false},
	}
	textUptimeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+\.?\d*)\s*%`),
		regexp.MustCompile(`(?i)uptime[:\s]+(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)availability[:\s]+(\d+\.?\d*)`),
	}
)

// throughputFromText scans free-running card text for a throughput figure.
func throughputFromText(text string) (float64, bool) {
	for _, re := range textThroughputRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// latencyFromText scans free-running card text for a latency figure in
// seconds.
func latencyFromText(text string) (float64, bool) {
	for _, p := range textLatencyRes {
		if m := p.re.FindStringSubmatch(text); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if p.ms {
				v /= 1000
			}
			return v, true
		}
	}
	return 0, false
}

// uptimeFromText scans free-running card text for an uptime percentage.
func uptimeFromText(text string) (float64, bool) {
	for _, re := range textUptimeRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}
