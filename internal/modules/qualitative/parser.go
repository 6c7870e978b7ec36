package qualitative

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/steward-labs/steward/internal/domain"
)

var (
	dollarRe  = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	boldRe    = regexp.MustCompile(`\*{1,2}(.+?)\*{1,2}`)
)

// ParseVerdict parses a structured markdown analysis into a Verdict. The
// text format uses "## SECTION" headers with "Label: value" fields inside.
// Missing sections degrade to empty fields and the worst rating, never an
// error, because the text comes from a model and is only mostly well-formed.
func ParseVerdict(symbol, name, sector, text string) *Verdict {
	moat := extractSection(text, "## MOAT CLASSIFICATION", "## MANAGEMENT")
	mgmt := extractSection(text, "## MANAGEMENT QUALITY", "## BUSINESS DURABILITY")
	durability := extractSection(text, "## BUSINESS DURABILITY", "## CURRENCY")
	currency := extractSection(text, "## CURRENCY EXPOSURE", "## FAIR VALUE")
	fairValue := extractSection(text, "## FAIR VALUE ASSESSMENT", "## CONVICTION")
	conviction := extractSection(text, "## CONVICTION LEVEL", "## INVESTMENT SUMMARY")
	summary := extractSection(text, "## INVESTMENT SUMMARY", "## KEY RISKS")
	risks := extractSection(text, "## KEY RISKS", "## THESIS")
	thesisRisks := extractSection(text, "## THESIS-BREAKING", "## TOTAL RETURN")
	totalReturn := extractSection(text, "## TOTAL RETURN POTENTIAL", "## DIVIDEND")
	dividend := extractSection(text, "## DIVIDEND YIELD", "")

	v := &Verdict{
		Symbol: symbol,
		Name:   name,
		Sector: sector,
	}

	v.MoatType = firstNonEmpty(extractField(moat, "Type"), "unknown")
	v.MoatDurability = strings.ToLower(extractRating(
		firstNonEmpty(extractField(moat, "Durability"), moat),
		[]string{"STRONG", "MODERATE", "WEAK", "NONE"},
	))
	v.MoatRisks = extractField(moat, "Risks")

	v.CapitalAllocation = strings.ToLower(extractRating(
		firstNonEmpty(extractField(mgmt, "Capital Allocation"), mgmt),
		[]string{"EXCELLENT", "GOOD", "MIXED", "POOR"},
	))
	v.InsiderOwnership = extractPct(extractField(mgmt, "Insider Ownership"))
	v.ManagementSummary = firstNonEmpty(extractField(mgmt, "Summary"), mgmt)

	v.RecessionResilience = firstNonEmpty(extractField(durability, "Recession Resilience"), durability)
	v.ExistentialRisks = extractField(durability, "Existential Risks")
	v.TenYearOutlook = firstNonEmpty(extractField(durability, "10-Year Outlook"), extractField(durability, "Outlook"))

	v.DomesticRevenuePct = extractPct(extractField(currency, "Domestic Revenue"))
	v.InternationalRevenuePct = extractPct(extractField(currency, "International Revenue"))
	v.CurrencyRiskLevel = strings.ToLower(extractRating(
		firstNonEmpty(extractField(currency, "Risk Level"), currency),
		[]string{"LOW", "MODERATE", "HIGH"},
	))
	v.CurrencyConfidence = strings.ToLower(extractRating(
		firstNonEmpty(extractField(currency, "Confidence"), currency),
		[]string{"HIGH", "MODERATE", "LOW"},
	))

	fvLine := firstNonEmpty(
		extractField(fairValue, "Estimated Fair Value"),
		extractField(fairValue, "Fair Value Range"),
		extractField(fairValue, "Fair Value"),
		fairValue,
	)
	amounts := dollarRe.FindAllString(fvLine, 2)
	if len(amounts) >= 1 {
		v.FairValueLow = parseDollar(amounts[0])
		v.FairValueHigh = v.FairValueLow
	}
	if len(amounts) >= 2 {
		v.FairValueHigh = parseDollar(amounts[1])
	}
	v.TargetEntryPrice = extractDollar(extractField(fairValue, "Target Entry Price"))
	v.CurrentPrice = extractDollar(extractField(fairValue, "Current Price"))

	level, err := domain.ParseConvictionLevel(extractRating(conviction, []string{"HIGH", "MEDIUM", "LOW"}))
	if err != nil {
		level = domain.ConvictionLow
	}
	v.Conviction = level

	v.Summary = summary
	v.KeyRisks = extractList(risks)
	v.ThesisRisks = extractList(thesisRisks)
	// A "Status: BROKEN" line in the thesis section flags an occurred
	// thesis-breaking event; anything else leaves the thesis intact.
	v.ThesisBroken = containsWord(strings.ToUpper(extractField(thesisRisks, "Status")), "BROKEN")
	v.TotalReturnPotential = totalReturn
	v.DividendYieldEstimate = extractPct(dividend)

	return v
}

// extractSection returns the text between two headers, or "" if the first
// header is absent. An empty next header means "to the end".
func extractSection(text, header, nextHeader string) string {
	start := strings.Index(text, header)
	if start == -1 {
		return ""
	}
	start += len(header)
	rest := text[start:]
	if nextHeader != "" {
		if end := strings.Index(rest, nextHeader); end != -1 {
			rest = rest[:end]
		}
	}
	return strings.TrimSpace(rest)
}

// extractField finds a "Label: value" line in a section.
func extractField(section, field string) string {
	prefix := strings.ToLower(field) + ":"
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return ""
}

// extractRating matches text against the valid options, longest option
// first so MODERATE does not lose to a substring. Falls back to the last
// option, which is by convention the worst.
func extractRating(text string, options []string) string {
	upper := strings.ToUpper(text)
	sorted := make([]string, len(options))
	copy(sorted, options)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j]) > len(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, option := range sorted {
		if containsWord(upper, strings.ToUpper(option)) {
			return option
		}
	}
	return options[len(options)-1]
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos == -1 {
			return false
		}
		pos += idx
		beforeOK := pos == 0 || !isWordChar(text[pos-1])
		after := pos + len(word)
		afterOK := after >= len(text) || !isWordChar(text[after])
		if beforeOK && afterOK {
			return true
		}
		idx = pos + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// extractList pulls bullet or numbered items out of a section, stripping
// markdown emphasis.
func extractList(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		isBullet := strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•")
		isNumbered := line[0] >= '0' && line[0] <= '9'
		if !isBullet && !isNumbered {
			continue
		}
		cleaned := strings.TrimLeft(line, "-•*0123456789.) ")
		cleaned = boldRe.ReplaceAllString(cleaned, "$1")
		if cleaned != "" {
			items = append(items, cleaned)
		}
	}
	return items
}

// extractDollar parses the first dollar amount in the text, if any.
func extractDollar(text string) *float64 {
	return parseDollar(dollarRe.FindString(text))
}

func parseDollar(match string) *float64 {
	if match == "" {
		return nil
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(match)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// extractPct parses the first percentage in the text as a decimal fraction.
func extractPct(text string) *float64 {
	match := percentRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	value /= 100
	return &value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
