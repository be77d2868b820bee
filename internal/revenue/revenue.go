// Package revenue parses and formats the revenue strings published by
// revenue estimators and company data providers.
package revenue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// estimateRe finds the "Estimated Revenue ... $12.5M" marker on an estimator page.
var estimateRe = regexp.MustCompile(`(?i)estimated\s+(?:annual\s+)?revenue[^$\n]{0,80}\$\s*([\d.,]+(?:\s*[KMB]\b)?)`)

// amountRe matches a bare amount with an optional magnitude suffix.
var amountRe = regexp.MustCompile(`(?i)^\$?\s*([\d,]+(?:\.\d+)?)\s*(k|m|b|thousand|million|billion)?\s*$`)

// Extract returns the estimated revenue published in page text, formatted
// the way the page shows it (e.g. "$12.5M").
func Extract(text string) (string, bool) {
	m := estimateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	amount := strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "")
	amount = strings.TrimRight(amount, ".,")
	if amount == "" {
		return "", false
	}
	return "$" + strings.ToUpper(amount), true
}

// Parse converts a revenue string such as "$12.5M", "3 billion" or
// "1,250,000" to whole dollars.
func Parse(s string) (int64, bool) {
	m := amountRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		v *= 1_000
	case "m", "million":
		v *= 1_000_000
	case "b", "billion":
		v *= 1_000_000_000
	}
	return int64(v + 0.5), true
}

// Format formats a revenue amount in human-readable form.
func Format(amount int64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("$%.1fB", float64(amount)/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("$%.1fM", float64(amount)/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("$%.0fK", float64(amount)/1_000)
	default:
		return fmt.Sprintf("$%d", amount)
	}
}

// Normalize reformats s through Parse and Format. Unparseable input is
// returned trimmed.
func Normalize(s string) string {
	if n, ok := Parse(s); ok && n > 0 {
		return Format(n)
	}
	return strings.TrimSpace(s)
}
