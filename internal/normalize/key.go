package normalize

import (
	"regexp"
	"strings"
)

// addressMarkers matches labels some sources prepend to addresses.
var addressMarkers = regexp.MustCompile(`(?i)^\s*(?:[•·📍]\s*)?(?:(?:address|located in|location|addr\.?)\s*[:\-–]\s*)?`)

// StripAddressMarkers removes a leading source label such as "Address:"
// or "Located in:" from an address string.
func StripAddressMarkers(addr string) string {
	return strings.TrimSpace(addressMarkers.ReplaceAllString(addr, ""))
}

// Key is the merge identity of a lead: the lowercased trimmed company name
// joined with the lowercased trimmed address, source labels removed.
func Key(company, address string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "|" +
		strings.ToLower(StripAddressMarkers(address))
}
