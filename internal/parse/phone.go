package parse

import (
	"strings"
)

// Phone formats a phone number as (AAA)-MMM-LLLL using its last ten
// digits. Input with fewer than ten digits is returned unchanged.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return raw
	}
	d := digits[len(digits)-10:]
	return "(" + d[:3] + ")-" + d[3:6] + "-" + d[6:]
}
