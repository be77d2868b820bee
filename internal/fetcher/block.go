package fetcher

import (
	"net/http"
	"strings"
)

// BlockType describes an anti-bot response.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// challengeBodyLimit bounds the body size at which captcha markers count;
// real result pages embed captcha scripts in their footers.
const challengeBodyLimit = 50 << 10

// DetectBlock inspects a response for anti-bot interstitials.
func DetectBlock(status int, header http.Header, body []byte) BlockType {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || strings.EqualFold(header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-challenge") {
		return BlockCloudflare
	}

	if len(body) < challengeBodyLimit &&
		(strings.Contains(lower, "captcha") || strings.Contains(lower, "are you a robot") ||
			strings.Contains(lower, "unusual traffic")) {
		return BlockCaptcha
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
			return BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return BlockJSShell
		}
	}
	return BlockNone
}
