package resolver

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

// ExtractFromQuery implements the no-network strategy: pull a publisher URL
// out of a url= query parameter, or a raw url= embedded in the path.
func ExtractFromQuery(googleURL string) (string, bool) {
	u, err := url.Parse(googleURL)
	if err != nil {
		return "", false
	}

	if target := u.Query().Get("url"); strings.HasPrefix(target, "http") {
		if IsPublisherURL(target) {
			return target, true
		}
	}

	// Some redirect forms bury url= inside the /articles/ path segment.
	if idx := strings.Index(u.Path, "url="); idx >= 0 {
		raw := u.Path[idx+len("url="):]
		if amp := strings.IndexByte(raw, '&'); amp >= 0 {
			raw = raw[:amp]
		}
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}
		if strings.HasPrefix(raw, "http") && IsPublisherURL(raw) {
			return raw, true
		}
	}

	return "", false
}

var embeddedURLPattern = regexp.MustCompile(`https?://[^\s"'\\\x00-\x1f]+`)

// DecodeArticleID decodes the Base64 payload after /articles/ and looks for
// an embedded publisher URL. Best-effort: the encoding is undocumented and
// changes without notice.
func DecodeArticleID(googleURL string) (string, bool) {
	u, err := url.Parse(googleURL)
	if err != nil {
		return "", false
	}

	idx := strings.Index(u.Path, "/articles/")
	if idx < 0 {
		return "", false
	}
	segment := u.Path[idx+len("/articles/"):]
	if slash := strings.IndexByte(segment, '/'); slash >= 0 {
		segment = segment[:slash]
	}
	if segment == "" {
		return "", false
	}

	if pad := len(segment) % 4; pad != 0 {
		segment += strings.Repeat("=", 4-pad)
	}

	decoded, err := base64.URLEncoding.DecodeString(segment)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(segment)
		if err != nil {
			return "", false
		}
	}

	text := string(decoded)
	if unescaped, err := url.QueryUnescape(text); err == nil {
		text = unescaped
	}

	for _, match := range embeddedURLPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, `.,;)"'`)
		if IsPublisherURL(match) {
			return match, true
		}
	}
	return "", false
}

// Patterns for pulling external URLs out of rendered redirect-stub HTML,
// tried in order of reliability.
var htmlURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`href="(https?://[^"]+)"`),
	regexp.MustCompile(`data-url="(https?://[^"]+)"`),
	regexp.MustCompile(`url=(https?://[^"'&\s]+)`),
	regexp.MustCompile(`"(https?://[^"]+)"`),
}

// ScanHTMLForPublisherURL scans rendered HTML for the first non-Google,
// non-asset URL.
func ScanHTMLForPublisherURL(html string) (string, bool) {
	for _, pattern := range htmlURLPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			candidate := match[1]
			if decoded, err := url.QueryUnescape(candidate); err == nil && strings.HasPrefix(decoded, "http") {
				candidate = decoded
			}
			if IsPublisherURL(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}
