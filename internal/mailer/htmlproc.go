package mailer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// HTML instrumentation is a pure text transform: anchors are rewritten
// through the click endpoint, a tracking pixel is injected, and an
// unsubscribe footer is appended. Malformed HTML passes through with
// whatever rewrites matched; nothing here ever fails the send.

var (
	anchorHrefPattern = regexp.MustCompile(`(?i)(<a\b[^>]*?\bhref\s*=\s*")([^"]*)(")`)
	bodyClosePattern  = regexp.MustCompile(`(?i)</body>`)
)

// InstrumentHTML applies all tracking rewrites for one message.
func InstrumentHTML(html, messageID, baseURL, unsubscribeURL string) string {
	out := RewriteLinks(html, messageID, baseURL)
	if unsubscribeURL != "" {
		out = appendFooter(out, fmt.Sprintf(
			`<p style="font-size:12px;color:#888;"><a href="%s">Unsubscribe</a></p>`,
			unsubscribeURL))
	}
	return InjectPixel(out, messageID, baseURL)
}

// RewriteLinks points every anchor at the click-tracking redirect. Special
// schemes (mailto:, tel:), fragment anchors, and links already pointing at
// the tracker are left alone.
func RewriteLinks(html, messageID, baseURL string) string {
	return anchorHrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		parts := anchorHrefPattern.FindStringSubmatch(match)
		href := parts[2]
		if skipHref(href, baseURL) {
			return match
		}
		tracked := fmt.Sprintf("%s/api/track/click/%s?url=%s",
			strings.TrimRight(baseURL, "/"), messageID, url.QueryEscape(href))
		return parts[1] + tracked + parts[3]
	})
}

// InjectPixel inserts the 1x1 open-tracking image before </body>, or
// appends it when the document has no body close tag.
func InjectPixel(html, messageID, baseURL string) string {
	pixel := fmt.Sprintf(
		`<img src="%s/api/track/open/%s" width="1" height="1" style="display:none;" alt=""/>`,
		strings.TrimRight(baseURL, "/"), messageID)
	return appendFooter(html, pixel)
}

func appendFooter(html, fragment string) string {
	if loc := bodyClosePattern.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + fragment + html[loc[0]:]
	}
	return html + fragment
}

func skipHref(href, baseURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	switch {
	case lower == "", strings.HasPrefix(lower, "#"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "{"): // template placeholder, not a URL
		return true
	}
	return strings.Contains(lower, "/api/track/")
}
