package blogservice

import "regexp"

var scriptTagRX = regexp.MustCompile(`(?i)<\s*script[^>]*>(.*?)<\s*/\s*script\s*>`)

// sanitizeMarkdown strips script tags from user-submitted markdown before it
// is stored.
func sanitizeMarkdown(markdown string) string {
	return scriptTagRX.ReplaceAllString(markdown, "")
}
