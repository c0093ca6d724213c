// Package device turns raw User-Agent strings into short human-readable
// summaries recorded alongside application submissions.
package device

import (
	"fmt"

	"github.com/mssola/useragent"
)

// Summary returns a display string like "Chrome on Mac OS X" for audit
// entries. Unknown agents still produce something readable.
func Summary(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OSInfo().Name
	if os == "" {
		os = "Unknown OS"
	}
	if ua.Mobile() && ua.Platform() != "" {
		return fmt.Sprintf("%s on %s", browser, ua.Platform())
	}
	return fmt.Sprintf("%s on %s", browser, os)
}
