// Package device turns raw User-Agent strings into compact display names for
// audit logging around admin sign-ins.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Summary extracts a human-readable device name from a User-Agent string,
// in the form "Browser on OS" (e.g. "Chrome on macOS").
func Summary(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
