// Package device turns a User-Agent header into a short display label recorded on audit entries.
package device

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"erasure/pkg/requestcontext"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<Browser> on <OS>" for display and audit purposes.
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" && !strings.Contains(os, ua.Platform()) {
		os = ua.Platform() + " " + os
	}
	if strings.TrimSpace(os) == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + strings.TrimSpace(os))
}

// Label parses the User-Agent captured by the metadata middleware.
func Label(ctx context.Context) string {
	return ParseUserAgent(requestcontext.UserAgent(ctx))
}
