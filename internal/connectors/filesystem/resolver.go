package filesystem

import (
	"net/url"
	"strings"
)

// ResolvePath converts a locator to a local path.
// file:// URIs are unescaped; bare paths pass through unchanged.
// ok is false for remote locators such as http(s) URLs.
func ResolvePath(locator string) (path string, ok bool) {
	lower := strings.ToLower(locator)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return "", false
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(locator)
		if err != nil || u.Path == "" {
			return strings.TrimPrefix(locator, locator[:len("file://")]), true
		}
		return u.Path, true
	default:
		return locator, true
	}
}
