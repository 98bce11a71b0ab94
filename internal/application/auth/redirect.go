package auth

import "strings"

const fallbackPath = "/settings"

// ValidateRedirect returns candidate when it starts with one of the allowed
// origins, otherwise the first origin followed by /settings.
//
// The origin must be followed by end of string or a path, query or fragment
// delimiter, so https://app.example.com does not admit
// https://app.example.com.evil.test.
func ValidateRedirect(candidate string, allowlist []string) string {
	if IsAllowedRedirect(candidate, allowlist) {
		return candidate
	}
	if len(allowlist) == 0 {
		return fallbackPath
	}
	return strings.TrimRight(allowlist[0], "/") + fallbackPath
}

// IsAllowedRedirect reports whether candidate is prefixed by an allowed origin.
func IsAllowedRedirect(candidate string, allowlist []string) bool {
	if candidate == "" {
		return false
	}
	for _, origin := range allowlist {
		origin = strings.TrimRight(origin, "/")
		if origin == "" || !strings.HasPrefix(candidate, origin) {
			continue
		}
		rest := candidate[len(origin):]
		if rest == "" {
			return true
		}
		switch rest[0] {
		case '/', '?', '#':
			return true
		}
	}
	return false
}
