package logging

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// RedactedValue replaces anything that looks like a credential.
const RedactedValue = "[REDACTED]"

// Substrings of query parameter names whose values are never logged.
var credentialKeys = []string{"password", "secret", "token", "key", "authorization", "session", "jwt"}

var (
	bearerRE = regexp.MustCompile(`(?i)bearer\s+[\w.\-]{20,}`)
	assignRE = regexp.MustCompile(`(?i)\b(token|secret|password|session|key)\s*[=:]\s*["']?[\w+/=\-]{32,}["']?`)
)

// Redact masks bearer tokens and long key=value secrets in free text.
func Redact(s string) string {
	s = bearerRE.ReplaceAllString(s, RedactedValue)
	return assignRE.ReplaceAllString(s, RedactedValue)
}

// IsSensitiveField reports whether a parameter or header name carries
// credentials.
func IsSensitiveField(name string) bool {
	name = strings.ToLower(name)
	return slices.ContainsFunc(credentialKeys, func(k string) bool {
		return strings.Contains(name, k)
	})
}

// RedactURL masks the password and credential query values of a backend
// URL. Input that does not parse is passed through Redact.
func RedactURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Redact(raw)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), RedactedValue)
	}
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	masked := false
	for name := range q {
		if IsSensitiveField(name) {
			q.Set(name, RedactedValue)
			masked = true
		}
	}
	if masked {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
