package mask

import "strings"

// Account keeps the last 4 characters of an account number visible.
func Account(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// Secret hides a credential completely, keeping only its length class.
func Secret(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Email masks the local part: j***@example.com
func Email(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return Secret(s)
	}
	return s[:1] + "***" + s[at:]
}
