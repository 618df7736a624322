// Package redact scrubs credentials, connection strings and statement data from
// strings before they are logged. Driver errors routinely echo the DSN, the
// target host or fragments of the failing statement; everything the database
// layer logs about a failure goes through this package first.
package redact

import (
	"regexp"
	"strings"
)

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedLiteralPlaceholder    = "?"
)

// MaxQueryLength bounds the statement text returned by Query.
const MaxQueryLength = 200

var (
	// scheme://user:pass@ prefix of a connection URL
	dsnUserInfoRegex = regexp.MustCompile(
		`(?i)\b(postgres|postgresql|mysql|sqlserver|mssql|sqlite|file)://[^@\s/]+@`,
	)

	// key=value style credentials, as in libpq DSNs
	passwordRegex = regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[=:]\s*('[^']*'|"[^"]*"|[^\s&;]+)`)
	secretRegex   = regexp.MustCompile(
		`(?i)\b(api[_-]?key|token|secret|sslkey|sslpassword)\s*[=:]\s*[A-Za-z0-9_\-.~+/]{4,}`,
	)

	// host:port pairs, including bracketed IPv6 addresses
	hostPortRegex = regexp.MustCompile(`(\[[0-9a-fA-F:]+\]|\b[a-zA-Z0-9][a-zA-Z0-9.-]*):\d{2,5}\b`)

	// statement literals
	stringLiteralRegex  = regexp.MustCompile(`'(?:[^']|'')*'`)
	numericLiteralRegex = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	whitespaceRegex     = regexp.MustCompile(`\s+`)

	ordered = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{dsnUserInfoRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{secretRegex, RedactedKeyPlaceholder},
		{hostPortRegex, RedactedHostPlaceholder},
	}
)

// String redacts credentials and host addresses from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range ordered {
		result = p.re.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Query returns a loggable form of a SQL statement: literals are replaced by
// placeholders, whitespace is collapsed and the result is truncated to
// MaxQueryLength runes.
func Query(query string) string {
	q := stringLiteralRegex.ReplaceAllString(query, RedactedLiteralPlaceholder)
	q = numericLiteralRegex.ReplaceAllString(q, RedactedLiteralPlaceholder)
	q = strings.TrimSpace(whitespaceRegex.ReplaceAllString(q, " "))

	if r := []rune(q); len(r) > MaxQueryLength {
		q = string(r[:MaxQueryLength]) + "..."
	}
	return q
}
