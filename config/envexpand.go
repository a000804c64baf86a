// Package config handles YAML config loading for both stretch binaries.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} placeholders with
// environment variable values. A set-but-empty variable counts as
// unset, so ${REDIS_URL:-redis://localhost:6379} falls back the way
// a shell would.
//
// Unset variables without defaults expand to empty string (not an
// error). Required values fail later at Validate or at backend
// construction (e.g. an empty redis URL).
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if matches == nil {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))

	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		b.WriteString(resolvePlaceholder(input, m))
		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String()
}

// resolvePlaceholder resolves one matched placeholder to its value.
// m is the submatch index vector: name at 2..3, default at 4..5.
func resolvePlaceholder(input string, m []int) string {
	name := input[m[2]:m[3]]
	if value := os.Getenv(name); value != "" {
		return value
	}
	if m[4] >= 0 {
		return input[m[4]:m[5]]
	}
	return ""
}
