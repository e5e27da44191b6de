package util

import (
	"html"
	"os"
	"strings"
	"unicode"
)

// SanitizeInput trims free text and escapes HTML so stored notes and
// descriptions are safe to render.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(s)
}

// ContainsSuspicious flags markup or template fragments in short fields
// such as names and bank names.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, bad := range []string{"<", ">", "${", "{{", "script", "onerror", "onload"} {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

// NormalizeMobile strips the separators users commonly type.
func NormalizeMobile(mobile string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(mobile))
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
