package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among the given variables.
func First(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}
