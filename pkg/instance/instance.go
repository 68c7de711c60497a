package instance

import (
	"os"

	"github.com/KalilovM/topshopes-backend/pkg/env"
)

// GetID returns the process instance identifier used in logs. WORKER_ID wins,
// then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("WORKER_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
