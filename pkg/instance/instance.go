package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

// GetID identifies the running process in logs and lock owners. Heroku dynos
// and container hostnames are used when no explicit id is set.
func GetID() string {
	if id := env.Get("STOREFRONT_INSTANCE_ID", os.Getenv("DYNO")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
