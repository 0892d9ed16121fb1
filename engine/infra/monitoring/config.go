package monitoring

import (
	"errors"
	"fmt"
	"strings"
)

const defaultPath = "/metrics"

// reservedRoutes are served by the chatbot itself and cannot host the exporter.
var reservedRoutes = []string{"/", "/webhook", "/healthz"}

// Config controls the Prometheus exporter.
type Config struct {
	Enabled bool
	Path    string
}

func DefaultConfig() *Config {
	return &Config{Path: defaultPath}
}

// Validate rejects exporter paths that gin cannot route or that shadow a service route.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return errors.New("monitoring path is empty")
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("monitoring path %q must be absolute", c.Path)
	case strings.ContainsAny(c.Path, "?#"):
		return fmt.Errorf("monitoring path %q must not carry a query or fragment", c.Path)
	}
	for _, route := range reservedRoutes {
		if c.Path == route || (route != "/" && strings.HasPrefix(c.Path, route+"/")) {
			return fmt.Errorf("monitoring path %q collides with %s", c.Path, route)
		}
	}
	return nil
}
