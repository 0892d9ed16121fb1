package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricName(t *testing.T) {
	t.Run("Should add the prefix", func(t *testing.T) {
		assert.Equal(t, "wabot_requests_total", MetricName("requests_total"))
	})
	t.Run("Should keep an existing prefix", func(t *testing.T) {
		assert.Equal(t, "wabot_custom", MetricName("wabot_custom"))
	})
}

func TestMetricNameWithSubsystem(t *testing.T) {
	t.Run("Should join subsystem and name", func(t *testing.T) {
		assert.Equal(t, "wabot_webhook_received_total", MetricNameWithSubsystem("webhook", "received_total"))
	})
	t.Run("Should fall back to the plain name without subsystem", func(t *testing.T) {
		assert.Equal(t, "wabot_uptime_seconds", MetricNameWithSubsystem("", "uptime_seconds"))
	})
}
