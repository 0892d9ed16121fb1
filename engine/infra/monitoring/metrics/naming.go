package metrics

import "strings"

const prefix = "wabot_"

// MetricName prefixes name with the service namespace unless it already carries it.
func MetricName(name string) string {
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// MetricNameWithSubsystem returns wabot_<subsystem>_<name>.
func MetricNameWithSubsystem(subsystem, name string) string {
	subsystem = strings.Trim(subsystem, "_")
	if subsystem == "" {
		return MetricName(name)
	}
	return MetricName(subsystem + "_" + strings.TrimPrefix(name, "_"))
}
