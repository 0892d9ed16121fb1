package logger

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// SetupLogger initializes the default logger from CLI-level settings and returns it.
func SetupLogger(level LogLevel, logJSON, logSource bool) Logger {
	Init(&Config{
		Level:      level,
		Output:     os.Stdout,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
	return GetDefault()
}

func GetLoggerConfig(cmd *cobra.Command) (LogLevel, bool, bool, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return NoLevel, false, false, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return NoLevel, false, false, fmt.Errorf("failed to get log-json flag: %w", err)
	}
	logSource, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return NoLevel, false, false, fmt.Errorf("failed to get log-source flag: %w", err)
	}
	return LogLevel(logLevel), logJSON, logSource, nil
}
