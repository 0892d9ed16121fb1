package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/janus-koncepts/wabot/pkg/config"
)

// extractCLIFlags collects the flags the user set explicitly and that map to
// a configuration path. Values stay as strings; the loader decodes them.
func extractCLIFlags(cmd *cobra.Command) map[string]any {
	flags := make(map[string]any)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := config.CLIFlagPath(f.Name); ok {
			flags[f.Name] = f.Value.String()
		}
	})
	return flags
}

// loadEnvFile reads --env-file into the process environment and returns its
// absolute path. The file must live under the working directory; a missing
// file is skipped.
func loadEnvFile(cmd *cobra.Command) (string, error) {
	name, err := cmd.Flags().GetString("env-file")
	if err != nil || name == "" {
		return "", err
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(wd, path)
	}
	path = filepath.Clean(path)
	if !isPathWithinDirectory(path, wd) {
		return "", fmt.Errorf("env file %q is outside the working directory", name)
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return path, nil
	case err != nil:
		return "", fmt.Errorf("env file %q: %w", name, err)
	case !info.Mode().IsRegular():
		return "", fmt.Errorf("env file %q is not a regular file", name)
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("env file %q: %w", name, err)
	}
	return path, nil
}

func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
