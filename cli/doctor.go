package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/janus-koncepts/wabot/engine/core"
	"github.com/janus-koncepts/wabot/engine/knowledge/vectordb"
	"github.com/janus-koncepts/wabot/pkg/config"
)

type checkStatus int

const (
	statusPass checkStatus = iota
	statusWarn
	statusFail
)

type check struct {
	name   string
	status checkStatus
	detail string
}

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).SetString("✓")
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("192")).SetString("!")
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("204")).SetString("✗")
)

func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check secrets, document, index and providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := runChecks(config.FromContext(cmd.Context()))
			return reportChecks(cmd.OutOrStdout(), checks)
		},
	}
}

func runChecks(cfg *config.Config) []check {
	var checks []check
	llmProvider, llmErr := core.ParseProvider(cfg.LLM.Provider)
	checks = append(checks, providerCheck("LLM provider", cfg.LLM.Provider, llmErr))
	embProvider, embErr := core.ParseProvider(cfg.Embedder.Provider)
	checks = append(checks, providerCheck("Embedder provider", cfg.Embedder.Provider, embErr))
	if llmErr == nil && needsAPIKey(llmProvider) {
		checks = append(checks, secretCheck("GROK_API_KEY", cfg.LLM.APIKey.Value(), true))
	}
	if embErr == nil && needsAPIKey(embProvider) && cfg.Embedder.APIKey.Value() == "" {
		c := secretCheck("EMBEDDER_API_KEY", cfg.LLM.APIKey.Value(), true)
		if c.status == statusPass {
			c.detail = "using GROK_API_KEY"
		}
		checks = append(checks, c)
	}
	checks = append(checks,
		secretCheck("ACCESS_TOKEN", cfg.WhatsApp.AccessToken.Value(), true),
		secretCheck("PHONE_NUMBER_ID", cfg.WhatsApp.PhoneNumberID, true),
		secretCheck("VERIFY_TOKEN", cfg.WhatsApp.VerifyToken.Value(), true),
		secretCheck("WHATSAPP_APP_SECRET", cfg.WhatsApp.AppSecret.Value(), false),
	)
	index, indexReady := indexCheck(cfg.Knowledge.IndexDir)
	checks = append(checks, documentCheck(cfg.Knowledge.DocumentPath, indexReady), index)
	return checks
}

func needsAPIKey(p core.ProviderName) bool {
	return p != core.ProviderOllama && p != core.ProviderMock
}

func providerCheck(name, raw string, err error) check {
	if err != nil {
		return check{name: name, status: statusFail, detail: fmt.Sprintf("%q is not supported", raw)}
	}
	return check{name: name, status: statusPass, detail: raw}
}

func secretCheck(name, value string, required bool) check {
	switch {
	case value != "":
		return check{name: name, status: statusPass, detail: "set"}
	case required:
		return check{name: name, status: statusFail, detail: "not set"}
	default:
		return check{name: name, status: statusWarn, detail: "not set (optional)"}
	}
}

// documentCheck fails only when no persisted index can stand in for the document.
func documentCheck(path string, indexReady bool) check {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		return check{name: "Document", status: statusPass, detail: path}
	case indexReady:
		return check{name: "Document", status: statusWarn, detail: path + " not found; the existing index is used"}
	default:
		return check{name: "Document", status: statusFail, detail: path + " not found"}
	}
}

func indexCheck(dir string) (check, bool) {
	exists, err := vectordb.Exists(dir)
	if err != nil {
		return check{name: "Index", status: statusFail, detail: err.Error()}, false
	}
	if !exists {
		return check{name: "Index", status: statusWarn, detail: dir + " not built yet; it is built on first start"}, false
	}
	m, err := vectordb.ReadManifest(dir)
	if err != nil {
		if errors.Is(err, vectordb.ErrIndexNotFound) {
			return check{name: "Index", status: statusFail, detail: dir + " exists but holds no index"}, false
		}
		return check{name: "Index", status: statusFail, detail: err.Error()}, false
	}
	return check{
		name:   "Index",
		status: statusPass,
		detail: fmt.Sprintf("%s (%s, %d records, %s/%s)", dir, m.Format, m.Records, m.EmbedderProvider, m.EmbedderModel),
	}, true
}

func reportChecks(w io.Writer, checks []check) error {
	failed := 0
	for _, c := range checks {
		mark := passStyle
		switch c.status {
		case statusWarn:
			mark = warnStyle
		case statusFail:
			mark = failStyle
			failed++
		}
		if _, err := fmt.Fprintf(w, "%s %s: %s\n", mark.String(), c.name, c.detail); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
