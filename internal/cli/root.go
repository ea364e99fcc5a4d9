// Package cli implements the orbit command tree. The root command wires the
// shared pieces every subcommand uses: configuration, the state file, the
// gateway client, and the service registry restored from the last saved
// snapshot.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/config"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
	"github.com/hardimpactdev/orbit-console/internal/provision"
	"github.com/hardimpactdev/orbit-console/internal/registry"
	"github.com/hardimpactdev/orbit-console/internal/state"
	"github.com/hardimpactdev/orbit-console/pkg/logger"
)

var buildVersion = "dev"

var (
	flagGateway  string
	flagEnv      string
	flagLogLevel string

	cfg     config.ConsoleConfig
	appLog  *slog.Logger
	store   *state.Store
	doc     state.File
	client  *gateway.Client
	reg     *registry.Registry
	tracker *provision.Tracker

	active    state.Environment
	hasActive bool
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Console for Orbit development environments",
	Long: `Orbit console manages the services and projects of a local or
remote development environment from one place.

Register environments with 'orbit env add', then inspect services,
dispatch actions, and follow provisioning live with 'orbit watch'.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: persist,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagGateway, "gateway", "", "gateway base URL (overrides the active environment)")
	rootCmd.PersistentFlags().StringVarP(&flagEnv, "env", "e", "", "environment name or id to target")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug|info|warn|error)")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg = config.LoadConsoleConfig()
	level := logger.ParseLevel(valueOr(flagLogLevel, cfg.LogLevel))
	if cfg.LogFormat == "json" {
		appLog = logger.New("orbit", level)
	} else {
		appLog = logger.NewText("orbit", level)
	}
	if cfg.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	var err error
	if cfg.StatePath != "" {
		store = state.NewAt(cfg.StatePath, appLog)
	} else if store, err = state.New(appLog); err != nil {
		return err
	}
	if doc, err = store.Load(); err != nil {
		return err
	}

	ref := valueOr(flagEnv, doc.ActiveEnvironment)
	if ref != "" {
		active, hasActive = doc.Environment(ref)
		if !hasActive && flagEnv != "" {
			return fmt.Errorf("unknown environment %q", flagEnv)
		}
	}

	baseURL := valueOr(flagGateway, cfg.GatewayURL, active.GatewayURL, gateway.DefaultBaseURL)
	var opts []gateway.Option
	if token := valueOr(cfg.Token, active.Token); token != "" {
		opts = append(opts, gateway.WithToken(token))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, gateway.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	}
	if client, err = gateway.New(baseURL, opts...); err != nil {
		return err
	}

	reg = registry.New(appLog)
	reg.RestoreCaches(doc.Caches())
	if hasActive {
		reg.SetActiveEnvironment(active.ID)
	} else {
		// Ad-hoc target: cached under its URL, never persisted.
		reg.SetActiveEnvironment(client.BaseURL())
	}
	tracker = provision.New(appLog)
	return nil
}

// persist writes refreshed snapshots back to the state file. Commands mutate
// doc directly; this is the single save point.
func persist(cmd *cobra.Command, args []string) {
	if store == nil || reg == nil {
		return
	}
	doc.SetCaches(reg.ExportCaches())
	if err := store.Save(doc); err != nil {
		appLog.Warn("state save failed", "error", err)
	}
}

func valueOr(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func activeEnvironmentID() string {
	if hasActive {
		return active.ID
	}
	return ""
}

// commandContext bounds one-shot commands; watch builds its own.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
