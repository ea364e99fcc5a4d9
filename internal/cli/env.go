package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
	"github.com/hardimpactdev/orbit-console/internal/state"
)

var (
	flagEnvURL    string
	flagEnvRemote bool
	flagEnvToken  bool
)

func init() {
	envAddCmd.Flags().StringVar(&flagEnvURL, "url", "", "gateway base URL")
	envAddCmd.Flags().BoolVar(&flagEnvRemote, "remote", false, "mark the environment as remote")
	envAddCmd.Flags().BoolVar(&flagEnvToken, "token", false, "prompt for an access token")
	envCmd.AddCommand(envAddCmd, envListCmd, envUseCmd, envRemoveCmd)
	rootCmd.AddCommand(envCmd)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage registered environments",
}

var envAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("environment name cannot be empty")
		}
		if strings.TrimSpace(flagEnvURL) == "" {
			return errors.New("--url is required")
		}

		env := domain.Environment{
			ID:         uuid.NewString(),
			Name:       name,
			GatewayURL: strings.TrimSpace(flagEnvURL),
			Kind:       domain.EnvironmentKindLocal,
			AddedAt:    time.Now().UTC(),
		}
		if flagEnvRemote {
			env.Kind = domain.EnvironmentKindRemote
		}
		if flagEnvToken {
			token, err := promptToken()
			if err != nil {
				return err
			}
			env.Token = token
		}

		if err := doc.AddEnvironment(env); err != nil {
			return err
		}
		fmt.Printf("%s environment %s registered\n", style.DotHealthy, style.Bold.Render(name))
		if doc.ActiveEnvironment == env.ID {
			fmt.Println(style.DimText.Render("now active"))
		}
		return nil
	},
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(doc.Environments) == 0 {
			fmt.Println(style.DimText.Render("no environments registered; add one with 'orbit env add'"))
			return nil
		}

		reachable := probeEnvironments(cmd, doc.Environments)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, " \t"+
			style.TableHeader.Render("NAME")+"\t"+
			style.TableHeader.Render("KIND")+"\t"+
			style.TableHeader.Render("GATEWAY")+"\t"+
			style.TableHeader.Render("STATUS")+"\t"+
			style.TableHeader.Render("ADDED"))
		for _, env := range doc.Environments {
			marker := " "
			if env.ID == doc.ActiveEnvironment {
				marker = style.DotHealthy
			}
			status := style.Unhealthy.Render("offline")
			if reachable[env.ID] {
				status = style.Healthy.Render("online")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				marker,
				style.Bold.Render(env.Name),
				env.Kind,
				env.GatewayURL,
				status,
				env.AddedAt.Format("2006-01-02"),
			)
		}
		return w.Flush()
	},
}

// probeEnvironments health-checks every gateway concurrently so the listing
// can show which ones are reachable right now.
func probeEnvironments(cmd *cobra.Command, envs []state.Environment) map[string]bool {
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()

	reachable := make(map[string]bool, len(envs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, env := range envs {
		wg.Add(1)
		go func(env state.Environment) {
			defer wg.Done()
			var opts []gateway.Option
			if env.Token != "" {
				opts = append(opts, gateway.WithToken(env.Token))
			}
			opts = append(opts, gateway.WithHTTPClient(&http.Client{Timeout: 3 * time.Second}))
			probe, err := gateway.New(env.GatewayURL, opts...)
			if err != nil {
				return
			}
			if _, err := probe.Health(ctx); err != nil {
				return
			}
			mu.Lock()
			reachable[env.ID] = true
			mu.Unlock()
		}(env)
	}
	wg.Wait()
	return reachable
}

var envUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the active environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doc.SetActive(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s active environment set to %s\n", style.DotHealthy, style.Bold.Render(args[0]))
		return nil
	},
}

var envRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !doc.RemoveEnvironment(args[0]) {
			return fmt.Errorf("unknown environment %q", args[0])
		}
		fmt.Printf("environment %s removed\n", style.Bold.Render(args[0]))
		return nil
	},
}

func promptToken() (string, error) {
	fmt.Print("Access token: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(bytes)), nil
}
