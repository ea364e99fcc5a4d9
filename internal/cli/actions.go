package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
)

const jobPollInterval = 2 * time.Second

// newActionCommand builds start/stop/restart, which accept either a service
// name or --all.
func newActionCommand(action string) *cobra.Command {
	var all bool
	var wait bool

	cmd := &cobra.Command{
		Use:   action + " [service]",
		Short: capitalize(action) + " a service, or every service with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if all {
				if len(args) > 0 {
					return errors.New("pass a service name or --all, not both")
				}
				result := reg.DispatchGlobal(ctx, client, action)
				if result.Error != "" {
					return fmt.Errorf("%s all: %s", action, result.Error)
				}
				fmt.Printf("%s %s dispatched for all services\n", style.Healthy.Render("✓"), action)
				if wait && result.JobID != "" {
					return waitForJob(ctx, result.JobID, action+" all")
				}
				return nil
			}

			if len(args) == 0 {
				return errors.New("service name required (or --all)")
			}
			return dispatchAction(ctx, args[0], action, wait)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "apply to every service")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the job to finish")
	return cmd
}

// newToggleCommand builds enable/disable, which always need a service name.
func newToggleCommand(action string) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   action + " <service>",
		Short: capitalize(action) + " a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			return dispatchAction(ctx, args[0], action, wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the job to finish")
	return cmd
}

func dispatchAction(ctx context.Context, name, action string, wait bool) error {
	svcType, err := resolveServiceType(ctx, name)
	if err != nil {
		return err
	}

	result := reg.Dispatch(ctx, client, name, action, svcType)
	if result.Error != "" {
		return fmt.Errorf("%s %s: %s", action, name, result.Error)
	}

	fmt.Printf("%s %s dispatched for %s", style.Healthy.Render("✓"), action, style.Bold.Render(name))
	if result.JobID != "" {
		fmt.Printf(" %s", style.DimText.Render("(job "+result.JobID+")"))
	}
	fmt.Println()

	if wait && result.JobID != "" {
		return waitForJob(ctx, result.JobID, action+" "+name)
	}
	return nil
}

// resolveServiceType looks the service up in the cached snapshot, fetching a
// fresh one when the cache does not know it yet.
func resolveServiceType(ctx context.Context, name string) (string, error) {
	if svc, ok := reg.Service(name); ok {
		return svc.Type, nil
	}
	if err := reg.FetchServices(ctx, client); err != nil {
		return "", fmt.Errorf("unknown service %q and gateway unreachable: %w", name, err)
	}
	if svc, ok := reg.Service(name); ok {
		return svc.Type, nil
	}
	return "", fmt.Errorf("unknown service %q (run 'orbit services' to list them)", name)
}

// waitForJob polls the gateway until the job reaches a terminal state.
func waitForJob(ctx context.Context, jobID, label string) error {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for %s: %w", label, ctx.Err())
		case <-ticker.C:
			job, err := client.Job(ctx, jobID)
			if errors.Is(err, gateway.ErrJobNotFound) {
				fmt.Println(style.Warning.Render("job " + jobID + " is no longer tracked by the gateway"))
				return nil
			}
			if err != nil {
				appLog.Warn("job poll failed", "job_id", jobID, "error", err)
				continue
			}
			switch job.Status {
			case gateway.JobCompleted:
				fmt.Printf("%s %s completed\n", style.Healthy.Render("✓"), label)
				return nil
			case gateway.JobFailed:
				msg := job.Error
				if msg == "" {
					msg = "job failed"
				}
				return fmt.Errorf("%s: %s", label, msg)
			}
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func init() {
	for _, action := range []string{domain.ActionStart, domain.ActionStop, domain.ActionRestart} {
		rootCmd.AddCommand(newActionCommand(action))
	}
	rootCmd.AddCommand(newToggleCommand(domain.ActionEnable))
	rootCmd.AddCommand(newToggleCommand(domain.ActionDisable))
}
