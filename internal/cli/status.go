package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the active environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		fmt.Println(style.Title.Render("Orbit Status"))

		if hasActive {
			fmt.Println(style.Key.Render("Environment") + style.Val.Render(fmt.Sprintf("%s (%s)", active.Name, active.Kind)))
		} else {
			fmt.Println(style.Key.Render("Environment") + style.Val.Render("none registered"))
		}
		fmt.Println(style.Key.Render("Gateway") + style.Val.Render(client.BaseURL()))

		health, err := client.Health(ctx)
		if err != nil {
			fmt.Println(style.Key.Render("Health") + style.Unhealthy.Render("unreachable"))
			fmt.Println(style.DimText.Render("  " + err.Error()))
		} else {
			fmt.Println(style.Key.Render("Health") + style.Healthy.Render(health))
		}

		refreshServices(ctx)
		servicesLine := fmt.Sprintf("%d/%d running", reg.ServicesRunning(), reg.ServicesTotal())
		if reg.IsStale() {
			servicesLine += " (stale, " + formatAge(reg.LastUpdated(), time.Now()) + ")"
		}
		fmt.Println(style.Key.Render("Services") + style.Val.Render(servicesLine))

		if jobs := reg.PendingJobs(); len(jobs) > 0 {
			fmt.Println(style.Key.Render("Jobs") + style.Val.Render(fmt.Sprintf("%d pending", len(jobs))))
		}

		if list, err := client.Projects(ctx); err == nil {
			views := tracker.MergeProjects(list)
			ready, busy, failed := 0, 0, 0
			for _, view := range views {
				switch {
				case view.Busy():
					busy++
				case view.Failed():
					failed++
				default:
					ready++
				}
			}
			projectsLine := fmt.Sprintf("%d ready", ready)
			if busy > 0 {
				projectsLine += fmt.Sprintf(", %d in progress", busy)
			}
			if failed > 0 {
				projectsLine += fmt.Sprintf(", %d failed", failed)
			}
			fmt.Println(style.Key.Render("Projects") + style.Val.Render(projectsLine))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
