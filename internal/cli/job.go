package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
)

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Inspect a service action job on the gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		job, err := client.Job(ctx, args[0])
		if errors.Is(err, gateway.ErrJobNotFound) {
			fmt.Println(style.DimText.Render("job " + args[0] + " is not tracked by the gateway (it may have expired)"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("look up job: %w", err)
		}

		fmt.Println(style.Key.Render("Job") + style.Val.Render(args[0]))
		switch job.Status {
		case gateway.JobCompleted:
			fmt.Println(style.Key.Render("Status") + style.Healthy.Render(job.Status))
		case gateway.JobFailed:
			fmt.Println(style.Key.Render("Status") + style.Unhealthy.Render(job.Status))
		default:
			fmt.Println(style.Key.Render("Status") + style.Val.Render(job.Status))
		}
		if job.Error != "" {
			fmt.Println(style.ErrorBox.Render(job.Error))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)
}
