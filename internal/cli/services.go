package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List services managed by the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		refreshServices(ctx)

		fmt.Println(style.Title.Render("Services") + " " + style.Subtitle.Render("("+targetLabel()+")"))
		renderServices(os.Stdout)

		summary := fmt.Sprintf("%d/%d running", reg.ServicesRunning(), reg.ServicesTotal())
		if reg.IsStale() {
			summary += " · " + style.Warning.Render("snapshot is stale ("+formatAge(reg.LastUpdated(), time.Now())+")")
		}
		fmt.Println(style.DimText.Render(summary))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
