package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show console and gateway versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(style.Key.Render("Console") + style.Val.Render(buildVersion))
		fmt.Println(style.Key.Render("Go") + style.Val.Render(runtime.Version()))

		ctx, cancel := commandContext()
		defer cancel()
		if health, err := client.Health(ctx); err == nil {
			fmt.Println(style.Key.Render("Gateway") + style.Val.Render(client.BaseURL()+" ("+health+")"))
		} else {
			fmt.Println(style.Key.Render("Gateway") + style.DimText.Render(client.BaseURL()+" (unreachable)"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
