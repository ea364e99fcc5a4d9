package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/domain"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Group projects into named workspaces",
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(doc.Workspaces) == 0 {
			fmt.Println(style.DimText.Render("no workspaces defined; create one with 'orbit workspace set'"))
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, style.TableHeader.Render("NAME")+"\t"+style.TableHeader.Render("PROJECTS"))
		for _, ws := range doc.Workspaces {
			fmt.Fprintf(tw, "%s\t%s\n", style.Bold.Render(ws.Name), strings.Join(ws.Slugs, ", "))
		}
		return tw.Flush()
	},
}

var workspaceSetCmd = &cobra.Command{
	Use:   "set <name> <slug>...",
	Short: "Create or replace a workspace with the given project slugs",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := domain.Workspace{Name: args[0], Slugs: args[1:]}
		if err := doc.SetWorkspace(ws); err != nil {
			return err
		}
		fmt.Printf("%s workspace %s contains %d project(s)\n",
			style.Healthy.Render("✓"), style.Bold.Render(ws.Name), len(ws.Slugs))
		return nil
	},
}

var workspaceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a workspace (projects are untouched)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !doc.RemoveWorkspace(args[0]) {
			return fmt.Errorf("unknown workspace %q", args[0])
		}
		fmt.Printf("%s workspace %s removed\n", style.Healthy.Render("✓"), style.Bold.Render(args[0]))
		return nil
	},
}

func init() {
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceSetCmd)
	workspaceCmd.AddCommand(workspaceRemoveCmd)
	rootCmd.AddCommand(workspaceCmd)
}
