package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/console"
	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
	"github.com/hardimpactdev/orbit-console/internal/realtime"
)

var (
	flagWorkspace  string
	flagSlug       string
	flagPHP        string
	flagRepo       string
	flagCreateWait bool
	flagDeleteYes  bool
	flagDeleteWait bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List and manage projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectsList()
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with their provisioning state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectsList()
	},
}

func runProjectsList() error {
	ctx, cancel := commandContext()
	defer cancel()

	list, err := client.Projects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	views := tracker.MergeProjects(list)
	if flagWorkspace != "" {
		ws, ok := doc.Workspace(flagWorkspace)
		if !ok {
			return fmt.Errorf("unknown workspace %q", flagWorkspace)
		}
		filtered := views[:0]
		for _, view := range views {
			if ws.Contains(view.Slug) {
				filtered = append(filtered, view)
			}
		}
		views = filtered
	}

	title := "Projects"
	if flagWorkspace != "" {
		title += " · " + flagWorkspace
	}
	fmt.Println(style.Title.Render(title) + " " + style.Subtitle.Render("("+targetLabel()+")"))
	renderProjects(os.Stdout, views, list.TLD)
	return nil
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Provision a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		slug := flagSlug
		if slug == "" {
			slug = domain.Slugify(name)
		}
		if slug == "" {
			return fmt.Errorf("%q does not produce a usable slug; pass --slug", name)
		}

		ctx, cancel := commandContext()
		defer cancel()

		result, err := client.CreateProject(ctx, gateway.CreateProjectInput{
			Name:       name,
			Slug:       slug,
			PHPVersion: flagPHP,
			Repo:       flagRepo,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if !result.Success {
			msg := result.Error
			if msg == "" {
				msg = "gateway rejected the request"
			}
			return fmt.Errorf("create %s: %s", slug, msg)
		}
		if result.Slug != "" {
			slug = result.Slug
		}
		tracker.TrackProject(slug)

		fmt.Printf("%s project %s queued for provisioning\n", style.Healthy.Render("✓"), style.Bold.Render(slug))
		if !flagCreateWait {
			fmt.Println(style.DimText.Render("follow progress with 'orbit watch' or 'orbit projects create --wait'"))
			return nil
		}
		return followCreation(cmd.Context(), slug)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a project and its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		if !flagDeleteYes && !confirm(fmt.Sprintf("Delete project %s and all of its files?", slug)) {
			fmt.Println("aborted")
			return nil
		}

		ctx, cancel := commandContext()
		defer cancel()

		result, err := client.DeleteProject(ctx, slug)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		if !result.Success {
			msg := result.Error
			if msg == "" {
				msg = "gateway rejected the request"
			}
			return fmt.Errorf("delete %s: %s", slug, msg)
		}

		if result.Synchronous {
			tracker.MarkDeletionComplete(slug)
			fmt.Printf("%s project %s deleted\n", style.Healthy.Render("✓"), style.Bold.Render(slug))
			return nil
		}

		tracker.TrackDeletion(slug)
		fmt.Printf("%s deletion of %s started\n", style.Healthy.Render("✓"), style.Bold.Render(slug))
		if !flagDeleteWait {
			fmt.Println(style.DimText.Render("follow progress with 'orbit watch' or 'orbit projects delete --wait'"))
			return nil
		}
		return followDeletion(cmd.Context(), slug)
	},
}

// followCreation streams lifecycle transitions for a freshly created project
// until it becomes ready or fails.
func followCreation(parent context.Context, slug string) error {
	var last string
	err := follow(parent, slug, func(session *console.Session) (done bool, err error) {
		entry, tracked := tracker.Project(slug)
		if tracked {
			printStage(&last, entry.Status)
			if entry.Status == domain.ProvisionStatusReady {
				return true, nil
			}
			if entry.Status == domain.ProvisionStatusFailed {
				msg := entry.Error
				if msg == "" {
					msg = "provisioning failed"
				}
				return true, fmt.Errorf("create %s: %s", slug, msg)
			}
			return false, nil
		}
		// The tracker retires entries once the listing reports the project
		// as settled, so absence after tracking means it finished.
		for _, view := range session.Projects() {
			if view.Slug == slug && !view.Busy() && !view.Failed() {
				printStage(&last, domain.ProvisionStatusReady)
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	fmt.Println(style.SuccessBox.Render("project " + slug + " is ready"))
	return nil
}

// followDeletion streams deletion transitions until the project is gone or
// the gateway reports a failure.
func followDeletion(parent context.Context, slug string) error {
	var last string
	err := follow(parent, slug, func(session *console.Session) (done bool, err error) {
		entry, tracked := tracker.Deletion(slug)
		if tracked {
			printStage(&last, entry.Status)
			if entry.Status == domain.DeletionStatusDeleted {
				return true, nil
			}
			if entry.Status == domain.DeletionStatusFailed {
				msg := entry.Error
				if msg == "" {
					msg = "deletion failed"
				}
				return true, fmt.Errorf("delete %s: %s", slug, msg)
			}
			return false, nil
		}
		for _, view := range session.Projects() {
			if view.Slug == slug {
				return false, nil
			}
		}
		printStage(&last, domain.DeletionStatusDeleted)
		return true, nil
	})
	if err != nil {
		return err
	}
	fmt.Println(style.SuccessBox.Render("project " + slug + " deleted"))
	return nil
}

// follow runs a realtime session and invokes check after every state change
// until it reports completion or the timeout elapses.
func follow(parent context.Context, slug string, check func(*console.Session) (bool, error)) error {
	ctx, cancel := context.WithTimeout(parent, 10*time.Minute)
	defer cancel()

	listener := realtime.NewListener(client.EventsURL(activeEnvironmentID()), appLog)
	session := console.NewSession(client, reg, tracker, listener, appLog,
		console.WithPollInterval(2*time.Second))
	go listener.Run(ctx)
	go session.Run(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for %s: %w", slug, ctx.Err())
		case <-session.Changed():
		case <-ticker.C:
		}
		done, err := check(session)
		if done {
			return err
		}
	}
}

// printStage writes a lifecycle transition line, skipping repeats.
func printStage(last *string, status string) {
	if status == "" || status == *last {
		return
	}
	*last = status
	fmt.Printf("  %s %s\n", style.StageStyle(status).Render("●"), strings.ReplaceAll(status, "_", " "))
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func init() {
	projectsCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "limit the listing to a workspace")
	projectsCreateCmd.Flags().StringVar(&flagSlug, "slug", "", "slug override (derived from the name by default)")
	projectsCreateCmd.Flags().StringVar(&flagPHP, "php", "", "PHP version for the new project")
	projectsCreateCmd.Flags().StringVar(&flagRepo, "repo", "", "git repository to clone instead of a fresh skeleton")
	projectsCreateCmd.Flags().BoolVar(&flagCreateWait, "wait", false, "stream provisioning progress until the project is ready")
	projectsDeleteCmd.Flags().BoolVarP(&flagDeleteYes, "yes", "y", false, "skip the confirmation prompt")
	projectsDeleteCmd.Flags().BoolVar(&flagDeleteWait, "wait", false, "stream deletion progress until the project is gone")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}
