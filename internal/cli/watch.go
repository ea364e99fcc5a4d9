package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/console"
	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/realtime"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live service and project changes from the gateway",
	Long: `Watch connects to the gateway's event stream and prints every service
status change, job result, and project lifecycle transition as it happens.
While the stream is down it falls back to polling.

Commands while watching:
  s<enter>  print a full snapshot
  c<enter>  dismiss resolved errors
  q<enter>  quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		listener := realtime.NewListener(client.EventsURL(activeEnvironmentID()), appLog)
		session := console.NewSession(client, reg, tracker, listener, appLog,
			console.WithPollInterval(cfg.PollInterval))
		go listener.Run(ctx)
		go session.Run(ctx)

		fmt.Println(style.Title.Render("Orbit Watch") + " " + style.Subtitle.Render("("+targetLabel()+")"))
		fmt.Println(style.DimText.Render("commands: [s]napshot  [c]lear errors  [q]uit"))

		lines := make(chan string)
		go readCommands(lines)

		w := newWatchView()
		for {
			select {
			case <-ctx.Done():
				fmt.Println(style.DimText.Render("watch stopped"))
				return nil
			case <-session.Changed():
				w.printChanges(session)
			case line, ok := <-lines:
				if !ok {
					lines = nil
					continue
				}
				switch line {
				case "q", "quit", "exit":
					stop()
				case "s", "snapshot":
					w.printSnapshot(session)
				case "c", "clear":
					clearErrors()
					fmt.Println(style.DimText.Render("resolved errors dismissed"))
				case "":
				default:
					fmt.Println(style.DimText.Render("unknown command " + line + " (s, c, q)"))
				}
			}
		}
	},
}

// readCommands forwards stdin lines to the watch loop. It exits when stdin
// closes; the process teardown reaps it otherwise.
func readCommands(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
	}
	close(lines)
}

// watchView remembers the previously rendered state so each change can be
// printed as a single appended line.
type watchView struct {
	primed        bool
	streamState   string
	serviceStatus map[string]string
	serviceErrors map[string]string
	pendingByJob  map[string]domain.PendingJob
	projectStage  map[string]string
}

func newWatchView() *watchView {
	return &watchView{
		serviceStatus: make(map[string]string),
		serviceErrors: make(map[string]string),
		pendingByJob:  make(map[string]domain.PendingJob),
		projectStage:  make(map[string]string),
	}
}

// printChanges diffs the session state against the last render and appends a
// line per transition. The first call prints a full snapshot instead.
func (w *watchView) printChanges(session *console.Session) {
	if !w.primed {
		w.printSnapshot(session)
		w.primed = true
		return
	}

	now := time.Now().Format("15:04:05")
	stamp := style.DimText.Render(now)

	if state := session.RealtimeState(); state != w.streamState {
		w.streamState = state
		fmt.Printf("%s %s stream %s\n", stamp, style.StreamDot(state), state)
	}

	seen := make(map[string]bool)
	for _, svc := range reg.Services() {
		seen[svc.Name] = true
		if prev, ok := w.serviceStatus[svc.Name]; !ok || prev != svc.Status {
			w.serviceStatus[svc.Name] = svc.Status
			if ok {
				fmt.Printf("%s %s %s: %s → %s\n", stamp, style.ServiceDot(svc.Status), style.Bold.Render(svc.Name), prev, svc.Status)
			} else {
				fmt.Printf("%s %s %s appeared (%s)\n", stamp, style.ServiceDot(svc.Status), style.Bold.Render(svc.Name), svc.Status)
			}
		}
		msg := reg.ServiceError(svc.Name)
		if msg != "" && w.serviceErrors[svc.Name] != msg {
			w.serviceErrors[svc.Name] = msg
			fmt.Printf("%s %s %s: %s\n", stamp, style.StageFailed.Render("✗"), svc.Name, msg)
		}
		if msg == "" {
			delete(w.serviceErrors, svc.Name)
		}
	}
	for name := range w.serviceStatus {
		if !seen[name] {
			delete(w.serviceStatus, name)
			fmt.Printf("%s %s %s removed\n", stamp, style.DotDim, style.Bold.Render(name))
		}
	}

	pending := make(map[string]bool)
	for _, job := range reg.PendingJobs() {
		pending[job.JobID] = true
		if _, ok := w.pendingByJob[job.JobID]; !ok {
			w.pendingByJob[job.JobID] = job
			fmt.Printf("%s %s %s %s started %s\n", stamp, style.StageRunning.Render("●"), job.Action, style.Bold.Render(job.Service), style.DimText.Render("(job "+job.JobID+")"))
		}
	}
	for id, job := range w.pendingByJob {
		if !pending[id] {
			delete(w.pendingByJob, id)
			fmt.Printf("%s %s %s %s finished\n", stamp, style.StageDone.Render("●"), job.Action, style.Bold.Render(job.Service))
		}
	}

	current := make(map[string]bool)
	for _, view := range session.Projects() {
		stage := view.Status
		if stage == "" {
			stage = domain.ProvisionStatusReady
		}
		current[view.Slug] = true
		if prev, ok := w.projectStage[view.Slug]; !ok || prev != stage {
			w.projectStage[view.Slug] = stage
			fmt.Printf("%s %s %s: %s\n", stamp, style.StageStyle(stage).Render("●"), style.Bold.Render(view.Slug), strings.ReplaceAll(stage, "_", " "))
			if view.Failed() && view.Error != "" {
				fmt.Printf("%s   %s\n", stamp, style.Unhealthy.Render(view.Error))
			}
		}
	}
	for slug := range w.projectStage {
		if !current[slug] {
			delete(w.projectStage, slug)
			fmt.Printf("%s %s %s removed\n", stamp, style.DotDim, style.Bold.Render(slug))
		}
	}
}

// printSnapshot renders the full tables and seeds the diff state.
func (w *watchView) printSnapshot(session *console.Session) {
	fmt.Println()
	renderServices(os.Stdout)
	renderProjects(os.Stdout, session.Projects(), session.TLD())

	state := session.RealtimeState()
	fmt.Println(style.DimText.Render(fmt.Sprintf("%d/%d running · stream %s",
		reg.ServicesRunning(), reg.ServicesTotal(), state)))
	fmt.Println()

	w.streamState = state
	w.serviceStatus = make(map[string]string)
	w.serviceErrors = make(map[string]string)
	for _, svc := range reg.Services() {
		w.serviceStatus[svc.Name] = svc.Status
		if msg := reg.ServiceError(svc.Name); msg != "" {
			w.serviceErrors[svc.Name] = msg
		}
	}
	w.pendingByJob = make(map[string]domain.PendingJob)
	for _, job := range reg.PendingJobs() {
		w.pendingByJob[job.JobID] = job
	}
	w.projectStage = make(map[string]string)
	for _, view := range session.Projects() {
		stage := view.Status
		if stage == "" {
			stage = domain.ProvisionStatusReady
		}
		w.projectStage[view.Slug] = stage
	}
}

// clearErrors dismisses every resolved job error and failed lifecycle entry.
func clearErrors() {
	for _, svc := range reg.Services() {
		reg.ClearServiceError(svc.Name)
	}
	for _, entry := range tracker.Creating() {
		if entry.Status == domain.ProvisionStatusFailed {
			tracker.ClearProject(entry.Slug)
		}
	}
	for _, entry := range tracker.Deleting() {
		if entry.Status == domain.DeletionStatusFailed {
			tracker.ClearDeletion(entry.Slug)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
