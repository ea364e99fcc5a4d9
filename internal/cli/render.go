package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hardimpactdev/orbit-console/internal/cli/style"
	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/provision"
)

// refreshServices fetches a fresh snapshot, falling back to the cached one
// when the gateway is unreachable.
func refreshServices(ctx context.Context) {
	if err := reg.FetchServices(ctx, client); err != nil {
		age := formatAge(reg.LastUpdated(), time.Now())
		fmt.Println(style.Warning.Render(fmt.Sprintf("gateway unreachable, showing cached snapshot (%s): %v", age, err)))
	}
}

func renderServices(w io.Writer) {
	services := reg.Services()
	if len(services) == 0 {
		fmt.Fprintln(w, style.DimText.Render("no services known; is the gateway running?"))
		return
	}

	pending := make(map[string]domain.PendingJob)
	for _, job := range reg.PendingJobs() {
		if !job.Resolved() {
			pending[job.Service] = job
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " \t"+
		style.TableHeader.Render("SERVICE")+"\t"+
		style.TableHeader.Render("STATUS")+"\t"+
		style.TableHeader.Render("TYPE")+"\t"+
		style.TableHeader.Render("HEALTH")+"\t"+
		style.TableHeader.Render("CONTAINER"))
	for _, svc := range services {
		status := svc.Status
		if job, ok := pending[svc.Name]; ok {
			status = style.StageRunning.Render(job.Action + "…")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			style.ServiceDot(svc.Status),
			style.Bold.Render(svc.Name),
			status,
			style.TypeBadge.Render(svc.Type),
			svc.Health,
			svc.Container,
		)
	}
	tw.Flush()

	for _, svc := range services {
		if msg := reg.ServiceError(svc.Name); msg != "" {
			fmt.Fprintf(w, "  %s %s: %s\n", style.StageFailed.Render("✗"), svc.Name, msg)
		}
	}
}

func renderProjects(w io.Writer, views []provision.ProjectView, tld string) {
	if len(views) == 0 {
		fmt.Fprintln(w, style.DimText.Render("no projects"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, style.TableHeader.Render("NAME")+"\t"+
		style.TableHeader.Render("SLUG")+"\t"+
		style.TableHeader.Render("STATUS")+"\t"+
		style.TableHeader.Render("PHP")+"\t"+
		style.TableHeader.Render("URL"))
	for _, view := range views {
		name := view.Name
		if name == "" {
			name = view.Slug
		}
		status := style.StageDone.Render("ready")
		if view.Status != "" {
			status = style.StageStyle(view.Status).Render(view.Status)
		}
		url := view.URL
		if url == "" && tld != "" && !view.Placeholder {
			url = fmt.Sprintf("https://%s.%s", view.Slug, tld)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			style.Bold.Render(name),
			view.Slug,
			status,
			view.PHPVersion,
			url,
		)
	}
	tw.Flush()

	for _, view := range views {
		if view.Failed() && view.Error != "" {
			fmt.Fprintf(w, "  %s %s: %s\n", style.StageFailed.Render("✗"), view.Slug, view.Error)
		}
	}
}

// formatAge renders how long ago a snapshot was taken.
func formatAge(t *time.Time, now time.Time) string {
	if t == nil {
		return "never fetched"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func targetLabel() string {
	if hasActive {
		return active.Name
	}
	return client.BaseURL()
}
