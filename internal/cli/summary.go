package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/burnup/internal/engine"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

func line(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func dayRange(from, to time.Time) string {
	if from.IsZero() {
		return "-"
	}
	return model.FormatDay(from) + " .. " + model.FormatDay(to)
}

// RenderRunSummary renders the outcome of a reconstruction run.
func RenderRunSummary(scope string, stats *engine.Stats) string {
	var b strings.Builder
	line(&b, "Scope", scope)
	line(&b, "Mode", string(stats.Mode))
	line(&b, "Days", fmt.Sprintf("%d (%s)", stats.Days, dayRange(stats.Start, stats.End)))
	line(&b, "Rows", fmt.Sprintf("%d", stats.Rows))
	if stats.RunID != "" {
		line(&b, "Run", SubtleStyle.Render(stats.RunID))
	}
	line(&b, "Duration", stats.Duration.Round(time.Millisecond).String())

	counts := stats.SkipCounts()
	if len(counts) > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Skipped or degraded item-days:"))
		b.WriteString("\n")
		for _, reason := range stats.SortedReasons() {
			fmt.Fprintf(&b, "  • %s: %d\n", reason, counts[reason])
		}
	}

	return RenderBox("Reconstruction Complete", strings.TrimRight(b.String(), "\n"))
}

// RenderReportSummary renders the outcome of a report run and the files written.
func RenderReportSummary(scope string, stats *engine.ReportStats, files []string) string {
	var b strings.Builder
	line(&b, "Scope", scope)
	line(&b, "Mode", string(stats.Mode))
	line(&b, "Days", fmt.Sprintf("%d (%s)", stats.Days, dayRange(stats.From, stats.To)))
	line(&b, "Rows", fmt.Sprintf("%d", stats.Rows))
	line(&b, "Aggregates", fmt.Sprintf("%d", stats.Aggregates))
	if stats.Unassigned > 0 {
		line(&b, "Unassigned", WarningStyle.Render(fmt.Sprintf("%d", stats.Unassigned)))
	}
	if len(files) > 0 {
		b.WriteString("\n")
		for _, f := range files {
			b.WriteString(FormatSuccess(f))
			b.WriteString("\n")
		}
	}

	return RenderBox("Report Complete", strings.TrimRight(b.String(), "\n"))
}

// RenderScopeStatus renders what is stored for a scope.
func RenderScopeStatus(scope string, status *engine.ScopeStatus) string {
	var b strings.Builder
	line(&b, "Scope", scope)
	if status.HasSnapshots {
		line(&b, "Snapshots", "through "+model.FormatDay(status.SnapshotsThrough))
	} else {
		line(&b, "Snapshots", SubtleStyle.Render("none"))
	}
	if status.HasReport {
		line(&b, "Report", "through "+model.FormatDay(status.ReportThrough))
	} else {
		line(&b, "Report", SubtleStyle.Render("none"))
	}

	if run := status.LastRun; run != nil {
		state := run.Status
		switch run.Status {
		case service.RunStatusFailed:
			state = ErrorStyle.Render(state)
		case service.RunStatusRunning:
			state = WarningStyle.Render(state)
		}
		line(&b, "Last run", fmt.Sprintf("%s %s, %s", run.Mode, state, run.StartedAt.Format(time.RFC3339)))
		line(&b, "Run", SubtleStyle.Render(run.ID))
		line(&b, "Days", fmt.Sprintf("%d (%d rows)", run.Days, run.RowsWritten))
	} else {
		line(&b, "Last run", SubtleStyle.Render("never"))
	}

	return RenderBox("Scope Status", strings.TrimRight(b.String(), "\n"))
}

// RenderTrace renders the replay of one item.
func RenderTrace(trace *engine.Trace) string {
	var b strings.Builder
	title := trace.Item.Title
	if title == "" {
		title = SubtleStyle.Render("(unknown item)")
	}
	line(&b, "Item", fmt.Sprintf("%d %s", trace.Item.ID, title))
	line(&b, "Day", model.FormatDay(trace.Day))

	ids := make([]string, 0, len(trace.Memberships))
	for _, id := range trace.Memberships {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	line(&b, "Members of", strings.Join(ids, ", "))

	if trace.Outcome.Skipped() {
		line(&b, "Snapshot", WarningStyle.Render("skipped: "+string(trace.Outcome.Skip)))
	} else {
		snap := trace.Snapshot
		line(&b, "Project", fmt.Sprintf("%s (%d)", snap.Project, snap.CategoryID))
		line(&b, "Status", snap.Status)
		line(&b, "Points", fmt.Sprintf("%d", snap.Points))
		if snap.Column != "" {
			line(&b, "Column", snap.Column)
		}
		if snap.MaintType != "" {
			line(&b, "Type", snap.MaintType)
		}
		category := trace.Category
		if category == "" {
			category = WarningStyle.Render("no rule matches")
		}
		line(&b, "Category", category)
		stored := "no"
		if trace.Stored {
			stored = "yes"
		}
		line(&b, "Stored", stored)
	}
	for _, w := range trace.Outcome.Warnings {
		line(&b, "Warning", WarningStyle.Render(string(w)))
	}

	if len(trace.History) > 0 {
		b.WriteString("\n")
		for _, ev := range trace.History {
			fmt.Fprintf(&b, "  • %s %s = %s\n", ev.Timestamp.Format("2006-01-02 15:04"), ev.Attribute, ev.NewValue)
		}
	}

	return RenderBox("Item Trace", strings.TrimRight(b.String(), "\n"))
}

// RenderMembers renders the members of one category on a day.
func RenderMembers(categoryID int64, day time.Time, members []engine.Member) string {
	var b strings.Builder
	if len(members) == 0 {
		b.WriteString(SubtleStyle.Render("no members"))
	}
	for _, m := range members {
		marker := " "
		if !m.InScope {
			marker = SubtleStyle.Render("-")
		}
		fmt.Fprintf(&b, "%s %6d  %s\n", marker, m.Item.ID, m.Item.Title)
	}
	title := fmt.Sprintf("Category %d on %s (%d items)", categoryID, model.FormatDay(day), len(members))
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}
