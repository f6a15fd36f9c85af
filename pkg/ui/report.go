package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"fcsync/pkg/models"
	"fcsync/pkg/syncer"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var reportHeaders = []string{"Channel", "Tier", "Posts", "Unchanged", "Hidden", "Files", "Existing", "Failed", "Checkpoint", "Status"}

// numeric columns are right aligned
var numericColumns = map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true}

// RenderReport writes a per-channel table and a one-line summary of a run
func RenderReport(w io.Writer, report *syncer.Report) {
	if report == nil {
		return
	}

	if len(report.Results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No channels synced"))
	} else {
		fmt.Fprintln(w, titleStyle.Render("Sync report"))
		fmt.Fprintln(w, ReportTable(report.Results))
	}

	fmt.Fprintln(w, Summary(report))
}

// ReportTable renders one row per channel result
func ReportTable(results []models.SyncResult) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, reportRow(res))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(reportHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == len(reportHeaders)-1 && row >= 0 && row < len(results) {
				if results[row].OK() {
					return successStyle.Padding(0, 1)
				}
				return errorStyle.Padding(0, 1)
			}
			if numericColumns[col] {
				return numberStyle
			}
			return cellStyle
		})

	return t.String()
}

func reportRow(res models.SyncResult) []string {
	checkpoint := "-"
	if res.Checkpoint.LastSynced != nil {
		checkpoint = models.FormatTimestamp(*res.Checkpoint.LastSynced)
	}

	status := "ok"
	if !res.OK() {
		status = "failed: " + truncate(res.Err.Error(), 48)
	}

	return []string{
		channelLabel(res.Channel),
		string(res.Channel.Tier),
		strconv.Itoa(res.Materialized),
		strconv.Itoa(res.Unchanged),
		strconv.Itoa(res.Hidden),
		strconv.Itoa(res.Downloaded),
		strconv.Itoa(res.Skipped),
		strconv.Itoa(res.FailedDownloads),
		checkpoint,
		status,
	}
}

// Summary renders the totals line of a report
func Summary(report *syncer.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d channel(s) synced, %d failed, %d post(s) written, %d unchanged",
		report.Succeeded(), report.Failed(), report.Materialized(), report.Unchanged())

	if report.Aborted {
		b.WriteString("; run aborted")
		if report.InProgress != nil {
			fmt.Fprintf(&b, " during %s", channelLabel(*report.InProgress))
		}
		return errorStyle.Render(b.String())
	}
	if report.Failed() > 0 {
		return warningStyle.Render(b.String())
	}
	return successStyle.Render(b.String())
}

func channelLabel(c models.Channel) string {
	if c.Name == "" {
		return fmt.Sprintf("#%d", c.ID)
	}
	return fmt.Sprintf("%s (#%d)", c.Name, c.ID)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
