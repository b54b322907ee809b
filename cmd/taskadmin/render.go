package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventbus"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			PaddingRight(2)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyles = map[taskdomain.Status]lipgloss.Style{
		taskdomain.StatusCreated:   cellStyle.Foreground(lipgloss.Color("33")),
		taskdomain.StatusAssigned:  cellStyle.Foreground(lipgloss.Color("214")),
		taskdomain.StatusCompleted: cellStyle.Foreground(lipgloss.Color("42")),
		taskdomain.StatusDeleted:   cellStyle.Foreground(lipgloss.Color("196")),
	}
)

var taskColumns = []string{"ID", "NAME", "STATUS", "ASSIGNEE", "GROUP", "OWNER", "UPDATED", "VERSION"}

// renderTasks lays tasks out as an aligned table.
func renderTasks(tasks []*taskapp.ReadModel) string {
	if len(tasks) == 0 {
		return placeholderStyle.Render("No tasks")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID.String(),
			t.Name,
			string(t.Status),
			valueOrDash(t.Assignee),
			valueOrDash(t.Group),
			t.Owner,
			t.UpdatedAt.UTC().Format(timeLayout),
			fmt.Sprint(t.Version),
		})
	}

	return renderTable(taskColumns, rows, func(row, col int) lipgloss.Style {
		if col == 2 {
			if style, ok := statusStyles[tasks[row].Status]; ok {
				return style
			}
		}
		return cellStyle
	})
}

var deadLetterColumns = []string{"FAILED", "EVENT", "TASK", "VERSION", "ERROR"}

// renderDeadLetters lists parked events, newest first.
func renderDeadLetters(total int64, letters []eventbus.DeadLetter) string {
	title := titleStyle.Render(fmt.Sprintf("dead letters: %d", total))
	if len(letters) == 0 {
		return title
	}

	rows := make([][]string, 0, len(letters))
	for _, l := range letters {
		rows = append(rows, []string{
			l.FailedAt.UTC().Format(timeLayout),
			l.EventType,
			l.AggregateID,
			fmt.Sprint(l.Version),
			l.Error,
		})
	}
	return title + "\n" + renderTable(deadLetterColumns, rows, func(int, int) lipgloss.Style { return cellStyle })
}

// renderTable aligns rows under columns. styleFor picks the style of a body cell.
func renderTable(columns []string, rows [][]string, styleFor func(row, col int) lipgloss.Style) string {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, renderRow(columns, widths, func(int) lipgloss.Style { return headerStyle }))
	for n, row := range rows {
		lines = append(lines, renderRow(row, widths, func(col int) lipgloss.Style { return styleFor(n, col) }))
	}
	return strings.Join(lines, "\n")
}

func renderRow(cells []string, widths []int, styleFor func(col int) lipgloss.Style) string {
	rendered := make([]string, len(cells))
	for i, cell := range cells {
		style := styleFor(i)
		rendered[i] = style.Width(widths[i] + style.GetHorizontalPadding()).Render(cell)
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), " ")
}

type summaryLine struct {
	label string
	count int
}

// renderSummary prints a titled list of counters.
func renderSummary(title string, lines ...summaryLine) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, l := range lines {
		fmt.Fprintf(&b, "\n  %-8s %d", l.label, l.count)
	}
	return b.String()
}

func valueOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
