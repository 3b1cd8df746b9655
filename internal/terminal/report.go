package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"exboard/internal/exceptions"
	"exboard/internal/filters"
)

var headers = []string{"When", "Asset", "Rule", "Duration"}

type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Muted  lipgloss.Style
	Info   lipgloss.Style
	Error  lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e")),
		Info:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e")).Italic(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("#cf222e")).Bold(true),
	}
}

// Report renders a session's filters and results for the terminal.
type Report struct {
	Title     string
	Rules     []filters.Option
	Assets    []filters.Option
	Selection exceptions.Selection
	View      exceptions.View
}

func (r Report) Render(w io.Writer, styles Styles) error {
	var sb strings.Builder

	if r.Title != "" {
		sb.WriteString(styles.Title.Render(r.Title))
		sb.WriteString("\n")
	}
	sb.WriteString(styles.Muted.Render(fmt.Sprintf("Rule: %s   Asset: %s",
		selectedLabel(r.Rules, r.Selection.RuleID),
		selectedLabel(r.Assets, r.Selection.DeviceID),
	)))
	sb.WriteString("\n\n")

	switch {
	case r.View.Loading && r.View.LoadingText != "":
		// lookups never loaded
		sb.WriteString(styles.Error.Render(r.View.LoadingText))
		sb.WriteString("\n")
	case r.View.Notice != nil:
		style := styles.Info
		if r.View.Notice.Kind == exceptions.NoticeError {
			style = styles.Error
		}
		sb.WriteString(renderHeader(styles, columnWidths(nil)))
		sb.WriteString(style.Render(r.View.Notice.Text))
		sb.WriteString("\n")
	default:
		widths := columnWidths(r.View.Rows)
		sb.WriteString(renderHeader(styles, widths))
		for _, row := range r.View.Rows {
			cells := []string{row.When, row.Asset, row.Rule, row.Duration}
			for i, cell := range cells {
				sb.WriteString(styles.Cell.Width(widths[i]).Render(cell))
				if i < len(cells)-1 {
					sb.WriteString(styles.Muted.Render("|"))
				}
			}
			sb.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func renderHeader(styles Styles, widths []int) string {
	var sb strings.Builder
	total := len(headers) - 1
	for i, h := range headers {
		sb.WriteString(styles.Header.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(styles.Muted.Render("|"))
		}
		total += widths[i]
	}
	sb.WriteString("\n")
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")
	return sb.String()
}

// columnWidths includes the cell padding.
func columnWidths(rows []exceptions.Row) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range []string{row.When, row.Asset, row.Rule, row.Duration} {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}
	return widths
}

func selectedLabel(opts []filters.Option, id string) string {
	for _, o := range opts {
		if o.Value == id {
			return o.Label
		}
	}
	return id
}
