package ui

import (
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column.
type Column struct {
	Title string
	Width int
}

// Row is a slice of cell values.
type Row []string

// Table renders a lipgloss-styled table.
type Table struct {
	Columns []Column
	Rows    []Row
	SelIdx  int // selected row index (-1 = none)
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols, SelIdx: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// Render returns the full table as a string. Cells are padded by hand to
// exact column widths; lipgloss Width wraps overlong content instead.
func (t *Table) Render() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)

	var headers []string
	for _, col := range t.Columns {
		headers = append(headers, headerStyle.Render(fit(col.Title, col.Width)))
	}
	sb.WriteString(strings.Join(headers, " ") + "\n")

	var div []string
	for _, col := range t.Columns {
		div = append(div, StyleMeta.Render(strings.Repeat("-", col.Width)))
	}
	sb.WriteString(strings.Join(div, " ") + "\n")

	for i, row := range t.Rows {
		var cells []string
		for j, col := range t.Columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			if i == t.SelIdx {
				cells = append(cells, StyleSelected.Render(fit(val, col.Width)))
			} else {
				cells = append(cells, cellStyle.Render(fit(val, col.Width)))
			}
		}
		sb.WriteString(strings.Join(cells, " ") + "\n")
	}
	return sb.String()
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title) + "\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		sb.WriteString("  " + key + " " + StyleValue.Render(p[1]) + "\n")
	}
	return StyleBorder.Render(sb.String())
}

// ReportTable renders a run report: one row per action, then failure
// details and a summary line.
func ReportTable(rep *suite.Report) string {
	t := NewTable([]Column{
		{Title: "ACTION", Width: 38},
		{Title: "RESULT", Width: 6},
		{Title: "TIME", Width: 8},
		{Title: "DETAIL", Width: 44},
	})
	for _, r := range rep.Results {
		t.AddRow(Row{r.Name, resultWord(r), r.Duration().String(), detail(r)})
	}

	var sb strings.Builder
	sb.WriteString(t.Render())
	for _, r := range rep.Results {
		if r.Passed {
			continue
		}
		sb.WriteString("\n" + Err(r.Name) + "\n")
		if r.Error != "" {
			sb.WriteString("    " + r.Error + "\n")
		}
		for _, f := range r.Failures {
			sb.WriteString("    " + Meta("assert: ") + f + "\n")
		}
	}
	sb.WriteString("\n" + Summary(rep) + "\n")
	return sb.String()
}

// Summary is the one-line pass/fail count.
func Summary(rep *suite.Report) string {
	line := fmt.Sprintf("%d passed, %d failed  ·  run %s", rep.Passed, rep.Failed, rep.RunID)
	if rep.OK() {
		return Success(line)
	}
	return Err(line)
}

func resultWord(r suite.Result) string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

func detail(r suite.Result) string {
	switch {
	case r.Error != "":
		return trimTo(r.Error, 44)
	case len(r.Failures) > 0:
		return fmt.Sprintf("%d assertion(s) failed", len(r.Failures))
	case r.ExpectRevert:
		return trimTo("reverted: "+r.Reason, 44)
	}
	return ""
}

// fit pads or cuts s to exactly width runes.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// trimTo shortens s to at most n runes, marking the cut with an ellipsis.
func trimTo(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n < 1 {
		return ""
	}
	return string(r[:n-1]) + "…"
}
