package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const maxCellWidth = 48

// Table renders rows as an aligned plain-text table. Widths are measured in
// terminal cells, so names containing wide characters stay aligned.
type Table struct {
	Headers []string
	Rows    [][]string
}

func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell(row[i])))
			}
		}
	}

	var sb strings.Builder
	writeRow(&sb, t.Headers, widths)

	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	writeRow(&sb, separators, widths)

	for _, row := range t.Rows {
		writeRow(&sb, row, widths)
	}

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeRow(sb *strings.Builder, row []string, widths []int) {
	for i, width := range widths {
		var content string
		if i < len(row) {
			content = cell(row[i])
		}
		if i > 0 {
			sb.WriteString("  ")
		}
		if i == len(widths)-1 {
			sb.WriteString(content)
			continue
		}
		sb.WriteString(runewidth.FillRight(content, width))
	}
	sb.WriteString("\n")
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, maxCellWidth, "...")
}
