// Package report renders transcripts for reviewers.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spigell/interview-coach/internal/transcript"
	"github.com/yuin/goldmark"
)

const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Markdown renders tr as a markdown document.
func Markdown(tr *transcript.Transcript) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Interview: %s (%s)\n\n", tr.Name, tr.Company)
	if !tr.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Date: %s\n", tr.CreatedAt.UTC().Format(time.RFC3339))
	}
	if tr.ID != "" {
		fmt.Fprintf(&b, "- Transcript: `%s`\n", tr.ID)
	}
	if tr.UserID != "" {
		fmt.Fprintf(&b, "- User: `%s`\n", tr.UserID)
	}

	for i, r := range tr.Questions {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, oneLine(r.Question))
		b.WriteString(quote(r.Answer))
		b.WriteString("\n\n**Feedback:** ")
		b.WriteString(oneLine(r.Evaluation))
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders tr as an HTML fragment. Raw HTML in answers is dropped.
func HTML(tr *transcript.Transcript) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(Markdown(tr)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Table writes one aligned row per transcript, newest first as given.
func Table(w io.Writer, items []*transcript.Transcript) error {
	headers := []string{"ID", "CREATED", "NAME", "COMPANY", "ANSWERS"}
	rows := make([][]string, 0, len(items))
	for _, tr := range items {
		rows = append(rows, []string{
			tr.ID,
			tr.CreatedAt.UTC().Format("2006-01-02 15:04"),
			tr.Name,
			tr.Company,
			fmt.Sprint(len(tr.Questions)),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range append([][]string{headers}, rows...) {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = padRight(cell, widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
			return err
		}
	}
	return nil
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return strings.Join(lines, "\n")
}
