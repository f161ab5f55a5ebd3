package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// printer renders command results as lipgloss tables or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON}
}

// JSON writes v as indented JSON.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

// Table writes rows under headers, or v as JSON in json mode.
func (p *printer) Table(v any, headers []string, rows [][]string) error {
	if p.json {
		return p.JSON(v)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.w, labelStyle.Render("(none)"))
		return err
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	_, err := fmt.Fprintln(p.w, t.String())
	return err
}

// Fields writes label/value pairs one per line, or v as JSON in json mode.
func (p *printer) Fields(v any, pairs ...[2]string) error {
	if p.json {
		return p.JSON(v)
	}
	width := 0
	for _, pair := range pairs {
		width = max(width, len(pair[0]))
	}
	label := labelStyle.Width(width + 2)
	for _, pair := range pairs {
		if _, err := fmt.Fprintln(p.w, label.Render(pair[0]+":")+pair[1]); err != nil {
			return err
		}
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// statusText colors paid green and everything else red.
func statusText(status string) string {
	if status == "paid" {
		return okStyle.Render(status)
	}
	return warnStyle.Render(status)
}
