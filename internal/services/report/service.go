// Package report renders scan rows into CSV, HTML and PDF reports and the
// email body that carries them.
package report

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dailyscan/internal/common"
	"github.com/ternarybob/dailyscan/internal/services/pdf"
	"github.com/ternarybob/dailyscan/internal/signals"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Header is the fixed CSV column order; the HTML and PDF tables use it too.
var Header = []string{
	"ticker",
	"date",
	"price",
	"d_change_%",
	"golden_cross_5_20",
	"vol_spike_vs_20d",
	"above_ma60_%",
	"error",
}

// cellClasses styles the HTML columns, index-aligned with Header
var cellClasses = []string{"ticker", "", "", "", "", "", "", "error"}

const (
	FormatCSV  = "csv"
	FormatHTML = "html"
	FormatPDF  = "pdf"

	generatedAtLayout = "2006-01-02 15:04 MST"
)

// Input is everything a report is rendered from. Rows are rendered in the
// order given.
type Input struct {
	Title       string
	Rows        []signals.Row
	GeneratedAt time.Time
	Provider    string
}

// Artifacts holds the rendered report documents. A format that is not
// enabled is nil.
type Artifacts struct {
	CSV  []byte
	HTML []byte
	PDF  []byte
}

// Service renders reports
type Service struct {
	logger arbor.ILogger
	config common.ReportConfig
	pdf    *pdf.Service
}

// NewService creates a new report service
func NewService(logger arbor.ILogger, config common.ReportConfig) *Service {
	return &Service{
		logger: logger,
		config: config,
		pdf:    pdf.NewService(logger),
	}
}

// Render renders every enabled format. Output depends only on in and the
// report config: equal input gives byte-identical documents.
func (s *Service) Render(in Input) (*Artifacts, error) {
	if in.Title == "" {
		in.Title = s.config.Title
	}

	artifacts := &Artifacts{}
	var err error

	if s.config.HasFormat(FormatCSV) {
		if artifacts.CSV, err = s.RenderCSV(in.Rows); err != nil {
			return nil, err
		}
	}
	if s.config.HasFormat(FormatHTML) {
		if artifacts.HTML, err = s.RenderHTML(in); err != nil {
			return nil, err
		}
	}
	if s.config.HasFormat(FormatPDF) {
		if artifacts.PDF, err = s.pdf.ConvertMarkdownToPDF(Markdown(in), in.Title, in.GeneratedAt); err != nil {
			return nil, err
		}
	}

	s.logger.Debug().
		Int("rows", len(in.Rows)).
		Int("csv_bytes", len(artifacts.CSV)).
		Int("html_bytes", len(artifacts.HTML)).
		Int("pdf_bytes", len(artifacts.PDF)).
		Msg("Report rendered")

	return artifacts, nil
}

// RenderCSV writes the header and one line per row, prefixed with a UTF-8
// BOM when configured so spreadsheet apps detect the encoding.
func (s *Service) RenderCSV(rows []signals.Row) ([]byte, error) {
	var buf bytes.Buffer
	if s.config.CSVBOM {
		buf.WriteString("\ufeff")
	}

	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(Cells(row)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row %s: %w", row.Ticker, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderHTML renders a standalone HTML page with the rows as one table.
func (s *Service) RenderHTML(in Input) ([]byte, error) {
	data := struct {
		Title       string
		Table       tableData
		GeneratedAt string
		Provider    string
	}{
		Title:       in.Title,
		Table:       newTableData(in.Rows),
		GeneratedAt: in.GeneratedAt.Format(generatedAtLayout),
		Provider:    in.Provider,
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "report.html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown renders the rows as a markdown document (title, table, footer).
// The PDF is rendered from it.
func Markdown(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", in.Title)

	sb.WriteString("| " + strings.Join(Header, " | ") + " |\n")
	sb.WriteString(strings.Repeat("|---", len(Header)) + "|\n")
	for _, row := range in.Rows {
		cells := Cells(row)
		for i, c := range cells {
			cells[i] = escapeMarkdownCell(c)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	fmt.Fprintf(&sb, "\nGenerated at %s\n", in.GeneratedAt.Format(generatedAtLayout))
	return sb.String()
}

// Cells formats a row in Header order. Missing values are empty strings.
func Cells(row signals.Row) []string {
	if row.HasError() {
		return []string{row.Ticker, "", "", "", "", "", "", row.Error}
	}

	return []string{
		row.Ticker,
		row.Date.Format("2006-01-02"),
		row.Price.String(),
		nullString(row.DayChangePct.Valid, row.DayChangePct.Decimal.StringFixed(2)),
		fmt.Sprintf("%t", row.GoldenCross),
		fmt.Sprintf("%t", row.VolumeSpike),
		nullString(row.AboveMA60Pct.Valid, row.AboveMA60Pct.Decimal.StringFixed(2)),
		"",
	}
}

type tableRow struct {
	Cells  []string
	Signal bool
}

type tableData struct {
	Header  []string
	Classes []string
	Rows    []tableRow
}

func newTableData(rows []signals.Row) tableData {
	t := tableData{Header: Header, Classes: cellClasses, Rows: make([]tableRow, len(rows))}
	for i, row := range rows {
		t.Rows[i] = tableRow{Cells: Cells(row), Signal: row.GoldenCross || row.VolumeSpike}
	}
	return t
}

func nullString(valid bool, s string) string {
	if !valid {
		return ""
	}
	return s
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
