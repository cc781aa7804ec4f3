// Package pdf renders markdown reports to PDF.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pageWidth  = 190.0 // A4 portrait minus margins
	pageBottom = 297.0 - 12.0
	bodyFont   = "Arial"
	bodySize   = 9.0
)

// Service converts markdown documents (headings, paragraphs, emphasis,
// lists and tables) to PDF.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// ConvertMarkdownToPDF converts markdown to PDF bytes. createdAt is written
// as both creation and modification date, so equal input gives equal bytes.
func (s *Service) ConvertMarkdownToPDF(markdown, title string, createdAt time.Time) ([]byte, error) {
	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("title", title).
		Msg("Converting markdown to PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(createdAt)
	pdf.SetModificationDate(createdAt)
	pdf.SetTitle(title, true)
	pdf.SetProducer("dailyscan", false)
	pdf.AddPage()
	pdf.SetFont(bodyFont, "", bodySize)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &renderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

type renderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string
	bold   bool
	italic bool
	lists  int
}

func (r *renderer) setFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, bodySize)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont(bodyFont, "B", size)
		} else {
			r.pdf.Ln(8)
			r.setFont()
		}
	case *ast.Paragraph:
		if !entering && r.lists == 0 {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, r.tr(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.setFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", bodySize)
			r.pdf.Write(5, r.tr(string(node.Text(r.source))))
			r.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.lists++
		} else {
			r.lists--
			r.pdf.Ln(6)
		}
	case *ast.ListItem:
		if entering {
			if node.PreviousSibling() != nil {
				r.pdf.Ln(5)
			}
			r.pdf.SetX(10 + float64(r.lists)*5)
			r.pdf.Write(5, "- ")
		}
	case *extast.Table:
		if entering {
			r.table(r.collectRows(node))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *renderer) collectRows(table *extast.Table) [][]string {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.tr(string(cell.Text(r.source))))
			}
			rows = append(rows, cells)
		}
	}
	return rows
}

// table draws rows as a grid. The first row is the header and is repeated
// after each page break.
func (r *renderer) table(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const lineHeight = 6.0
	widths := r.columnWidths(rows)

	drawRow := func(cells []string, header bool) {
		if header {
			r.pdf.SetFont(bodyFont, "B", 8)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont(bodyFont, "", 8)
		}
		for j, w := range widths {
			cell := ""
			if j < len(cells) {
				cell = r.fit(cells[j], w-2)
			}
			r.pdf.CellFormat(w, lineHeight, cell, "1", 0, "L", header, 0, "")
		}
		r.pdf.Ln(lineHeight)
	}

	r.pdf.Ln(2)
	drawRow(rows[0], true)
	for _, row := range rows[1:] {
		if r.pdf.GetY()+lineHeight > pageBottom {
			r.pdf.AddPage()
			drawRow(rows[0], true)
		}
		drawRow(row, false)
	}
	r.pdf.Ln(3)
	r.setFont()
}

// columnWidths sizes columns to their widest cell and scales them to the
// page width.
func (r *renderer) columnWidths(rows [][]string) []float64 {
	widths := make([]float64, len(rows[0]))
	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont(bodyFont, "B", 8)
		} else {
			r.pdf.SetFont(bodyFont, "", 8)
		}
		for j := range widths {
			if j < len(row) {
				if w := r.pdf.GetStringWidth(row[j]) + 4; w > widths[j] {
					widths[j] = w
				}
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

// fit truncates s with an ellipsis so it fits in width.
func (r *renderer) fit(s string, width float64) string {
	if r.pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && r.pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
