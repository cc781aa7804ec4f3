package report

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"

	"github.com/ternarybob/dailyscan/internal/signals"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Body renders the HTML email body: the configured intro, the top ranked
// rows and a note on failed tickers. attachments lists the attached file
// names.
func (s *Service) Body(in Input, attachments []string) (string, error) {
	var intro bytes.Buffer
	if s.config.Intro != "" {
		if err := goldmark.Convert([]byte(s.config.Intro), &intro); err != nil {
			return "", fmt.Errorf("failed to render email intro: %w", err)
		}
	}

	failed := 0
	for _, row := range in.Rows {
		if row.HasError() {
			failed++
		}
	}

	data := struct {
		Intro       template.HTML
		Table       tableData
		Total       int
		Failed      int
		Attachments string
		GeneratedAt string
	}{
		Intro:       template.HTML(intro.String()),
		Table:       newTableData(signals.Top(in.Rows, s.config.TopN)),
		Total:       len(in.Rows),
		Failed:      failed,
		Attachments: strings.Join(attachments, ", "),
		GeneratedAt: in.GeneratedAt.Format(generatedAtLayout),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "email.html", data); err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return buf.String(), nil
}

// PlainText converts an HTML body to markdown for the text/plain
// alternative. When conversion fails or yields nothing the tags are
// stripped instead.
func (s *Service) PlainText(body string) string {
	if body == "" {
		return ""
	}

	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return stripHTMLTags(body)
	}
	if strings.TrimSpace(converted) == "" {
		s.logger.Warn().Int("html_length", len(body)).Msg("HTML to markdown conversion produced empty output, applying fallback")
		return stripHTMLTags(body)
	}
	return converted
}

func stripHTMLTags(s string) string {
	stripped := tagRe.ReplaceAllString(s, " ")
	stripped = html.UnescapeString(stripped)
	return strings.TrimSpace(spaceRe.ReplaceAllString(stripped, " "))
}
