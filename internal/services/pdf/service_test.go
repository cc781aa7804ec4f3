package pdf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestConvertMarkdownToPDF(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	createdAt := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		markdown string
		title    string
	}{
		{
			name:     "Basic Markdown",
			markdown: "# Title\n\nSome paragraph text.\n\n- Item 1\n- Item 2",
			title:    "Test Document",
		},
		{
			name:     "Empty Markdown",
			markdown: "",
			title:    "Empty Doc",
		},
		{
			name: "Scan Table",
			markdown: `# Daily Stock Scan

| ticker | price | error |
|---|---|---|
| 2330.TW | 785.5 | |
| NOPE | | fetch NOPE from yahoo: Not Found |

Generated at 2024-03-04 08:30`,
			title: "Daily Stock Scan",
		},
		{
			name:     "Bold, Italic and Code",
			markdown: "Normal **Bold** *Italic* ***BoldItalic*** `code` café",
			title:    "Styling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.ConvertMarkdownToPDF(tt.markdown, tt.title, createdAt)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF-")))
		})
	}
}

func TestConvertMarkdownToPDF_Deterministic(t *testing.T) {
	service := NewService(arbor.NewLogger())
	createdAt := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)

	var sb strings.Builder
	sb.WriteString("# Scan\n\n| ticker | price |\n|---|---|\n")
	for i := 0; i < 80; i++ {
		sb.WriteString("| 2330.TW | 785.5 |\n")
	}

	first, err := service.ConvertMarkdownToPDF(sb.String(), "Scan", createdAt)
	require.NoError(t, err)
	second, err := service.ConvertMarkdownToPDF(sb.String(), "Scan", createdAt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
