package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File is a report document written to disk, ready to attach
type File struct {
	Name        string
	Path        string
	ContentType string
	Data        []byte
}

// FileStem returns the base name shared by a run's files, e.g. scan_20240304_0830.
func FileStem(at time.Time) string {
	return "scan_" + at.Format("20060102_1504")
}

// WriteFiles writes the non-empty artifacts to dir as scan_YYYYMMDD_HHMM.<ext>,
// creating dir when needed. Files are returned in csv, html, pdf order.
func WriteFiles(dir string, artifacts *Artifacts, at time.Time) ([]File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	stem := FileStem(at)
	candidates := []File{
		{Name: stem + ".csv", ContentType: "text/csv; charset=utf-8", Data: artifacts.CSV},
		{Name: stem + ".html", ContentType: "text/html; charset=utf-8", Data: artifacts.HTML},
		{Name: stem + ".pdf", ContentType: "application/pdf", Data: artifacts.PDF},
	}

	var files []File
	for _, f := range candidates {
		if f.Data == nil {
			continue
		}
		f.Path = filepath.Join(dir, f.Name)
		if err := os.WriteFile(f.Path, f.Data, 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// Names returns the file names in order
func Names(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
