// Package upload implements the announcement-file helper: it scans a data
// file for line metrics, pushes it to a public host selected by file size,
// and renders the channel summary message.
package upload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileMetrics holds the counts derived from a scanned data file.
type FileMetrics struct {
	Filename   string
	TotalLines int
	// ValidULP counts lines containing a ":" delimiter and no "[NOT_SAVED]"
	// marker.
	ValidULP  int
	SizeBytes int64
}

// SizeMB returns the file size in megabytes.
func (m FileMetrics) SizeMB() float64 {
	return float64(m.SizeBytes) / (1024 * 1024)
}

// ScanFile reads the file once and derives its metrics.
func ScanFile(path string) (FileMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileMetrics{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileMetrics{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileMetrics{}, fmt.Errorf("not a file: %s", path)
	}

	m := FileMetrics{Filename: filepath.Base(path), SizeBytes: info.Size()}

	// ReadString handles lines of any length; bufio.Scanner would abort on
	// tokens past its buffer cap.
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			m.TotalLines++
			if strings.Contains(line, ":") && !strings.Contains(line, "[NOT_SAVED]") {
				m.ValidULP++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return FileMetrics{}, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	return m, nil
}
