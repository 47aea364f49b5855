package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kina2711/subscription-analytics/internal/log"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes headers and records to w, optionally prefixed with a BOM.
func WriteCSV(w io.Writer, headers []string, records [][]string, withBOM bool) error {
	if withBOM {
		if _, err := w.Write(bom); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVWriter writes CSV files under one directory.
type CSVWriter struct {
	dir    string
	logger *log.Logger
}

func NewCSVWriter(dir string, logger *log.Logger) *CSVWriter {
	if logger == nil {
		logger = log.Nop()
	}
	return &CSVWriter{dir: dir, logger: logger.WithComponent(log.ComponentExporter)}
}

// WriteSimpleCSV writes name inside the writer's directory, with a BOM, and
// returns the full path.
func (w *CSVWriter) WriteSimpleCSV(name string, headers []string, records [][]string) (string, error) {
	fullPath := filepath.Join(w.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteCSV(file, headers, records, true); err != nil {
		file.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	w.logger.Debug("Wrote CSV file", "path", fullPath, "record_count", len(records))
	return fullPath, nil
}
