package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExportColumn is one CSV column; Key selects the row field.
type ExportColumn struct {
	Key          string `json:"key"`
	DisplayLabel string `json:"displayLabel"`
}

// Export is the payload of a CSV download.
type Export struct {
	Columns  []ExportColumn
	Data     []map[string]string
	Filename string
}

// ExportProducer builds the export of a table on demand.
type ExportProducer func(ctx context.Context) (Export, error)

// Omit returns a copy of the export without the named column.
func (e Export) Omit(key string) Export {
	cols := make([]ExportColumn, 0, len(e.Columns))
	for _, c := range e.Columns {
		if c.Key != key {
			cols = append(cols, c)
		}
	}
	e.Columns = cols
	return e
}

// WriteCSV writes the header row from the column labels followed by one row per item.
// Missing fields are written empty.
func WriteCSV(w io.Writer, e Export) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		header[i] = c.DisplayLabel
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(e.Columns))
	for n, row := range e.Data {
		for i, c := range e.Columns {
			record[i] = row[c.Key]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", n, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DownloadName returns the file name with a .csv extension.
func (e Export) DownloadName() string {
	name := e.Filename
	if name == "" {
		name = "export"
	}
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	return name
}

// ServeCSV writes the export as a file download.
func ServeCSV(w http.ResponseWriter, e Export) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, e); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.DownloadName()))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}
