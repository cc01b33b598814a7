// Package cvmzip converts CVM document ZIP archives to Parquet: every
// inner CSV becomes a sibling Parquet file, transactionally — any per-CSV
// failure rolls back every Parquet already produced for that ZIP.
package cvmzip

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/brfin/datafinance/internal/errkind"
	"github.com/brfin/datafinance/internal/parquetio"
	"github.com/brfin/datafinance/internal/resource"
)

// Extractor converts CVM ZIPs to sibling Parquet files.
type Extractor struct {
	monitor *resource.Monitor
	logger  *slog.Logger
}

// New constructs an Extractor. A nil monitor selects the process
// singleton.
func New(monitor *resource.Monitor, logger *slog.Logger) *Extractor {
	if monitor == nil {
		monitor = resource.Get()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{monitor: monitor, logger: logger}
}

// ConversionResult reports the outcome of converting one CSV entry to
// Parquet: its output path and how many rows were skipped rather than
// written. A row-level failure is skipped, not fatal, as long as at least
// one row converts.
type ConversionResult struct {
	ParquetPath string
	SkippedRows int
}

// Extract opens zipPath and converts every inner .csv entry into a sibling
// Parquet file under outputDir. On any per-CSV failure, every Parquet
// already produced for this ZIP is deleted and a single aggregated
// ExtractionError is returned.
func (e *Extractor) Extract(zipPath, outputDir string) ([]ConversionResult, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errkind.CorruptedZip(err, "opening %s", zipPath)
	}
	defer zr.Close()

	var csvEntries []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			csvEntries = append(csvEntries, f)
		}
	}
	if len(csvEntries) == 0 {
		return []ConversionResult{}, nil
	}

	var created []ConversionResult
	var failedEntry string
	var rootCause error

	for _, entry := range csvEntries {
		outPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(entry.Name), filepath.Ext(entry.Name))+".parquet")

		wrote, skipped, err := e.convertEntry(entry, outPath)
		if err != nil {
			failedEntry = entry.Name
			rootCause = err
			break
		}
		if wrote == 0 {
			failedEntry = entry.Name
			rootCause = errkind.Extraction("zero rows converted successfully")
			break
		}
		if skipped > 0 {
			e.logger.Warn("csv rows skipped during conversion", "entry", entry.Name, "skipped", skipped)
		}
		created = append(created, ConversionResult{ParquetPath: outPath, SkippedRows: skipped})
	}

	if rootCause != nil {
		e.rollback(created)
		return nil, errkind.ExtractionWrap(rootCause, "converting %s in %s", failedEntry, zipPath)
	}

	return created, nil
}

func (e *Extractor) rollback(created []ConversionResult) {
	for _, r := range created {
		if err := removeIfExists(r.ParquetPath); err != nil {
			e.logger.Warn("rollback: failed to delete parquet file", "path", r.ParquetPath, "error", err)
		}
	}
}

// convertEntry streams one CSV entry through a Latin-1, semicolon-delimited
// reader directly into the shared Parquet writer, one row at a time, so the
// whole CSV is never held in memory at once. Rows that fail to parse are
// skipped, not fatal, provided at least one row converts (an edge case).
func (e *Extractor) convertEntry(entry *zip.File, outPath string) (written, skipped int, err error) {
	rc, err := entry.Open()
	if err != nil {
		return 0, 0, fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	decoded := transform.NewReader(rc, charmap.ISO8859_1.NewDecoder())
	reader := csv.NewReader(decoded)
	reader.Comma = ';'
	reader.LazyQuotes = false
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read header of %s: %w", entry.Name, err)
	}

	// batchSize bounds how many rows the Parquet writer buffers before
	// flushing its row group to disk; convertEntry never builds a second
	// in-memory copy of the CSV itself, since parquetio.WriteCSVRows pulls
	// rows one at a time from the closure below.
	batchSize := e.monitor.SafeBatchSize(50000)
	readSkipped := 0
	buffered := 0

	source := func() ([]string, bool) {
		for {
			record, rerr := reader.Read()
			if rerr == io.EOF {
				return nil, false
			}
			if rerr != nil {
				readSkipped++
				continue
			}
			buffered++
			if buffered%batchSize == 0 {
				e.logger.Debug("csv rows streamed", "entry", entry.Name, "count", buffered)
			}
			return record, true
		}
	}

	wrote, writerSkipped, err := parquetio.WriteCSVRows(header, source, int64(entry.UncompressedSize64), batchSize, outPath)
	if err != nil {
		return 0, readSkipped + writerSkipped, err
	}
	return wrote, readSkipped + writerSkipped, nil
}
