// Package parquetio is the shared Parquet Writer used by both the CVM
// atomic extractor and the COTAHIST orchestrator. Grounded on
// sanchitvj-DARE/extract_load_testing/go_el/main.go's use of
// xitongsys/parquet-go (writer.NewParquetWriter, per-struct-tag schema,
// periodic Flush, WriteStop), adapted from S3+SNAPPY to local disk with
// ZSTD compression and mandatory temp-then-rename placement via
// internal/fsatomic.
package parquetio

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/brfin/datafinance/internal/domain"
	"github.com/brfin/datafinance/internal/errkind"
	"github.com/brfin/datafinance/internal/fsatomic"
	"github.com/brfin/datafinance/internal/resource"
)

const rowGroupBatchSize = 50000

// Writer owns Parquet output for one logical destination and is invoked
// sequentially, per the orchestration model: it is not safe for concurrent
// writers to the same path.
type Writer struct {
	monitor *resource.Monitor
}

// New constructs a Writer consulting the given Monitor to pick between
// bulk and streaming write modes. A nil monitor selects the process
// singleton.
func New(monitor *resource.Monitor) *Writer {
	if monitor == nil {
		monitor = resource.Get()
	}
	return &Writer{monitor: monitor}
}

// WriteCotahistBatch appends batch to outputPath's COTAHIST Parquet,
// creating it if absent. The write is atomic: outputPath either contains
// its previous rows plus batch, or is untouched.
func (w *Writer) WriteCotahistBatch(batch []domain.CotahistRecord, outputPath string) error {
	if ok, err := fsatomic.HasFreeSpace(dirOf(outputPath), estimateSize(len(batch))); err != nil {
		return errkind.ExtractionWrap(err, "checking free space for %s", outputPath)
	} else if !ok {
		return errkind.DiskFull(nil, "insufficient free space to write %s", outputPath)
	}

	rows := make([]cotahistRow, len(batch))
	for i, r := range batch {
		rows[i] = toParquetRow(r)
	}

	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return writeFresh(outputPath, rows)
	}

	if w.monitor.Snapshot().State == resource.Healthy {
		return appendBulk(outputPath, rows)
	}
	return appendStreaming(outputPath, rows)
}

func dirOf(path string) string {
	dir := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			dir = path[:i]
			break
		}
	}
	if dir == path {
		return "."
	}
	return dir
}

// estimateSize is a rough per-row byte estimate used only for the pre-write
// free-space check; it does not need to be exact, just conservative.
func estimateSize(rowCount int) int64 {
	const bytesPerRowEstimate = 200
	return int64(rowCount) * bytesPerRowEstimate * 13 / 10 // * 1.3 safety margin
}

func writeFresh(outputPath string, rows []cotahistRow) error {
	tmp := fsatomic.TempPath(outputPath)
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return errkind.ExtractionWrap(err, "open parquet writer for %s", tmp)
	}
	pw, err := writer.NewParquetWriter(fw, new(cotahistRow), 4)
	if err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "create parquet writer for %s", tmp)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD
	pw.RowGroupSize = rowGroupBatchSize

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			_ = os.Remove(tmp)
			return errkind.ExtractionWrap(err, "write row to %s", tmp)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "finalize parquet %s", tmp)
	}
	if err := syncLocalFile(fw); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "fsync parquet file %s", tmp)
	}
	if err := fw.Close(); err != nil {
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "close parquet file %s", tmp)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "rename %s to %s", tmp, outputPath)
	}
	return nil
}

// appendBulk implements the HEALTHY-memory mode: read the existing file
// fully, concatenate with the new batch, rewrite in one pass.
func appendBulk(outputPath string, newRows []cotahistRow) error {
	existing, err := readAllCotahistRows(outputPath)
	if err != nil {
		return err
	}
	all := append(existing, newRows...)
	return writeFresh(outputPath, all)
}

// appendStreaming implements the non-HEALTHY mode: bounded-memory
// row-by-row copy of the existing file followed by the new batch.
func appendStreaming(outputPath string, newRows []cotahistRow) error {
	tmp := fsatomic.TempPath(outputPath)

	fr, err := local.NewLocalFileReader(outputPath)
	if err != nil {
		return errkind.ExtractionWrap(err, "open existing parquet %s", outputPath)
	}
	pr, err := reader.NewParquetReader(fr, new(cotahistRow), 4)
	if err != nil {
		_ = fr.Close()
		return errkind.ExtractionWrap(err, "open parquet reader for %s", outputPath)
	}

	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		pr.ReadStop()
		_ = fr.Close()
		return errkind.ExtractionWrap(err, "open parquet writer for %s", tmp)
	}
	pw, err := writer.NewParquetWriter(fw, new(cotahistRow), 4)
	if err != nil {
		pr.ReadStop()
		_ = fr.Close()
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "create parquet writer for %s", tmp)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD
	pw.RowGroupSize = rowGroupBatchSize

	total := int(pr.GetNumRows())
	for offset := 0; offset < total; offset += rowGroupBatchSize {
		n := rowGroupBatchSize
		if offset+n > total {
			n = total - offset
		}
		chunk := make([]cotahistRow, n)
		if err := pr.Read(&chunk); err != nil {
			pr.ReadStop()
			_ = fr.Close()
			_ = pw.WriteStop()
			_ = fw.Close()
			_ = os.Remove(tmp)
			return errkind.ExtractionWrap(err, "read existing rows from %s", outputPath)
		}
		for i := range chunk {
			if err := pw.Write(chunk[i]); err != nil {
				pr.ReadStop()
				_ = fr.Close()
				_ = pw.WriteStop()
				_ = fw.Close()
				_ = os.Remove(tmp)
				return errkind.ExtractionWrap(err, "copy existing row to %s", tmp)
			}
		}
	}
	pr.ReadStop()
	_ = fr.Close()

	for offset := 0; offset < len(newRows); offset += rowGroupBatchSize {
		end := offset + rowGroupBatchSize
		if end > len(newRows) {
			end = len(newRows)
		}
		for i := offset; i < end; i++ {
			if err := pw.Write(newRows[i]); err != nil {
				_ = pw.WriteStop()
				_ = fw.Close()
				_ = os.Remove(tmp)
				return errkind.ExtractionWrap(err, "write new row to %s", tmp)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "finalize parquet %s", tmp)
	}
	if err := syncLocalFile(fw); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "fsync parquet file %s", tmp)
	}
	if err := fw.Close(); err != nil {
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "close parquet file %s", tmp)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return errkind.ExtractionWrap(err, "rename %s to %s", tmp, outputPath)
	}
	return nil
}

func readAllCotahistRows(path string) ([]cotahistRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errkind.ExtractionWrap(err, "open %s", path)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(cotahistRow), 4)
	if err != nil {
		return nil, errkind.ExtractionWrap(err, "open parquet reader for %s", path)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]cotahistRow, n)
	if n > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, errkind.ExtractionWrap(err, "read rows from %s", path)
		}
	}
	return rows, nil
}

// RowCount returns the number of rows in a finished Parquet file, used by
// tests to confirm the file's row count matches TotalRecords.
func RowCount(path string) (int, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(cotahistRow), 1)
	if err != nil {
		return 0, fmt.Errorf("open reader for %s: %w", path, err)
	}
	defer pr.ReadStop()
	return int(pr.GetNumRows()), nil
}
