package parquetio

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/brfin/datafinance/internal/errkind"
	"github.com/brfin/datafinance/internal/fsatomic"
)

// RowSource pulls the next row to write. ok is false once the source is
// exhausted; a source that wants to skip a row internally (e.g. a
// malformed CSV line) simply never yields it, rather than surfacing an
// error through this interface.
type RowSource func() (row []string, ok bool)

// WriteCSVRows drains source into a fresh Parquet file at outputPath, with
// a schema inferred from columns at read time; the source column order is
// preserved. Every column is stored as a nullable UTF8 string: the CVM
// CSVs mix numeric, date and free-text columns per document type, so
// string preservation is the safe, lossless choice over inferring a type
// per column.
//
// Rows are pulled one at a time rather than buffered wholesale: every
// batchSize rows, the writer's row group is flushed to disk, bounding
// memory the same way internal/extraction bounds its own COTAHIST batches.
// estimatedBytes sizes the pre-write free-space check; a caller that knows
// the source's on-disk size (e.g. a zip entry's uncompressed size) can pass
// it directly without materializing every row first.
//
// Grounded on the same xitongsys/parquet-go stack as WriteCotahistBatch,
// using its JSON-schema writer for the dynamic-column case.
func WriteCSVRows(columns []string, source RowSource, estimatedBytes int64, batchSize int, outputPath string) (written, skipped int, err error) {
	if ok, err := fsatomic.HasFreeSpace(dirOf(outputPath), estimatedBytes); err != nil {
		return 0, 0, errkind.ExtractionWrap(err, "checking free space for %s", outputPath)
	} else if !ok {
		return 0, 0, errkind.DiskFull(nil, "insufficient free space to write %s", outputPath)
	}
	if batchSize < 1 {
		batchSize = 50000
	}

	schemaJSON := buildDynamicSchema(columns)
	tmp := fsatomic.TempPath(outputPath)

	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return 0, 0, errkind.ExtractionWrap(err, "open parquet writer for %s", tmp)
	}
	pw, err := writer.NewJSONWriter(schemaJSON, fw, 4)
	if err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return 0, 0, errkind.ExtractionWrap(err, "create json parquet writer for %s", tmp)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD
	pw.RowGroupSize = rowGroupBatchSize

	inBatch := 0
	for {
		row, ok := source()
		if !ok {
			break
		}

		obj := make(map[string]*string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				v := row[i]
				obj[sanitizeColumnName(col)] = &v
			} else {
				obj[sanitizeColumnName(col)] = nil
			}
		}
		encoded, jerr := json.Marshal(obj)
		if jerr != nil {
			skipped++
			continue
		}
		if werr := pw.Write(string(encoded)); werr != nil {
			skipped++
			continue
		}
		written++
		inBatch++
		if inBatch >= batchSize {
			if ferr := pw.Flush(true); ferr != nil {
				_ = pw.WriteStop()
				_ = fw.Close()
				_ = os.Remove(tmp)
				return 0, skipped, errkind.ExtractionWrap(ferr, "flush batch to %s", tmp)
			}
			inBatch = 0
		}
	}

	if written == 0 {
		_ = pw.WriteStop()
		_ = fw.Close()
		_ = os.Remove(tmp)
		return 0, skipped, errkind.Extraction("all rows failed type conversion")
	}

	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return 0, skipped, errkind.ExtractionWrap(err, "finalize parquet %s", tmp)
	}
	if err := syncLocalFile(fw); err != nil {
		_ = fw.Close()
		_ = os.Remove(tmp)
		return 0, skipped, errkind.ExtractionWrap(err, "fsync parquet file %s", tmp)
	}
	if err := fw.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, skipped, errkind.ExtractionWrap(err, "close parquet file %s", tmp)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return 0, skipped, errkind.ExtractionWrap(err, "rename %s to %s", tmp, outputPath)
	}
	return written, skipped, nil
}

func buildDynamicSchema(columns []string) string {
	var fields []string
	for _, col := range columns {
		fields = append(fields, fmt.Sprintf(
			`{"Tag":"name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}`,
			sanitizeColumnName(col)))
	}
	return fmt.Sprintf(`{"Tag":"name=csv_row, repetitiontype=REQUIRED","Fields":[%s]}`, strings.Join(fields, ","))
}

// sanitizeColumnName trims surrounding whitespace and replaces the
// characters Parquet's schema tag parser cannot handle in a bare identifier
// (spaces, commas, semicolons, hyphens) with underscores. Accented letters
// from the CSV reader's Latin-1 decode are kept as UTF-8.
func sanitizeColumnName(col string) string {
	replacer := strings.NewReplacer(" ", "_", ",", "_", ";", "_", "-", "_")
	return replacer.Replace(strings.TrimSpace(col))
}
