// Package extraction implements the COTAHIST extraction orchestrator:
// given an ExtractionRequest, it reads every discovered ZIP, streams the
// inner fixed-width TXT through internal/cotahist, and appends batches to
// a single consolidated Parquet via internal/parquetio. ProcessingMode
// selects a semaphore-gated concurrency level (FAST=10 concurrent ZIPs,
// SLOW=2) via the same errgroup.SetLimit idiom used for bounded fan-out
// elsewhere in this codebase. The Parquet writer itself is invoked
// sequentially under a mutex even though ZIP reading and parsing run
// concurrently, so it behaves like a single writer draining an ordered
// channel without needing an actual channel.
package extraction

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brfin/datafinance/internal/cotahist"
	"github.com/brfin/datafinance/internal/domain"
	"github.com/brfin/datafinance/internal/errkind"
	"github.com/brfin/datafinance/internal/parquetio"
	"github.com/brfin/datafinance/internal/resource"
)

const parseBatchSize = 10000

// Orchestrator runs COTAHIST extraction requests.
type Orchestrator struct {
	monitor *resource.Monitor
	writer  *parquetio.Writer
	logger  *slog.Logger
}

// New constructs an Orchestrator. Nil monitor/writer select process
// defaults.
func New(monitor *resource.Monitor, writer *parquetio.Writer, logger *slog.Logger) *Orchestrator {
	if monitor == nil {
		monitor = resource.Get()
	}
	if writer == nil {
		writer = parquetio.New(monitor)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{monitor: monitor, writer: writer, logger: logger}
}

// runState accumulates the report and serializes writer access across
// concurrently-processed ZIPs.
type runState struct {
	mu         sync.Mutex
	report     *domain.ExtractionReport
	outputPath string
	writer     *parquetio.Writer
}

// flush writes a batch to the consolidated output under the writer lock
// and updates the report's counters.
func (s *runState) flush(batch []domain.CotahistRecord) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.WriteCotahistBatch(batch, s.outputPath); err != nil {
		return err
	}
	s.report.BatchesWritten++
	s.report.TotalRecords += len(batch)
	return nil
}

func (s *runState) recordZipResult(zipPath string, recordCount int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.report.ErrorCount++
		s.report.Errors[filepath.Base(zipPath)] = err.Error()
		return
	}
	s.report.SuccessCount++
	_ = recordCount
}

// Execute runs one ExtractionRequest to completion, producing a single
// consolidated Parquet file or none at all.
func (o *Orchestrator) Execute(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionReport, error) {
	report := domain.NewExtractionReport()
	report.TotalFiles = len(req.DiscoveredZipFiles)
	outputPath := filepath.Join(req.DestinationDirectory, req.OutputFilename+".parquet")

	state := &runState{report: report, outputPath: outputPath, writer: o.writer}

	zipLimit := 2
	if req.Mode == domain.ModeFast {
		zipLimit = 10
	}
	zipLimit = o.monitor.SafeWorkerCount(zipLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, zipLimit))

	for _, zipPath := range req.DiscoveredZipFiles {
		zipPath := zipPath
		g.Go(func() error {
			if o.monitor.Snapshot().State == resource.Exhausted {
				o.monitor.WaitFor(gctx, resource.Critical, 10*time.Second)
			}

			n, err := o.processZip(gctx, zipPath, req, state)
			state.recordZipResult(zipPath, n, err)
			return nil // per-ZIP failure never aborts the batch
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	if report.TotalRecords == 0 && report.ErrorCount == report.TotalFiles && report.TotalFiles > 0 {
		return report, errkind.ExtractionWrap(aggregateErrors(report.Errors), "all %d zip files failed", report.TotalFiles)
	}

	if report.SuccessCount > 0 {
		if report.TotalRecords == 0 {
			// Every zip parsed cleanly but no line matched the requested
			// market-type filter: still produce a Parquet file with the
			// correct schema and zero rows, rather than no file at all.
			if err := o.writer.WriteCotahistBatch(nil, outputPath); err != nil {
				return report, errkind.ExtractionWrap(err, "writing empty-schema output %s", outputPath)
			}
			report.BatchesWritten++
		}
		report.OutputFile = outputPath
	}
	return report, nil
}

// processZip implements the per-ZIP protocol: locate the single inner TXT,
// stream it in 8 KiB chunks split on newlines, parse and filter lines, and
// flush to the writer in resource-monitor-sized chunks. Returns the number
// of records this ZIP contributed.
func (o *Orchestrator) processZip(ctx context.Context, zipPath string, req domain.ExtractionRequest, state *runState) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, errkind.CorruptedZip(err, "opening %s", zipPath)
	}
	defer zr.Close()

	var dataEntry *zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			if dataEntry != nil {
				return 0, errkind.Extraction("multiple-txt: more than one data entry in %s", zipPath)
			}
			dataEntry = f
		}
	}
	if dataEntry == nil {
		return 0, errkind.Extraction("missing-txt: no data entry in %s", zipPath)
	}

	rc, err := dataEntry.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %s: %w", dataEntry.Name, err)
	}
	defer rc.Close()

	parser := cotahist.New(req.TargetMarketCodes, o.logger)
	flushSize := o.monitor.SafeBatchSize(10000)

	total := 0
	var pending []domain.CotahistRecord
	var fastBatch [][]byte

	flushPending := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := state.flush(pending); err != nil {
			return err
		}
		total += len(pending)
		pending = nil
		return nil
	}

	streamErr := streamLines(rc, func(line []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if req.Mode == domain.ModeFast {
			fastBatch = append(fastBatch, append([]byte(nil), line...))
			if len(fastBatch) >= parseBatchSize {
				pending = append(pending, o.parseBatchParallel(parser, fastBatch)...)
				fastBatch = fastBatch[:0]
			}
		} else if rec, ok, _ := parser.ParseLine(line); ok {
			pending = append(pending, rec)
		}

		if len(pending) >= flushSize {
			return flushPending()
		}
		return nil
	})

	if len(fastBatch) > 0 {
		pending = append(pending, o.parseBatchParallel(parser, fastBatch)...)
	}
	if err := flushPending(); err != nil && streamErr == nil {
		streamErr = err
	}

	if streamErr != nil {
		return total, fmt.Errorf("streaming %s: %w", zipPath, streamErr)
	}
	return total, nil
}

// parseBatchParallel is FAST mode's CPU-bound parser pool: a batch of up to
// parseBatchSize lines is split into resource.Monitor.SafeWorkerCount
// shards and parsed concurrently via errgroup, the CPU-bound counterpart to
// the download engine's I/O-bound worker pool. cotahist.Parser is safe for
// concurrent ParseLine calls, so every shard shares the same instance
// rather than paying for one Parser per shard.
func (o *Orchestrator) parseBatchParallel(parser *cotahist.Parser, lines [][]byte) []domain.CotahistRecord {
	workers := o.monitor.SafeWorkerCount(runtime.NumCPU())
	if workers > len(lines) {
		workers = len(lines)
	}
	if workers < 1 {
		workers = 1
	}

	shardSize := (len(lines) + workers - 1) / workers
	shards := make([][]domain.CotahistRecord, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * shardSize
		if start >= len(lines) {
			continue
		}
		end := start + shardSize
		if end > len(lines) {
			end = len(lines)
		}
		w := w
		g.Go(func() error {
			shard := make([]domain.CotahistRecord, 0, end-start)
			for _, l := range lines[start:end] {
				if rec, ok, _ := parser.ParseLine(l); ok {
					shard = append(shard, rec)
				}
			}
			shards[w] = shard
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.CotahistRecord, 0, len(lines))
	for _, shard := range shards {
		out = append(out, shard...)
	}
	return out
}

// streamLines reads r in 8 KiB chunks, splitting on '\n' and carrying a
// remainder buffer across reads.
func streamLines(r io.Reader, fn func([]byte) error) error {
	br := bufio.NewReaderSize(r, 8192)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := bytes.TrimRight(line, "\r\n")
			if len(trimmed) > 0 {
				if ferr := fn(trimmed); ferr != nil {
					return ferr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func aggregateErrors(errs map[string]string) error {
	msg := "extraction failures: "
	first := true
	for name, m := range errs {
		if !first {
			msg += "; "
		}
		msg += name + ": " + m
		first = false
	}
	return errkind.Extraction(msg)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
