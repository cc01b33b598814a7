// Package domain holds the value objects shared across the download
// engine, the extractors and the orchestrator.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanItem is one (year, url, local filename) triple within a DownloadPlan.
type PlanItem struct {
	Year          int
	URL           string
	LocalFilename string
}

// DownloadPlan maps a document type tag to its ordered sequence of items.
// Built once per invocation and immutable thereafter.
type DownloadPlan struct {
	Items map[string][]PlanItem
}

// TotalURLs returns the number of individual URLs across all document
// types, used by callers to check the invariant
// success_count + error_count == total_urls.
func (p DownloadPlan) TotalURLs() int {
	n := 0
	for _, items := range p.Items {
		n += len(items)
	}
	return n
}

// DownloadOutcome is the aggregate result of a download batch.
type DownloadOutcome struct {
	RunID           uuid.UUID
	SuccessCount    int
	ErrorCount      int
	Successful      map[string]map[int]struct{} // doc_type -> set<year>
	Failed          map[string]string           // identifier -> error message
}

// NewDownloadOutcome returns an empty, ready-to-use outcome.
func NewDownloadOutcome() *DownloadOutcome {
	return &DownloadOutcome{
		RunID:      uuid.New(),
		Successful: make(map[string]map[int]struct{}),
		Failed:     make(map[string]string),
	}
}

// AddSuccess records a successful (doc_type, year) download, deduplicating
// against an identical prior entry.
func (o *DownloadOutcome) AddSuccess(docType string, year int) {
	set, ok := o.Successful[docType]
	if !ok {
		set = make(map[int]struct{})
		o.Successful[docType] = set
	}
	if _, exists := set[year]; exists {
		return
	}
	set[year] = struct{}{}
	o.SuccessCount++
}

// AddFailure records a failed identifier, deduplicating against an
// identical prior entry.
func (o *DownloadOutcome) AddFailure(identifier, message string) {
	if _, exists := o.Failed[identifier]; exists {
		return
	}
	o.Failed[identifier] = message
	o.ErrorCount++
}

// ProcessingMode selects both a worker count and a batching strategy for
// the COTAHIST orchestrator. It is read from each ExtractionRequest, and the
// orchestrator's per-line loop checks it to choose between batched parallel
// parsing (FAST) and inline parsing (SLOW).
type ProcessingMode int

const (
	ModeFast ProcessingMode = iota
	ModeSlow
)

func (m ProcessingMode) String() string {
	if m == ModeFast {
		return "FAST"
	}
	return "SLOW"
}

// ExtractionRequest carries the parameters for one COTAHIST run.
type ExtractionRequest struct {
	SourceDirectory      string
	DestinationDirectory string
	AssetClasses         map[string]struct{}
	YearFirst            int
	YearLast             int
	TargetMarketCodes    map[string]struct{}
	DiscoveredZipFiles   []string
	OutputFilename       string
	Mode                 ProcessingMode
}

// CotahistRecord is one row extracted from a TIPREG=01 line. Field
// positions and scales are documented in internal/cotahist.
type CotahistRecord struct {
	TradingDate     time.Time
	BDICode         string
	Ticker          string
	MarketType      string
	ShortName       string
	Specification   string
	OpeningPrice    decimal.Decimal
	HighPrice       decimal.Decimal
	LowPrice        decimal.Decimal
	AvgPrice        decimal.Decimal
	ClosingPrice    decimal.Decimal
	BestBidPrice    decimal.Decimal
	BestAskPrice    decimal.Decimal
	TradeCount      int32
	TotalQuantity   int64
	TotalVolume     decimal.Decimal
	ExpirationDate  *time.Time
	QuoteFactor     int32
	ISINCode        string
	DistributionNum int16
}

// ExtractionReport is the result of one orchestrator run.
type ExtractionReport struct {
	TotalFiles     int
	SuccessCount   int
	ErrorCount     int
	TotalRecords   int
	BatchesWritten int
	Errors         map[string]string // filename -> message
	OutputFile     string
}

// NewExtractionReport returns an empty, ready-to-use report.
func NewExtractionReport() *ExtractionReport {
	return &ExtractionReport{Errors: make(map[string]string)}
}
