// Package cotahist decodes B3 COTAHIST fixed-width 245-byte quote records.
// Byte offsets follow B3's published layout, translated from its
// 1-indexed inclusive column positions to Go's 0-indexed half-open slices.
package cotahist

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/brfin/datafinance/internal/domain"
)

const maxLineLength = 1000

// SkipReason explains why a line produced no record.
type SkipReason string

const (
	SkipHeaderTrailer SkipReason = "header_or_trailer"
	SkipMalformedTag  SkipReason = "malformed_tag"
	SkipFilteredOut   SkipReason = "filtered_out"
	SkipTooLong       SkipReason = "line_too_long"
	SkipDecodeError   SkipReason = "decode_error"
)

// Parser decodes COTAHIST lines. It is stateless aside from an error
// counter and a per-instance detailed-log budget, and is safe to invoke
// from multiple goroutines concurrently: internal/extraction's FAST-mode
// parser pool shares one Parser instance across its worker shards, so the
// counters are guarded by a mutex rather than owned by a single caller.
type Parser struct {
	TargetMarketCodes map[string]struct{}
	logger            *slog.Logger

	mu          sync.Mutex
	errCount    int
	loggedCount int
}

// New constructs a Parser filtering to the given target market codes.
func New(targetMarketCodes map[string]struct{}, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{TargetMarketCodes: targetMarketCodes, logger: logger}
}

// ErrorCount returns the number of lines that failed to decode.
func (p *Parser) ErrorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errCount
}

// ParseLine decodes one raw (Latin-1 encoded) line. Returns
// (record, true, "") on success, (zero, false, reason) on a silent skip.
func (p *Parser) ParseLine(raw []byte) (domain.CotahistRecord, bool, SkipReason) {
	if len(raw) > maxLineLength {
		return domain.CotahistRecord{}, false, SkipTooLong
	}

	line, err := decodeLatin1(raw)
	if err != nil {
		p.countError(err, "latin1 decode failed")
		return domain.CotahistRecord{}, false, SkipDecodeError
	}

	tipreg := boundedSlice(line, 0, 2)
	if tipreg == "00" || tipreg == "99" {
		return domain.CotahistRecord{}, false, SkipHeaderTrailer
	}
	if tipreg != "01" {
		return domain.CotahistRecord{}, false, SkipMalformedTag
	}

	marketType := strings.TrimSpace(boundedSlice(line, 24, 27))
	if p.TargetMarketCodes != nil {
		if _, ok := p.TargetMarketCodes[marketType]; !ok {
			return domain.CotahistRecord{}, false, SkipFilteredOut
		}
	}

	rec, err := p.parseFullRecord(line, marketType)
	if err != nil {
		p.countError(err, "record decode failed")
		return domain.CotahistRecord{}, false, SkipDecodeError
	}
	return rec, true, ""
}

func (p *Parser) countError(err error, msg string) {
	p.mu.Lock()
	p.errCount++
	count := p.errCount
	shouldLog := p.loggedCount < 10
	if shouldLog {
		p.loggedCount++
	}
	p.mu.Unlock()

	if shouldLog {
		p.logger.Warn(msg, "error", err, "count", count)
	}
}

func (p *Parser) parseFullRecord(line, marketType string) (domain.CotahistRecord, error) {
	tradingDate, err := parseRequiredDate(boundedSlice(line, 2, 10))
	if err != nil {
		return domain.CotahistRecord{}, err
	}

	rec := domain.CotahistRecord{
		TradingDate:   tradingDate,
		BDICode:       boundedSlice(line, 10, 12),
		Ticker:        strings.TrimSpace(boundedSlice(line, 12, 24)),
		MarketType:    marketType,
		ShortName:     strings.TrimSpace(boundedSlice(line, 27, 39)),
		Specification: strings.TrimSpace(boundedSlice(line, 39, 49)),
	}

	rec.OpeningPrice = parseDecimalScale2(boundedSlice(line, 56, 69))
	rec.HighPrice = parseDecimalScale2(boundedSlice(line, 69, 82))
	rec.LowPrice = parseDecimalScale2(boundedSlice(line, 82, 95))
	rec.AvgPrice = parseDecimalScale2(boundedSlice(line, 95, 108))
	rec.ClosingPrice = parseDecimalScale2(boundedSlice(line, 108, 121))
	rec.BestBidPrice = parseDecimalScale2(boundedSlice(line, 121, 134))
	rec.BestAskPrice = parseDecimalScale2(boundedSlice(line, 134, 147))

	rec.TradeCount = parseInt32(boundedSlice(line, 147, 152))
	rec.TotalQuantity = parseInt64(boundedSlice(line, 152, 170))
	rec.TotalVolume = parseDecimalScale2(boundedSlice(line, 170, 188))

	rec.ExpirationDate = parseOptionalDate(boundedSlice(line, 202, 210))
	rec.QuoteFactor = parseInt32(boundedSlice(line, 210, 217))
	rec.ISINCode = strings.TrimSpace(boundedSlice(line, 230, 242))
	rec.DistributionNum = parseInt16(boundedSlice(line, 242, 245))

	return rec, nil
}

// boundedSlice returns line[start:end], or "" if the requested range falls
// outside the line, per the bounded-slice edge case.
func boundedSlice(line string, start, end int) string {
	if start < 0 || start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	if end <= start {
		return ""
	}
	return line[start:end]
}

func decodeLatin1(raw []byte) (string, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func parseRequiredDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "00000000" {
		return time.Time{}, errRequiredDateMissing
	}
	return time.Parse("20060102", s)
}

func parseOptionalDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "00000000" {
		return nil
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt32(s string) int32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseInt16(s string) int16 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0
	}
	return int16(n)
}

type parseErr string

func (e parseErr) Error() string { return string(e) }

const errRequiredDateMissing = parseErr("required date field is empty or zero")
