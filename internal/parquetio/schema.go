package parquetio

import (
	"github.com/shopspring/decimal"

	"github.com/brfin/datafinance/internal/domain"
)

// cotahistRow is the on-disk Parquet row shape for a CotahistRecord.
// Decimal fields are stored as scaled INT64s with a DECIMAL logical
// annotation (parquet-go's struct-tag convention, grounded on
// sanchitvj-DARE/extract_load_testing/go_el/main.go's ParquetRecord and
// other_examples/penny-vault-import-fred__types.go's tag style) rather
// than as floats, preserving the implied-decimal precision guarantee on
// round-trip.
type cotahistRow struct {
	TradingDate     string `parquet:"name=trading_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BDICode         string `parquet:"name=bdi_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker          string `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MarketType      string `parquet:"name=market_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ShortName       string `parquet:"name=short_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Specification   string `parquet:"name=specification, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpeningPrice    int64  `parquet:"name=opening_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	HighPrice       int64  `parquet:"name=high_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	LowPrice        int64  `parquet:"name=low_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	AvgPrice        int64  `parquet:"name=avg_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	ClosingPrice    int64  `parquet:"name=closing_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	BestBidPrice    int64  `parquet:"name=best_bid_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	BestAskPrice    int64  `parquet:"name=best_ask_price, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	TradeCount      int32  `parquet:"name=trade_count, type=INT32"`
	TotalQuantity   int64  `parquet:"name=total_quantity, type=INT64"`
	TotalVolume     int64  `parquet:"name=total_volume, type=INT64, convertedtype=DECIMAL, scale=2, precision=24"`
	ExpirationDate  string `parquet:"name=expiration_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	HasExpiration   bool   `parquet:"name=has_expiration, type=BOOLEAN"`
	QuoteFactor     int32  `parquet:"name=quote_factor, type=INT32"`
	ISINCode        string `parquet:"name=isin_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	DistributionNum int32  `parquet:"name=distribution_number, type=INT32"`
}

func toParquetRow(r domain.CotahistRecord) cotahistRow {
	row := cotahistRow{
		TradingDate:     r.TradingDate.Format("2006-01-02"),
		BDICode:         r.BDICode,
		Ticker:          r.Ticker,
		MarketType:      r.MarketType,
		ShortName:       r.ShortName,
		Specification:   r.Specification,
		OpeningPrice:    decimalToScaledInt(r.OpeningPrice),
		HighPrice:       decimalToScaledInt(r.HighPrice),
		LowPrice:        decimalToScaledInt(r.LowPrice),
		AvgPrice:        decimalToScaledInt(r.AvgPrice),
		ClosingPrice:    decimalToScaledInt(r.ClosingPrice),
		BestBidPrice:    decimalToScaledInt(r.BestBidPrice),
		BestAskPrice:    decimalToScaledInt(r.BestAskPrice),
		TradeCount:      r.TradeCount,
		TotalQuantity:   r.TotalQuantity,
		TotalVolume:     decimalToScaledInt(r.TotalVolume),
		QuoteFactor:     r.QuoteFactor,
		ISINCode:        r.ISINCode,
		DistributionNum: int32(r.DistributionNum),
	}
	if r.ExpirationDate != nil {
		row.ExpirationDate = r.ExpirationDate.Format("2006-01-02")
		row.HasExpiration = true
	}
	return row
}

// decimalToScaledInt converts a decimal.Decimal with scale 2 back into its
// raw scaled integer form for the INT64/DECIMAL Parquet column.
func decimalToScaledInt(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}
