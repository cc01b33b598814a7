// Package validation holds static tables and checks for CVM document
// types, B3 asset classes and year bounds. It uses go-playground/validator's
// RegisterValidation idiom for the document-type and asset-class tags.
// These validators run before any side-effecting work.
package validation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brfin/datafinance/internal/errkind"
)

var validate = validator.New()

// docTypeMinYear mirrors the original available_years table: most CVM
// document types are available from 2010, but a few start later.
var docTypeMinYear = map[string]int{
	"DFP":  2010,
	"ITR":  2011,
	"FRE":  2010,
	"FCA":  2010,
	"CGVN": 2018,
	"VLMO": 2018,
	"IPE":  2010,
}

// AssetMarketCodes maps a B3 asset class (user-friendly name) to its set of
// 3-digit market-type codes, the authoritative table for translating a
// user-facing asset class into COTAHIST market-type filters.
var AssetMarketCodes = map[string][]string{
	"ações":             {"010", "020"},
	"etf":               {"010", "020"},
	"opções":            {"070", "080"},
	"termo":             {"030"},
	"exercicio_opcoes":  {"012", "013"},
	"forward":           {"050", "060"},
	"leilao":            {"017"},
}

const b3MinYear = 1986

// ValidateDocType checks that docType is one of the allowed CVM document
// codes.
func ValidateDocType(docType string) error {
	if _, ok := docTypeMinYear[docType]; !ok {
		return errkind.Validation("InvalidDocName: unknown document type %q", docType)
	}
	return nil
}

// ValidateDocYear checks docType/year against the per-type minimum-year
// table and the current year ceiling.
func ValidateDocYear(docType string, year int) error {
	minYear, ok := docTypeMinYear[docType]
	if !ok {
		return errkind.Validation("InvalidDocName: unknown document type %q", docType)
	}
	currentYear := time.Now().Year()
	if year < minYear || year > currentYear {
		return errkind.Validation("year %d out of range [%d, %d] for document type %q", year, minYear, currentYear, docType)
	}
	return nil
}

// ValidateAssetClass checks that assetClass is one of the allowed B3 asset
// classes.
func ValidateAssetClass(assetClass string) error {
	if _, ok := AssetMarketCodes[assetClass]; !ok {
		return errkind.Validation("InvalidAssetName: unknown asset class %q", assetClass)
	}
	return nil
}

// MarketCodesForAssets resolves a set of asset classes to the union of
// their 3-digit market-type codes. Every asset class is validated first;
// the result is never empty for a non-empty, valid input set.
func MarketCodesForAssets(assetClasses []string) (map[string]struct{}, error) {
	if len(assetClasses) == 0 {
		return nil, errkind.Validation("asset class list must not be empty")
	}
	codes := make(map[string]struct{})
	for _, ac := range assetClasses {
		if err := ValidateAssetClass(ac); err != nil {
			return nil, err
		}
		for _, code := range AssetMarketCodes[ac] {
			codes[code] = struct{}{}
		}
	}
	return codes, nil
}

// ValidateYearRange checks a B3 COTAHIST year range: first <= last, both
// within [1986, current year].
func ValidateYearRange(first, last int) error {
	currentYear := time.Now().Year()
	if first > last {
		return errkind.Validation("first_year %d must not exceed last_year %d", first, last)
	}
	if first < b3MinYear || last > currentYear {
		return errkind.Validation("year range [%d, %d] outside supported bounds [%d, %d]", first, last, b3MinYear, currentYear)
	}
	return nil
}

// docList and assetList are lightweight structs used to run the
// go-playground/validator "dive" machinery over a batch of user-supplied
// names in one call, rather than looping by hand.
type docList struct {
	DocTypes []string `validate:"required,min=1,dive,required"`
}

type assetList struct {
	AssetClasses []string `validate:"required,min=1,dive,required"`
}

// ValidateDocTypes validates a non-empty batch of CVM document types.
func ValidateDocTypes(docTypes []string) error {
	if err := validate.Struct(docList{DocTypes: docTypes}); err != nil {
		return errkind.Validation("empty document type list: %v", err)
	}
	for _, dt := range docTypes {
		if err := ValidateDocType(dt); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAssetClasses validates a non-empty batch of B3 asset classes.
func ValidateAssetClasses(assetClasses []string) error {
	if err := validate.Struct(assetList{AssetClasses: assetClasses}); err != nil {
		return errkind.Validation("empty asset class list: %v", err)
	}
	for _, ac := range assetClasses {
		if err := ValidateAssetClass(ac); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	// Registered so callers may tag struct fields with these instead of
	// calling the ValidateX functions directly.
	_ = validate.RegisterValidation("cvm_doc_type", func(fl validator.FieldLevel) bool {
		return ValidateDocType(fl.Field().String()) == nil
	})
	_ = validate.RegisterValidation("b3_asset_class", func(fl validator.FieldLevel) bool {
		return ValidateAssetClass(fl.Field().String()) == nil
	})
}
