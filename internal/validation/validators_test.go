package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocType(t *testing.T) {
	assert.NoError(t, ValidateDocType("DFP"))
	assert.Error(t, ValidateDocType("BOGUS"))
}

func TestValidateDocYearBounds(t *testing.T) {
	assert.NoError(t, ValidateDocYear("DFP", 2010))
	assert.Error(t, ValidateDocYear("DFP", 2009))
	assert.NoError(t, ValidateDocYear("ITR", 2011))
	assert.Error(t, ValidateDocYear("ITR", 2010))
	assert.Error(t, ValidateDocYear("DFP", time.Now().Year()+1))
}

func TestValidateAssetClass(t *testing.T) {
	assert.NoError(t, ValidateAssetClass("ações"))
	assert.Error(t, ValidateAssetClass("bonds"))
}

func TestMarketCodesForAssets(t *testing.T) {
	codes, err := MarketCodesForAssets([]string{"ações"})
	assert.NoError(t, err)
	assert.Contains(t, codes, "010")
	assert.Contains(t, codes, "020")

	_, err = MarketCodesForAssets(nil)
	assert.Error(t, err)

	_, err = MarketCodesForAssets([]string{"bonds"})
	assert.Error(t, err)
}

func TestValidateYearRange(t *testing.T) {
	assert.NoError(t, ValidateYearRange(1986, 2023))
	assert.Error(t, ValidateYearRange(1985, 2023))
	assert.Error(t, ValidateYearRange(2024, 2020))
	assert.Error(t, ValidateYearRange(2020, time.Now().Year()+1))
}
