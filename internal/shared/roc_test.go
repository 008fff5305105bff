package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuarterEnd(t *testing.T) {
	assert.Equal(t, time.Date(2024, time.September, 30, 0, 0, 0, 0, time.UTC), QuarterEnd(113, 3))
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), QuarterEnd(113, 1))
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), QuarterEnd(112, 4))
}

func TestValidateStockID(t *testing.T) {
	assert.NoError(t, ValidateStockID("2330"))
	assert.NoError(t, ValidateStockID("00878B"))
	assert.Error(t, ValidateStockID("23"))
	assert.Error(t, ValidateStockID("2330-TW"))
	assert.Error(t, ValidateStockID(""))
}

func TestValidateROCYear(t *testing.T) {
	assert.NoError(t, ValidateROCYear(113))
	assert.Error(t, ValidateROCYear(101))
	assert.Error(t, ValidateROCYear(201))
}
