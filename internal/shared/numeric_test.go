package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"thousands separators", "1,234,567", "1234567", true},
		{"negative with decimals", "-1,234.56", "-1234.56", true},
		{"surrounding whitespace", "  42 ", "42", true},
		{"empty", "", "", false},
		{"half-width dash", "-", "", false},
		{"full-width em dash", "—", "", false},
		{"full-width en dash", "–", "", false},
		{"pandas nan artifact", "nan", "", false},
		{"not applicable", "不適用", "", false},
		{"garbage", "abc", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDecimalString(tc.in)
			require.Equal(t, tc.valid, ok)
			if tc.valid {
				want, err := decimal.NewFromString(tc.want)
				require.NoError(t, err)
				assert.True(t, want.Equal(got), "got %s want %s", got, want)
			}
		})
	}
}

func TestParseDecimalNilPointer(t *testing.T) {
	_, ok := ParseDecimal(nil)
	assert.False(t, ok)
}

// Formatting a parsed value and parsing it again yields the same value.
func TestParseDecimalIdempotent(t *testing.T) {
	for _, in := range []string{"1,234,567", "-98.7650", "0", "278163107"} {
		first, ok := ParseDecimalString(in)
		require.True(t, ok, in)
		second, ok := ParseDecimalString(first.String())
		require.True(t, ok, in)
		assert.True(t, first.Equal(second))
	}
}

func TestParseFloatStripsPercent(t *testing.T) {
	f, ok := ParseFloat("25.02%")
	require.True(t, ok)
	assert.InDelta(t, 25.02, f, 1e-9)
}

func TestParseInt64TruncatesDecimals(t *testing.T) {
	v, ok := ParseInt64("1,600,000.0")
	require.True(t, ok)
	assert.Equal(t, int64(1600000), v)
}
