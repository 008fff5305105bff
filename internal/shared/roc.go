package shared

import (
	"fmt"
	"regexp"
	"time"
)

// ROC calendar offset. ROC year + 1911 = Gregorian year.
const ROCOffset = 1911

var stockIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{4,6}$`)

// ValidateStockID checks the 4-6 alphanumeric form used by TWSE codes.
func ValidateStockID(stockID string) error {
	if !stockIDPattern.MatchString(stockID) {
		return fmt.Errorf("shared: invalid stock id %q", stockID)
	}
	return nil
}

// ValidateROCYear bounds the ROC reporting year to the IFRS filing era.
func ValidateROCYear(year int) error {
	if year < 102 || year > 200 {
		return fmt.Errorf("shared: roc year %d out of range", year)
	}
	return nil
}

// ValidateQuarter checks quarter is 1..4.
func ValidateQuarter(quarter int) error {
	if quarter < 1 || quarter > 4 {
		return fmt.Errorf("shared: quarter %d out of range", quarter)
	}
	return nil
}

// QuarterEnd returns the reporting period end date for a ROC year and quarter.
func QuarterEnd(rocYear, quarter int) time.Time {
	year := rocYear + ROCOffset
	switch quarter {
	case 1:
		return time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC)
	case 2:
		return time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
}

// FiscalYearStart returns January 1st of the Gregorian year for a ROC year.
func FiscalYearStart(rocYear int) time.Time {
	return time.Date(rocYear+ROCOffset, time.January, 1, 0, 0, 0, 0, time.UTC)
}
