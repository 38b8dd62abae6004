// Package dataset loads the three source panels (firm financials, WEO macro
// series, inequality data) from CSV into typed rows, with tolerant numeric
// parsing and relational-merge key validation.
package dataset

import (
	"math"
)

// FirmYear is one firm-year observation from the firm financials panel.
// Monetary fields are in the source currency; missing values are NaN.
type FirmYear struct {
	FirmID             string
	Name               string
	Country            string
	Year               int
	Revenue            float64
	EBITDA             float64
	TotalAssets        float64
	CurrentLiabilities float64
	TotalDebt          float64
	TotalEquity        float64
}

// HasCoreFields reports whether the row carries the fields every metric
// derivation needs.
func (f FirmYear) HasCoreFields() bool {
	return f.FirmID != "" && f.Country != "" && f.Year > 0 &&
		!math.IsNaN(f.Revenue) && !math.IsNaN(f.EBITDA)
}

// MacroObservation is one country-year value of a WEO subject series.
type MacroObservation struct {
	Country string
	Subject string
	Year    int
	Value   float64
}

// Inequality is one country-year observation of the Gini/GDP dataset.
type Inequality struct {
	Country      string
	Year         int
	Gini         float64
	GDPPerCapita float64
}

// CountryYearKey identifies a row in any country-year keyed dataset.
type CountryYearKey struct {
	Country string
	Year    int
}
