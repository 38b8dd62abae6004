package dataset

import (
	"fmt"

	"firmpulse/internal/errors"
)

// ValidateUniqueKeys checks that no country-year key appears twice, the
// precondition for a one-to-one merge. The name identifies the offending
// dataset in the error.
func ValidateUniqueKeys(name string, keys []CountryYearKey) error {
	seen := make(map[CountryYearKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return errors.NewMergeError(
				fmt.Sprintf("%s has duplicate key %s/%d; one-to-one merge impossible", name, k.Country, k.Year), nil)
		}
		seen[k] = true
	}
	return nil
}

// MacroIndex builds a country-year lookup over macro observations after
// verifying key uniqueness.
func MacroIndex(obs []MacroObservation) (map[CountryYearKey]float64, error) {
	keys := make([]CountryYearKey, len(obs))
	for i, o := range obs {
		keys[i] = CountryYearKey{Country: o.Country, Year: o.Year}
	}
	if err := ValidateUniqueKeys("WEO macro", keys); err != nil {
		return nil, err
	}

	index := make(map[CountryYearKey]float64, len(obs))
	for _, o := range obs {
		index[CountryYearKey{Country: o.Country, Year: o.Year}] = o.Value
	}
	return index, nil
}

// InequalityIndex builds a country-year lookup over inequality rows after
// verifying key uniqueness.
func InequalityIndex(rows []Inequality) (map[CountryYearKey]Inequality, error) {
	keys := make([]CountryYearKey, len(rows))
	for i, r := range rows {
		keys[i] = CountryYearKey{Country: r.Country, Year: r.Year}
	}
	if err := ValidateUniqueKeys("inequality", keys); err != nil {
		return nil, err
	}

	index := make(map[CountryYearKey]Inequality, len(rows))
	for _, r := range rows {
		index[CountryYearKey{Country: r.Country, Year: r.Year}] = r
	}
	return index, nil
}
