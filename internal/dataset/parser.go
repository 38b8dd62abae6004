package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"firmpulse/internal/errors"
)

// missingTokens are cell values treated as missing observations rather than
// parse failures. These show up across the WEO and firm panel exports.
var missingTokens = map[string]bool{
	"":     true,
	"n/a":  true,
	"na":   true,
	"nan":  true,
	"--":   true,
	"-":    true,
	".":    true,
	"null": true,
}

// ParseNumeric converts a CSV cell into a float64, mapping missing-value
// tokens to NaN. Thousands separators and surrounding whitespace are
// stripped; parenthesized values are negative (accounting convention).
func ParseNumeric(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), errors.NewParsingError(fmt.Sprintf("invalid numeric cell %q", cell), err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// headerIndex maps lower-cased, trimmed header names to column positions.
// A UTF-8 BOM on the first header cell is stripped.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// requireColumns verifies the presence of mandatory columns.
func requireColumns(idx map[string]int, names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.NewParsingError(
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// cellAt returns the named cell of a record, or "" when the column is absent
// or the record is short.
func cellAt(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// ParseFirmFinancials reads the firm financials panel. Expected columns:
// firm_id, name (optional), country, year, revenue, ebitda, total_assets,
// current_liabilities, total_debt, total_equity. Rows without firm_id,
// country, or a parseable year are skipped; numeric cells that fail to parse
// are an error.
func ParseFirmFinancials(r io.Reader) ([]FirmYear, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("read firm financials header", err)
	}
	idx := headerIndex(header)
	if err := requireColumns(idx, "firm_id", "country", "year", "revenue", "ebitda"); err != nil {
		return nil, err
	}

	var rows []FirmYear
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("read firm financials line %d", line), err)
		}

		firmID := strings.TrimSpace(cellAt(record, idx, "firm_id"))
		country := strings.ToUpper(strings.TrimSpace(cellAt(record, idx, "country")))
		year, yerr := strconv.Atoi(strings.TrimSpace(cellAt(record, idx, "year")))
		if firmID == "" || country == "" || yerr != nil {
			continue
		}

		row := FirmYear{
			FirmID:  firmID,
			Name:    strings.TrimSpace(cellAt(record, idx, "name")),
			Country: country,
			Year:    year,
		}

		numerics := []struct {
			column string
			target *float64
		}{
			{"revenue", &row.Revenue},
			{"ebitda", &row.EBITDA},
			{"total_assets", &row.TotalAssets},
			{"current_liabilities", &row.CurrentLiabilities},
			{"total_debt", &row.TotalDebt},
			{"total_equity", &row.TotalEquity},
		}
		for _, nc := range numerics {
			v, err := ParseNumeric(cellAt(record, idx, nc.column))
			if err != nil {
				return nil, errors.NewParsingError(
					fmt.Sprintf("firm financials line %d column %s", line, nc.column), err)
			}
			*nc.target = v
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.NewParsingError("firm financials contained no usable rows", nil)
	}
	return rows, nil
}

// ParseWEO reads a WEO export in wide format (one row per country-subject,
// years as columns) and pivots it into long country-year observations for
// the requested subject code. Year columns are recognized as four-digit
// headers between 1900 and 2100.
func ParseWEO(r io.Reader, subject string) ([]MacroObservation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("read WEO header", err)
	}
	idx := headerIndex(header)
	if err := requireColumns(idx, "country", "subject_code"); err != nil {
		return nil, err
	}

	// Identify year columns from the header
	type yearColumn struct {
		year int
		col  int
	}
	var yearCols []yearColumn
	for i, h := range header {
		y, err := strconv.Atoi(strings.TrimSpace(h))
		if err == nil && y >= 1900 && y <= 2100 {
			yearCols = append(yearCols, yearColumn{year: y, col: i})
		}
	}
	if len(yearCols) == 0 {
		return nil, errors.NewParsingError("WEO file has no year columns", nil)
	}

	subject = strings.ToUpper(strings.TrimSpace(subject))

	var obs []MacroObservation
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("read WEO line %d", line), err)
		}

		if strings.ToUpper(strings.TrimSpace(cellAt(record, idx, "subject_code"))) != subject {
			continue
		}
		country := strings.ToUpper(strings.TrimSpace(cellAt(record, idx, "country")))
		if country == "" {
			continue
		}

		for _, yc := range yearCols {
			if yc.col >= len(record) {
				continue
			}
			v, err := ParseNumeric(record[yc.col])
			if err != nil {
				return nil, errors.NewParsingError(
					fmt.Sprintf("WEO line %d year %d", line, yc.year), err)
			}
			if math.IsNaN(v) {
				continue // missing years are simply absent from the long form
			}
			obs = append(obs, MacroObservation{
				Country: country,
				Subject: subject,
				Year:    yc.year,
				Value:   v,
			})
		}
	}

	if len(obs) == 0 {
		return nil, errors.NewParsingError(
			fmt.Sprintf("WEO file contained no observations for subject %s", subject), nil)
	}
	return obs, nil
}

// ParseInequality reads the Gini/GDP inequality dataset. Expected columns:
// country, year, gini, gdp_per_capita.
func ParseInequality(r io.Reader) ([]Inequality, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("read inequality header", err)
	}
	idx := headerIndex(header)
	if err := requireColumns(idx, "country", "year", "gini"); err != nil {
		return nil, err
	}

	var rows []Inequality
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("read inequality line %d", line), err)
		}

		country := strings.ToUpper(strings.TrimSpace(cellAt(record, idx, "country")))
		year, yerr := strconv.Atoi(strings.TrimSpace(cellAt(record, idx, "year")))
		if country == "" || yerr != nil {
			continue
		}

		gini, err := ParseNumeric(cellAt(record, idx, "gini"))
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("inequality line %d column gini", line), err)
		}
		gdp, err := ParseNumeric(cellAt(record, idx, "gdp_per_capita"))
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("inequality line %d column gdp_per_capita", line), err)
		}

		rows = append(rows, Inequality{Country: country, Year: year, Gini: gini, GDPPerCapita: gdp})
	}

	if len(rows) == 0 {
		return nil, errors.NewParsingError("inequality file contained no usable rows", nil)
	}
	return rows, nil
}
