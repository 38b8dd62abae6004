package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "firmpulse/internal/errors"
)

func TestValidateUniqueKeys(t *testing.T) {
	keys := []CountryYearKey{
		{Country: "DEU", Year: 2019},
		{Country: "DEU", Year: 2020},
		{Country: "FRA", Year: 2020},
	}
	require.NoError(t, ValidateUniqueKeys("test", keys))

	keys = append(keys, CountryYearKey{Country: "DEU", Year: 2020})
	err := ValidateUniqueKeys("test", keys)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMerge))
	assert.Contains(t, err.Error(), "DEU/2020")
}

func TestMacroIndex(t *testing.T) {
	obs := []MacroObservation{
		{Country: "DEU", Subject: "NGDP_RPCH", Year: 2019, Value: 1.0},
		{Country: "DEU", Subject: "NGDP_RPCH", Year: 2020, Value: -4.6},
	}

	index, err := MacroIndex(obs)
	require.NoError(t, err)
	assert.InDelta(t, -4.6, index[CountryYearKey{Country: "DEU", Year: 2020}], 1e-9)
}

func TestMacroIndex_DuplicateKey(t *testing.T) {
	obs := []MacroObservation{
		{Country: "DEU", Year: 2020, Value: 1},
		{Country: "DEU", Year: 2020, Value: 2},
	}
	_, err := MacroIndex(obs)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMerge))
}

func TestInequalityIndex(t *testing.T) {
	rows := []Inequality{
		{Country: "FRA", Year: 2020, Gini: 32.4, GDPPerCapita: 38959},
	}
	index, err := InequalityIndex(rows)
	require.NoError(t, err)

	got, ok := index[CountryYearKey{Country: "FRA", Year: 2020}]
	require.True(t, ok)
	assert.InDelta(t, 32.4, got.Gini, 1e-9)
}
