package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisRow_MarshalMissingAsNull(t *testing.T) {
	row := AnalysisRow{
		Country: "DEU",
		Year:    2020,
		Metrics: map[string]Cell{
			"roic": {Country: "DEU", Year: 2020, Metric: "roic", Mean: 0.12,
				Median: 0.11, WeightedMean: 0.13, StdDev: math.NaN(), NFirms: 1},
		},
		MacroValue:   math.NaN(),
		Gini:         32.1,
		GDPPerCapita: math.NaN(),
	}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Nil(t, decoded["macro_value"])
	assert.Nil(t, decoded["gdp_per_capita"])
	assert.Equal(t, 32.1, decoded["gini"])

	cell := decoded["metrics"].(map[string]interface{})["roic"].(map[string]interface{})
	assert.Equal(t, 0.12, cell["mean"])
	assert.Nil(t, cell["std_dev"])
	assert.EqualValues(t, 1, cell["n_firms"])
}
