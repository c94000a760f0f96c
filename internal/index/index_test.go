package index

import (
	"math"
	"testing"

	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s2(t *testing.T) *sensor.Profile {
	p, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)
	return p
}

func TestCatalogHasThirteenFormulasOverTheMinimalBandSet(t *testing.T) {
	assert.Len(t, Formulas(), 13)
	minimal := map[sensor.Band]bool{
		sensor.Red: true, sensor.Green: true, sensor.Blue: true,
		sensor.NIR: true, sensor.SWIR1: true, sensor.SWIR2: true,
	}
	for _, f := range Formulas() {
		bands := f.RequiredBands()
		assert.GreaterOrEqual(t, len(bands), 2, f)
		assert.LessOrEqual(t, len(bands), 4, f)
		for _, b := range bands {
			assert.True(t, minimal[b], "%s uses %s", f, b)
		}
		for _, id := range []sensor.ID{sensor.L8, sensor.S2} {
			p, _ := sensor.Lookup(id)
			_, err := Bind(f, p)
			assert.NoError(t, err, "%s on %s", f, id)
		}
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		formula Formula
		values  []float64
		want    float64
	}{
		{NBR, []float64{0.5, 0.1}, 0.4 / 0.6},
		{NDVI, []float64{0.6, 0.2}, 0.5},
		{NDMI, []float64{0.3, 0.3}, 0},
		{SAVI, []float64{0.5, 0.25}, 0.25 / 1.25 * 1.5},
		{GCI, []float64{0.4, 0.2}, 1},
		{RGR, []float64{0.3, 0.6}, 0.5},
		{EVI, []float64{0.5, 0.1, 0.1}, 2.5 * 0.4 / (0.5 + 0.6 - 0.75 + 1)},
		{DFI, []float64{0.1, 0.5, 0.4, 0.2}, 0.5 * 0.2},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.formula, tt.values)
		require.NoError(t, err, tt.formula)
		assert.InDelta(t, tt.want, got, 1e-9, tt.formula)
	}
}

func TestEvaluateZeroDenominator(t *testing.T) {
	_, err := Evaluate(NBR, []float64{0, 0})
	assert.ErrorIs(t, err, ErrDivisionUndefined)

	_, err = Evaluate(SIPI, []float64{0.4, 0.1, 0.4})
	assert.ErrorIs(t, err, ErrDivisionUndefined)

	_, err = Evaluate(DFI, []float64{0.1, 0.5, 0, 0.2})
	assert.ErrorIs(t, err, ErrDivisionUndefined)
}

func TestComputeNBR(t *testing.T) {
	r := raster.New(2, 2, [6]float64{0, 1, 0, 2, 0, -1}, "B8", "B12", "B4")
	nir, _ := r.Band("B8")
	swir2, _ := r.Band("B12")
	copy(nir, []float64{0.5, 0, raster.NoData, 0.9})
	copy(swir2, []float64{0.1, 0, 0.2, 0.05})

	out, err := Compute(r, s2(t), NBR)
	require.NoError(t, err)
	require.Len(t, out.Bands, 1)
	assert.Equal(t, "NBR", out.Bands[0].Name)

	data := out.Bands[0].Data
	assert.InDelta(t, 0.667, data[0], 1e-3)
	assert.True(t, raster.IsNoData(data[1]), "zero denominator")
	assert.True(t, raster.IsNoData(data[2]), "missing input")
	assert.InDelta(t, 0.85/0.95, data[3], 1e-9)
}

func TestNBRStaysWithinUnitRange(t *testing.T) {
	for nir := 0.0; nir <= 1; nir += 0.05 {
		for swir := 0.0; swir <= 1; swir += 0.05 {
			v, err := Evaluate(NBR, []float64{nir, swir})
			if err != nil {
				continue
			}
			assert.True(t, v >= -1 && v <= 1 && !math.IsNaN(v), "nir=%v swir=%v -> %v", nir, swir, v)
		}
	}
}

func TestComputeMissingChannel(t *testing.T) {
	r := raster.New(1, 1, [6]float64{}, "B8")
	_, err := Compute(r, s2(t), NBR)
	assert.Error(t, err)
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("nbr")
	require.NoError(t, err)
	assert.Equal(t, NBR, f)

	_, err = ParseFormula("BAI")
	assert.ErrorIs(t, err, ErrUnknownFormula)
}
