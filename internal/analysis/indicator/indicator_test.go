package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMASeries(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10}
	got := EMASeries(closes, 3)
	require.Len(t, got, len(closes))
	assert.Zero(t, got[0])
	assert.Zero(t, got[1])
	for _, v := range got[2:] {
		assert.InDelta(t, 10, v, 1e-9)
	}

	assert.Equal(t, []float64{0, 0}, EMASeries([]float64{1, 2}, 5), "short history is unavailable")
}

func TestEMASeriesTracksTrend(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	got := EMASeries(closes, 10)
	last := got[len(got)-1]
	assert.Less(t, last, closes[len(closes)-1])
	assert.Greater(t, last, closes[len(closes)-10])
}
