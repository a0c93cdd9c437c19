package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Run("insufficient history is all neutral", func(t *testing.T) {
		series := []float64{5, -5, 10, -10, 3, 2, 1, 0, -1}
		got := Classify(series, 0.2)
		assert.False(t, got.Sufficient)
		assert.Zero(t, got.Threshold)
		for _, d := range got.Directions {
			assert.Equal(t, DirNeutral, d)
		}
	})

	t.Run("missing values do not count as history", func(t *testing.T) {
		series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, math.NaN(), math.Inf(1)}
		got := Classify(series, 1)
		assert.False(t, got.Sufficient)
		assert.Len(t, got.Directions, len(series))
	})

	t.Run("constant series stays neutral", func(t *testing.T) {
		series := make([]float64, 20)
		got := Classify(series, 1)
		require.True(t, got.Sufficient)
		assert.Zero(t, got.Threshold)
		for _, d := range got.Directions {
			assert.Equal(t, DirNeutral, d)
		}
	})

	t.Run("band is sample std times multiplier", func(t *testing.T) {
		series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, -9, math.NaN()}
		got := Classify(series, 0.5)
		require.True(t, got.Sufficient)
		valid := series[:11]
		assert.InDelta(t, sampleStdDev(valid)*0.5, got.Threshold, 1e-12)
		assert.Equal(t, DirNeutral, got.Directions[0])
		assert.Equal(t, DirLong, got.Directions[9])
		assert.Equal(t, DirShort, got.Directions[10])
		assert.Equal(t, DirNeutral, got.Directions[11], "NaN classifies as neutral")
	})

	t.Run("deterministic", func(t *testing.T) {
		series := []float64{0.5, -1.2, 3.3, 0.1, -0.7, 2.2, -2.4, 1.1, 0, 0.9, -3}
		assert.Equal(t, Classify(series, 0.2), Classify(series, 0.2))
	})
}

func TestScenarioMatrix(t *testing.T) {
	dirs := []Direction{DirShort, DirNeutral, DirLong}
	for _, p := range dirs {
		for _, d := range dirs {
			for _, o := range dirs {
				c, ok := Lookup(p, d, o)
				assert.True(t, ok, "(%d,%d,%d) must be mapped", p, d, o)
				assert.NotEmpty(t, c.Label)
			}
		}
	}

	cases := []struct {
		name    string
		p, d, o Direction
		want    Conclusion
	}{
		{"strong long", 1, 1, 1, Conclusion{"StrongLong", BiasBuy}},
		{"strong short", -1, 1, 1, Conclusion{"StrongShort", BiasSell}},
		{"no interest", 0, 0, 0, Conclusion{"NoInterest", BiasNoTrade}},
		{"short covering", 1, 1, -1, Conclusion{"ShortCovering", BiasBuy}},
		{"long covering", -1, 1, -1, Conclusion{"LongCovering", BiasSell}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Conclude(tc.p, tc.d, tc.o))
		})
	}

	t.Run("out of domain resolves to unknown", func(t *testing.T) {
		c, ok := Lookup(2, 0, 0)
		assert.False(t, ok)
		assert.Equal(t, Conclusion{"Unknown", BiasNoTrade}, c)
		assert.Equal(t, Conclusion{"Unknown", BiasNoTrade}, Conclude(0, -3, 1))
	})
}
