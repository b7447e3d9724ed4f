package optimizer

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesFrom(prices ...float64) []PriceSample {
	base := time.Unix(1_700_000_000, 0)
	out := make([]PriceSample, len(prices))
	for i, p := range prices {
		out[i] = PriceSample{Price: decimal.NewFromFloat(p), Timestamp: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestVolatilityNeedsTwoSamples(t *testing.T) {
	_, err := AnnualizedVolatility(nil, 8760)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = AnnualizedVolatility(samplesFrom(100), 8760)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestVolatilityConstantSeriesIsZero(t *testing.T) {
	vol, err := AnnualizedVolatility(samplesFrom(100, 100, 100, 100), 8760)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestVolatilityMatchesManualComputation(t *testing.T) {
	prices := []float64{100, 110, 99, 105}
	vol, err := AnnualizedVolatility(samplesFrom(prices...), 8760)
	require.NoError(t, err)

	returns := make([]float64, 0, 3)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	want := math.Sqrt(sq/float64(len(returns))) * math.Sqrt(8760)

	assert.InDelta(t, want, vol, 1e-12)
}

func TestVolatilitySortsOutOfOrderSamples(t *testing.T) {
	ordered := samplesFrom(100, 110, 99, 105)
	shuffled := []PriceSample{ordered[2], ordered[0], ordered[3], ordered[1]}

	want, err := AnnualizedVolatility(ordered, 8760)
	require.NoError(t, err)
	got, err := AnnualizedVolatility(shuffled, 8760)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVolatilitySkipsNonPositivePrices(t *testing.T) {
	// every return touches the zero price, so no usable returns remain
	_, err := AnnualizedVolatility(samplesFrom(100, 0, 110), 8760)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// with a clean pair present the zero sample is just skipped
	vol, err := AnnualizedVolatility(samplesFrom(100, 0, 110, 110), 8760)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}
