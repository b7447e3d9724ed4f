package optimizer

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData indicates that not enough price points were provided
// to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// PriceSample is one observation from the market-data source.
type PriceSample struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// AnnualizedVolatility computes historical volatility from a price series
// using logarithmic returns and population standard deviation. The
// annualization factor should match the sampling frequency (8760 for hourly,
// 365 for daily). Samples are sorted chronologically first.
func AnnualizedVolatility(samples []PriceSample, annualizationFactor float64) (float64, error) {
	n := len(samples)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	sorted := make([]PriceSample, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := sorted[i].Price.InexactFloat64()
		previous := sorted[i-1].Price.InexactFloat64()
		if previous <= 0 || current <= 0 {
			continue // non-positive prices would break the log
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}
	if len(logReturns) == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}
	variance := sumSqDiff / float64(len(logReturns))

	return math.Sqrt(variance) * math.Sqrt(annualizationFactor), nil
}
