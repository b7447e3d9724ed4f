package optimizer

import (
	"context"
	"sync"
	"time"
)

// feedCapacity bounds the retained samples per vault. Volatility only needs
// a recent window, so old samples are dropped oldest-first.
const feedCapacity = 512

// MemoryPriceFeed is a push-based price store. Operators or data collectors
// feed samples in; Samples satisfies PriceSource for the optimizer.
type MemoryPriceFeed struct {
	mu      sync.RWMutex
	samples map[uint64][]PriceSample
}

func NewMemoryPriceFeed() *MemoryPriceFeed {
	return &MemoryPriceFeed{samples: make(map[uint64][]PriceSample)}
}

func (f *MemoryPriceFeed) Record(vaultID uint64, sample PriceSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	series := append(f.samples[vaultID], sample)
	if len(series) > feedCapacity {
		series = series[len(series)-feedCapacity:]
	}
	f.samples[vaultID] = series
}

func (f *MemoryPriceFeed) Samples(ctx context.Context, vaultID uint64) ([]PriceSample, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	series := f.samples[vaultID]
	out := make([]PriceSample, len(series))
	copy(out, series)
	return out, nil
}
