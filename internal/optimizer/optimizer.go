package optimizer

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/signer"
)

var (
	ErrNoPriceData    = errors.New("price source returned no usable data")
	ErrBelowThreshold = errors.New("drift below vault rebalance threshold")
)

var optLog = logger.Component("optimizer")

// tickBase is the Uniswap v3 tick convention: price = 1.0001^tick.
const tickBase = 1.0001

// PriceSource returns recent price samples for a vault's token pair. The
// market-data backend is an external collaborator; tests and the demo inject
// simulated series.
type PriceSource func(ctx context.Context, vaultID uint64) ([]PriceSample, error)

// Recommendation is a fully signed rebalance instruction ready for relaying.
type Recommendation struct {
	VaultID    uint64                   `json:"vault_id"`
	Action     ledger.RebalanceAction   `json:"action"`
	Volatility float64                  `json:"volatility"`
	DriftBps   int64                    `json:"drift_bps"`
	Payload    *signer.RebalancePayload `json:"payload"`
	Signature  string                   `json:"signature"`
}

// Optimizer scores vault drift from injected price samples and, when the
// drift exceeds the vault's threshold, produces a signed RebalancePayload.
// It is advisory only: it never mutates ledger state.
type Optimizer struct {
	source        PriceSource
	sig           *signer.Signer
	reg           *registry.Registry
	led           *ledger.Ledger
	payloadTTL    time.Duration
	annualization float64
	now           func() time.Time
}

func New(source PriceSource, sig *signer.Signer, reg *registry.Registry, led *ledger.Ledger, payloadTTL time.Duration, annualization float64) *Optimizer {
	if payloadTTL <= 0 {
		payloadTTL = 2 * time.Minute
	}
	if annualization <= 0 {
		annualization = 8760
	}
	return &Optimizer{
		source:        source,
		sig:           sig,
		reg:           reg,
		led:           led,
		payloadTTL:    payloadTTL,
		annualization: annualization,
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (o *Optimizer) SetClock(now func() time.Time) {
	o.now = now
}

// Evaluate measures how far the current price has drifted from the center of
// the vault's active range and recommends a recentered range when the drift
// in basis points exceeds the vault's threshold. Returns ErrBelowThreshold
// when no rebalance is warranted.
func (o *Optimizer) Evaluate(ctx context.Context, vaultID uint64) (*Recommendation, error) {
	v, err := o.led.GetVault(vaultID)
	if err != nil {
		return nil, err
	}

	samples, err := o.source(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoPriceData
	}

	vol, err := AnnualizedVolatility(samples, o.annualization)
	if err != nil {
		return nil, err
	}

	last := samples[len(samples)-1].Price.InexactFloat64()
	if last <= 0 {
		return nil, ErrNoPriceData
	}
	currentTick := priceToTick(last)

	mid := (v.Params.TickLower + v.Params.TickUpper) / 2
	halfWidth := (v.Params.TickUpper - v.Params.TickLower) / 2
	if halfWidth <= 0 {
		return nil, ledger.ErrInvalidTickRange
	}

	drift := currentTick - mid
	if drift < 0 {
		drift = -drift
	}
	driftBps := drift * 10000 / halfWidth

	optLog.Debug("vault drift evaluated",
		"vault_id", vaultID,
		"current_tick", currentTick,
		"mid_tick", mid,
		"drift_bps", driftBps,
		"threshold_bps", v.Params.RebalanceThresholdBps,
		"volatility", vol,
	)

	if driftBps <= v.Params.RebalanceThresholdBps {
		return nil, ErrBelowThreshold
	}

	// Recenter the existing width on the current tick. Reallocation stays a
	// wire-format hint; the ledger does not act on it.
	pct := uint64(driftBps / 100)
	if pct > 100 {
		pct = 100
	}
	action := ledger.RebalanceAction{
		TickLower:     currentTick - halfWidth,
		TickUpper:     currentTick + halfWidth,
		ReallocatePct: pct,
	}

	nonce := o.reg.Nonce(o.sig.Address())
	payload := o.sig.NewPayload(vaultID, nonce, ledger.EncodeRebalanceAction(action), o.now(), o.payloadTTL)
	sigHex, err := o.sig.SignPayload(payload)
	if err != nil {
		return nil, err
	}

	optLog.Info("rebalance recommended",
		"vault_id", vaultID,
		"tick_lower", action.TickLower,
		"tick_upper", action.TickUpper,
		"drift_bps", driftBps,
	)
	return &Recommendation{
		VaultID:    vaultID,
		Action:     action,
		Volatility: vol,
		DriftBps:   driftBps,
		Payload:    payload,
		Signature:  sigHex,
	}, nil
}

func priceToTick(price float64) int64 {
	return int64(math.Round(math.Log(price) / math.Log(tickBase)))
}
