package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StrategyParams is the per-vault tunable price range. Mutated only by a
// successful rebalance execution.
type StrategyParams struct {
	TickLower             int64 `json:"tick_lower"`
	TickUpper             int64 `json:"tick_upper"`
	RebalanceThresholdBps int64 `json:"rebalance_threshold_bps"`
	AutoRebalance         bool  `json:"auto_rebalance"`
}

// Vault is one pooled LP position. The token pair and id are immutable after
// creation; vaults are never deleted, only deactivated.
type Vault struct {
	ID            uint64
	Owner         common.Address
	TokenA        common.Address
	TokenB        common.Address
	TotalShares   *big.Int
	TotalTokenA   *big.Int
	TotalTokenB   *big.Int
	Strategy      common.Address // optional linked strategy contract, zero if none
	Params        StrategyParams
	LastRebalance time.Time
	IsActive      bool
}

// snapshot returns a deep copy so callers can't mutate ledger state through
// returned pointers.
func (v *Vault) snapshot() *Vault {
	cp := *v
	cp.TotalShares = new(big.Int).Set(v.TotalShares)
	cp.TotalTokenA = new(big.Int).Set(v.TotalTokenA)
	cp.TotalTokenB = new(big.Int).Set(v.TotalTokenB)
	return &cp
}
