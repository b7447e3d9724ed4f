package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
)

var ErrBadActionData = errors.New("malformed action data")

// RebalanceAction is the decoded form of a payload's opaque action bytes.
// The wire encoding is three 32-byte words: int256 tickLower, int256
// tickUpper, uint256 reallocatePct (0..100). Decoding happens once, here at the
// ledger boundary; everything upstream treats the bytes as opaque.
//
// ReallocatePct rides along in the wire format for compatibility but is not
// applied to any balance movement.
type RebalanceAction struct {
	TickLower     int64
	TickUpper     int64
	ReallocatePct uint64
}

const (
	actionDataLen    = 32 * 3
	maxReallocatePct = 100
)

var (
	wordModulus  = new(big.Int).Lsh(big.NewInt(1), 256)
	signBoundary = new(big.Int).Lsh(big.NewInt(1), 255)
)

// signedWord reads a 32-byte big-endian word as a two's-complement int256.
func signedWord(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if v.Cmp(signBoundary) >= 0 {
		v.Sub(v, wordModulus)
	}
	return v
}

func EncodeRebalanceAction(a RebalanceAction) []byte {
	data := make([]byte, actionDataLen)
	copy(data[0:32], math.U256Bytes(big.NewInt(a.TickLower)))
	copy(data[32:64], math.U256Bytes(big.NewInt(a.TickUpper)))
	copy(data[64:96], math.U256Bytes(new(big.Int).SetUint64(a.ReallocatePct)))
	return data
}

func DecodeRebalanceAction(data []byte) (RebalanceAction, error) {
	if len(data) != actionDataLen {
		return RebalanceAction{}, ErrBadActionData
	}
	tickLower := signedWord(data[0:32])
	tickUpper := signedWord(data[32:64])
	pct := new(big.Int).SetBytes(data[64:96])

	if !tickLower.IsInt64() || !tickUpper.IsInt64() || !pct.IsUint64() {
		return RebalanceAction{}, ErrBadActionData
	}
	if pct.Uint64() > maxReallocatePct {
		return RebalanceAction{}, ErrBadActionData
	}
	return RebalanceAction{
		TickLower:     tickLower.Int64(),
		TickUpper:     tickUpper.Int64(),
		ReallocatePct: pct.Uint64(),
	}, nil
}
