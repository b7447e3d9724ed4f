package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRoundTripNegativeTicks(t *testing.T) {
	in := RebalanceAction{TickLower: -887220, TickUpper: 887220, ReallocatePct: 75}
	data := EncodeRebalanceAction(in)
	require.Len(t, data, 96)

	out, err := DecodeRebalanceAction(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 95, 97, 128} {
		_, err := DecodeRebalanceAction(make([]byte, n))
		assert.ErrorIs(t, err, ErrBadActionData, "length %d", n)
	}
}

func TestDecodeSignedWordBoundaries(t *testing.T) {
	// extreme int64 ticks exercise the two's-complement word decode
	in := RebalanceAction{TickLower: -9223372036854775808, TickUpper: 9223372036854775807}
	out, err := DecodeRebalanceAction(EncodeRebalanceAction(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// -1 encodes as all 0xFF bytes
	data := EncodeRebalanceAction(RebalanceAction{TickLower: -1, TickUpper: 1})
	for i := 0; i < 32; i++ {
		assert.EqualValues(t, 0xFF, data[i])
	}
}

func TestDecodeRejectsReallocatePctAbove100(t *testing.T) {
	ok, err := DecodeRebalanceAction(EncodeRebalanceAction(RebalanceAction{TickLower: -1, TickUpper: 1, ReallocatePct: 100}))
	require.NoError(t, err)
	assert.EqualValues(t, 100, ok.ReallocatePct)

	_, err = DecodeRebalanceAction(EncodeRebalanceAction(RebalanceAction{TickLower: -1, TickUpper: 1, ReallocatePct: 101}))
	assert.ErrorIs(t, err, ErrBadActionData)
}

func TestDecodeRejectsOutOfRangeWords(t *testing.T) {
	data := EncodeRebalanceAction(RebalanceAction{TickLower: -1, TickUpper: 1})
	// overwrite reallocatePct with a value above uint64
	for i := 64; i < 80; i++ {
		data[i] = 0xFF
	}
	_, err := DecodeRebalanceAction(data)
	assert.ErrorIs(t, err, ErrBadActionData)
}
