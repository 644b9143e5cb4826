package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONMapRoundTripKeepsCounters(t *testing.T) {
	in := JSONMap{"failedPaymentAttempts": 2, "lastFailureReason": "card_declined"}
	val, err := in.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(val))
	require.Equal(t, 2, out.Int("failedPaymentAttempts"))
	require.Equal(t, "card_declined", out["lastFailureReason"])
}

func TestJSONMapScanNilAndEmpty(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	require.NotNil(t, m)
	require.Equal(t, 0, m.Int("missing"))

	require.NoError(t, m.Scan([]byte{}))
	require.Len(t, m, 0)

	require.Error(t, m.Scan(42))
}

func TestJSONMapCloneDoesNotAlias(t *testing.T) {
	orig := JSONMap{"a": 1}
	cp := orig.Clone()
	cp["a"] = 2
	require.Equal(t, 1, orig.Int("a"))
}
