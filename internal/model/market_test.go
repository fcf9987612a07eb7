package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeQuotes(t *testing.T) {
	existing := []Quote{
		{Time: 100, Close: 1},
		{Time: 200, Close: 2},
		{Time: 300, Close: 3},
	}
	incoming := []Quote{
		{Time: 400, Close: 4},
		{Time: 300, Close: 3.5},
		{Time: 50, Close: 0.5},
	}

	merged := MergeQuotes(existing, incoming)
	require.Len(t, merged, 5)
	for i := 1; i < len(merged); i++ {
		assert.Less(t, merged[i-1].Time, merged[i].Time)
	}
	assert.Equal(t, 3.5, merged[3].Close, "incoming bar replaces stored bar")
	assert.Equal(t, int64(50), merged[0].Time)
}

func TestMergeQuotesEmpty(t *testing.T) {
	assert.Empty(t, MergeQuotes(nil, nil))
	assert.Len(t, MergeQuotes(nil, []Quote{{Time: 1}}), 1)
}

func TestAlertConf(t *testing.T) {
	c := NewAlertConf("FR0000120271")
	assert.True(t, c.Empty())

	c.Widen(Alert{Direction: Up, Value: 110})
	c.Widen(Alert{Direction: Up, Value: 120})
	c.Widen(Alert{Direction: Down, Value: 90})
	c.Widen(Alert{Direction: Down, Value: 80})
	assert.Equal(t, 110.0, c.Up)
	assert.Equal(t, 90.0, c.Down)
	assert.False(t, c.Empty())

	tests := []struct {
		name      string
		high, low float64
		want      bool
	}{
		{"inside", 105, 95, false},
		{"touches up", 110, 95, true},
		{"touches down", 105, 90, true},
		{"unknown high", 0, 50, false},
		{"unknown low", 200, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Breached(tt.high, tt.low))
		})
	}
}

func TestParseUniverse(t *testing.T) {
	u, err := ParseUniverse("crypto")
	require.NoError(t, err)
	assert.Equal(t, Crypto, u)

	u, err = ParseUniverse("equities")
	require.NoError(t, err)
	assert.Equal(t, Equities, u)

	_, err = ParseUniverse("bonds")
	assert.Error(t, err)
}
