package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/model"
)

func TestCalculateSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}

	v, err := CalculateSMA(prices, 3)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)

	v, err = CalculateSMA(prices, 6)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v, 1e-9)

	_, err = CalculateSMA(prices, 7)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = CalculateSMA(prices, 0)
	assert.ErrorIs(t, err, ErrPeriod)
}

func TestMovingAverages(t *testing.T) {
	bars := make([]model.Quote, 10)
	for i := range bars {
		bars[i] = model.Quote{Time: int64(i), Close: float64(i + 1)}
	}
	got := MovingAverages(bars, []int{2, 10, 11})
	require.Len(t, got, 3)
	require.NotNil(t, got[0])
	assert.InDelta(t, 9.5, *got[0], 1e-9)
	require.NotNil(t, got[1])
	assert.InDelta(t, 5.5, *got[1], 1e-9)
	assert.Nil(t, got[2])
}

func TestHighLow(t *testing.T) {
	bars := []model.Quote{
		{High: 50, Low: 1},
		{High: 12, Low: 8},
		{High: 15, Low: 9},
		{High: 11, Low: 7},
	}
	h, l, err := HighLow(bars, 3)
	require.NoError(t, err)
	assert.Equal(t, 15.0, h)
	assert.Equal(t, 7.0, l)

	h, l, err = HighLow(bars, 10)
	require.NoError(t, err)
	assert.Equal(t, 50.0, h)
	assert.Equal(t, 1.0, l)

	_, _, err = HighLow(nil, 3)
	assert.Error(t, err)
}

func TestMeanAndLast(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, []int{3, 4}, Last([]int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{1, 2}, Last([]int{1, 2}, 5))
	assert.InDelta(t, 10.0, PercentChange(100, 110), 1e-9)
}
