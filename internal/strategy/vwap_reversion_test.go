package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-labs/falcon/internal/indicators"
)

// longTouchSeries sets up a lower-band touch at the last bar with a fresh
// StochRSI cross up through 20.
func longTouchSeries() []indicators.Bar {
	bars := flatSeries(30)
	last := len(bars) - 1

	bars[last-1].StochRSIK = 15
	bars[last].StochRSIK = 25

	bars[last].Low = 97.9 // through BBLower at 98
	bars[last].Close = 98.4
	bars[last].Open = 98.6
	bars[last].High = 98.8
	bars[last].RSI = 45

	return bars
}

// shortTouchSeries mirrors longTouchSeries on the upper band.
func shortTouchSeries() []indicators.Bar {
	bars := flatSeries(30)
	last := len(bars) - 1

	bars[last-1].StochRSIK = 85
	bars[last].StochRSIK = 75

	bars[last].High = 102.1 // through BBUpper at 102
	bars[last].Close = 101.6
	bars[last].Open = 101.4
	bars[last].Low = 101.2
	bars[last].RSI = 55

	return bars
}

func TestVWAPReversion_LongOnLowerBandTouch(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1

	sig := gen.Generate(bars, rangeCtx(), last)
	require.NotNil(t, sig)

	assert.Equal(t, "vwap_mr", sig.Strategy)
	assert.Equal(t, SideLong, sig.Side)
	assert.Equal(t, 98.0, sig.Entry, "limit entry at the touched band")
	assert.Less(t, sig.Stop, bars[last].Low)
	require.Len(t, sig.TPLevels, 3)
	assert.Equal(t, 100.0, sig.TPLevels[0].Price, "TP1 at VWAP")
	assert.NoError(t, sig.Validate())
}

func TestVWAPReversion_ShortOnUpperBandTouch(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := shortTouchSeries()
	last := len(bars) - 1

	sig := gen.Generate(bars, rangeCtx(), last)
	require.NotNil(t, sig)

	assert.Equal(t, SideShort, sig.Side)
	assert.Equal(t, 102.0, sig.Entry)
	assert.Greater(t, sig.Stop, bars[last].High)
	assert.Equal(t, 100.0, sig.TPLevels[0].Price)
	assert.NoError(t, sig.Validate())
}

func TestVWAPReversion_RSIGateBlocksWeakLongs(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1
	bars[last].RSI = 35 // under the 42 long gate

	assert.Nil(t, gen.Generate(bars, rangeCtx(), last))
}

func TestVWAPReversion_VolumeSpikeBlocksEntry(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1
	bars[last].VolumeRatio = 2.5 // breakout volume, do not fade it

	assert.Nil(t, gen.Generate(bars, rangeCtx(), last))
}

func TestVWAPReversion_RequiresStochCross(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1
	// momentum never crossed back up
	bars[last-1].StochRSIK = 15
	bars[last].StochRSIK = 12

	assert.Nil(t, gen.Generate(bars, rangeCtx(), last))
}

func TestVWAPReversion_StochCrossWithinWindowCounts(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1
	// cross happened two bars ago, inside the 3-bar window
	bars[last-3].StochRSIK = 15
	bars[last-2].StochRSIK = 25
	bars[last-1].StochRSIK = 30
	bars[last].StochRSIK = 35

	assert.NotNil(t, gen.Generate(bars, rangeCtx(), last))
}

func TestVWAPReversion_NoTouchNoSignal(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := flatSeries(30)

	assert.Nil(t, gen.Generate(bars, rangeCtx(), len(bars)-1))
}

func TestVWAPReversion_UndefinedIndicatorsYieldNil(t *testing.T) {
	gen := NewVWAPReversion(nil)
	bars := longTouchSeries()
	last := len(bars) - 1
	bars[last].ATR = 0

	assert.Nil(t, gen.Generate(bars, rangeCtx(), last))
}
