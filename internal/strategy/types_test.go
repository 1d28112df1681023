package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/pkg/types"
)

// flatBar returns a bar with every indicator the generators need defined
// and no setup present. Tests override individual fields.
func flatBar(ts time.Time) indicators.Bar {
	b := indicators.Bar{
		OHLCV: types.OHLCV{
			Open: 100, High: 100.3, Low: 99.7, Close: 100,
			Volume: 1000, Timestamp: ts,
		},
	}
	b.ATR = 1.0
	b.ADX = 15
	b.VWAP = 100
	b.VWAPUpper = 101
	b.VWAPLower = 99
	b.RSI = 50
	b.StochRSIK = 50
	b.StochRSID = 50
	b.BBMiddle = 100
	b.BBUpper = 102
	b.BBLower = 98
	b.EMA9 = 100
	b.EMA21 = 100
	b.EMA50 = 100
	b.EMA200 = 100
	b.VolumeRatio = 1.0
	b.PrevDayHigh = 105
	b.PrevDayLow = 95
	b.AsiaHigh = 104
	b.AsiaLow = 96
	return b
}

// flatSeries returns count flat bars, 5 minutes apart.
func flatSeries(count int) []indicators.Bar {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bars := make([]indicators.Bar, count)
	for i := range bars {
		bars[i] = flatBar(base.Add(time.Duration(i) * 5 * time.Minute))
	}
	return bars
}

func validLongSignal() *TradeSignal {
	return &TradeSignal{
		Strategy: "test",
		Side:     SideLong,
		Entry:    100,
		Stop:     98,
		TPLevels: []TPLevel{
			{Price: 101, SizeFraction: 0.5},
			{Price: 102, SizeFraction: 0.3},
			{Price: 103, SizeFraction: 0.2},
		},
	}
}

func TestTradeSignal_Validate_OK(t *testing.T) {
	assert.NoError(t, validLongSignal().Validate())
}

func TestTradeSignal_Validate_FractionsCapAtOne(t *testing.T) {
	sig := validLongSignal()
	sig.TPLevels[2].SizeFraction = 0.4 // sum 1.2

	assert.Error(t, sig.Validate())
}

func TestTradeSignal_Validate_TPOrderingLong(t *testing.T) {
	sig := validLongSignal()
	sig.TPLevels[1].Price = 100.5 // below TP1

	assert.Error(t, sig.Validate())
}

func TestTradeSignal_Validate_TPMustBeyondEntry(t *testing.T) {
	sig := validLongSignal()
	sig.TPLevels[0].Price = 99.5 // under entry for a long

	assert.Error(t, sig.Validate())
}

func TestTradeSignal_Validate_StopSide(t *testing.T) {
	sig := validLongSignal()
	sig.Stop = 101 // above entry for a long

	assert.Error(t, sig.Validate())

	short := &TradeSignal{
		Strategy: "test",
		Side:     SideShort,
		Entry:    100,
		Stop:     99, // below entry for a short
		TPLevels: []TPLevel{{Price: 98, SizeFraction: 1.0}},
	}
	assert.Error(t, short.Validate())
}

func TestTradeSignal_Validate_ShortLadderDescends(t *testing.T) {
	sig := &TradeSignal{
		Strategy: "test",
		Side:     SideShort,
		Entry:    100,
		Stop:     102,
		TPLevels: []TPLevel{
			{Price: 99, SizeFraction: 0.5},
			{Price: 98, SizeFraction: 0.5},
		},
	}
	assert.NoError(t, sig.Validate())

	sig.TPLevels[1].Price = 99.5
	assert.Error(t, sig.Validate())
}
