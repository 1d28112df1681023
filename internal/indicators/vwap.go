package indicators

import (
	"math"
	"time"
)

// computeVWAP fills the session VWAP columns. The session resets at
// 00:00 UTC each calendar day. Bands are VWAP +/- one running standard
// deviation of the volume-weighted typical price since the reset.
func (e *Engine) computeVWAP(bars []Bar) {
	var cumPV, cumP2V, cumV float64
	vwapHistory := make([]float64, len(bars))

	for i := range bars {
		if i > 0 {
			y1, d1 := utcDay(bars[i].Timestamp)
			y0, d0 := utcDay(bars[i-1].Timestamp)
			if y1 != y0 || d1 != d0 {
				cumPV, cumP2V, cumV = 0, 0, 0
			}
		}

		typical := (bars[i].High + bars[i].Low + bars[i].Close) / 3.0
		cumPV += typical * bars[i].Volume
		cumP2V += typical * typical * bars[i].Volume
		cumV += bars[i].Volume

		if cumV <= 0 {
			vwapHistory[i] = 0
			continue
		}

		vwap := cumPV / cumV
		vwapHistory[i] = vwap
		bars[i].VWAP = vwap

		variance := cumP2V/cumV - vwap*vwap
		if variance < 0 {
			variance = 0
		}
		sigma := math.Sqrt(variance)
		bars[i].VWAPUpper = vwap + sigma
		bars[i].VWAPLower = vwap - sigma

		lb := e.config.VWAPSlopeLookback
		if i >= lb && sigma > 0 && vwapHistory[i-lb] > 0 {
			bars[i].VWAPSlopeSigma = (vwap - vwapHistory[i-lb]) / sigma
		}
	}
}

// utcDay collapses a timestamp to its UTC calendar day.
func utcDay(ts time.Time) (int, int) {
	u := ts.UTC()
	return u.Year(), u.YearDay()
}
