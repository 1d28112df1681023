package indicators

import "math"

// computeATRADX fills ATR and ADX using Wilder smoothing (an EMA with
// alpha = 1/period), seeded with a simple average over the first period.
func (e *Engine) computeATRADX(bars []Bar) {
	if len(bars) < 2 {
		return
	}

	atrPeriod := e.config.ATRPeriod
	adxPeriod := e.config.ADXPeriod

	n := len(bars)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		cur, prev := bars[i], bars[i-1]
		tr[i] = math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// ATR: seed at index atrPeriod with the mean of the first atrPeriod TRs.
	if n > atrPeriod {
		atr := sma(tr[1 : atrPeriod+1])
		bars[atrPeriod].ATR = atr
		alpha := 1.0 / float64(atrPeriod)
		for i := atrPeriod + 1; i < n; i++ {
			atr += alpha * (tr[i] - atr)
			bars[i].ATR = atr
		}
	}

	// DI/DX: same seeding scheme, then one more smoothing pass for ADX.
	if n <= adxPeriod*2 {
		return
	}
	smTR := sma(tr[1 : adxPeriod+1])
	smPlus := sma(plusDM[1 : adxPeriod+1])
	smMinus := sma(minusDM[1 : adxPeriod+1])
	alpha := 1.0 / float64(adxPeriod)

	dx := make([]float64, n)
	for i := adxPeriod + 1; i < n; i++ {
		smTR += alpha * (tr[i] - smTR)
		smPlus += alpha * (plusDM[i] - smPlus)
		smMinus += alpha * (minusDM[i] - smMinus)

		if smTR <= 0 {
			continue
		}
		plusDI := 100 * smPlus / smTR
		minusDI := 100 * smMinus / smTR
		if plusDI+minusDI > 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
		}
	}

	seedEnd := adxPeriod*2 + 1
	if seedEnd > n {
		return
	}
	adx := sma(dx[adxPeriod+1 : seedEnd])
	bars[seedEnd-1].ADX = adx
	for i := seedEnd; i < n; i++ {
		adx += alpha * (dx[i] - adx)
		bars[i].ADX = adx
	}
}
