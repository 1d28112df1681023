package indicators

// computeEMALadder fills the 9/21/50/200 EMA columns. Each EMA is seeded
// with the SMA over its first period and is zero before that.
func (e *Engine) computeEMALadder(bars []Bar) {
	set := func(i int, period int, v float64) {
		switch period {
		case 9:
			bars[i].EMA9 = v
		case 21:
			bars[i].EMA21 = v
		case 50:
			bars[i].EMA50 = v
		case 200:
			bars[i].EMA200 = v
		}
	}

	for _, period := range DefaultEMAPeriods {
		if len(bars) < period {
			continue
		}
		sum := 0.0
		for i := 0; i < period; i++ {
			sum += bars[i].Close
		}
		ema := sum / float64(period)
		set(period-1, period, ema)

		k := 2.0 / float64(period+1)
		for i := period; i < len(bars); i++ {
			ema = bars[i].Close*k + ema*(1-k)
			set(i, period, ema)
		}
	}
}

// computeSupertrend fills the Supertrend(10, 3xATR) trailing line and its
// direction flag. ATR here uses the Supertrend period, independent of the
// main ATR column.
func (e *Engine) computeSupertrend(bars []Bar) {
	period := e.config.SupertrendPeriod
	mult := e.config.SupertrendMult
	n := len(bars)
	if n <= period {
		return
	}

	// Wilder ATR at the Supertrend period.
	atr := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		cur, prev := bars[i], bars[i-1]
		hl := cur.High - cur.Low
		hc := cur.High - prev.Close
		if hc < 0 {
			hc = -hc
		}
		lc := cur.Low - prev.Close
		if lc < 0 {
			lc = -lc
		}
		tr[i] = hl
		if hc > tr[i] {
			tr[i] = hc
		}
		if lc > tr[i] {
			tr[i] = lc
		}
	}
	a := sma(tr[1 : period+1])
	atr[period] = a
	alpha := 1.0 / float64(period)
	for i := period + 1; i < n; i++ {
		a += alpha * (tr[i] - a)
		atr[i] = a
	}

	upper := 0.0
	lower := 0.0
	upTrend := true
	for i := period; i < n; i++ {
		median := (bars[i].High + bars[i].Low) / 2.0
		basicUpper := median + mult*atr[i]
		basicLower := median - mult*atr[i]

		if i == period {
			upper, lower = basicUpper, basicLower
		} else {
			prevClose := bars[i-1].Close
			if basicUpper < upper || prevClose > upper {
				upper = basicUpper
			}
			if basicLower > lower || prevClose < lower {
				lower = basicLower
			}
		}

		if upTrend {
			if bars[i].Close < lower {
				upTrend = false
			}
		} else {
			if bars[i].Close > upper {
				upTrend = true
			}
		}

		if upTrend {
			bars[i].Supertrend = lower
		} else {
			bars[i].Supertrend = upper
		}
		bars[i].SupertrendUp = upTrend
	}
}
