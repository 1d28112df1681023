package indicators

// computeRSI fills RSI (simple rolling mean of gains/losses) and the
// smoothed StochRSI %K/%D derived from it.
func (e *Engine) computeRSI(bars []Bar) {
	period := e.config.RSIPeriod
	n := len(bars)
	if n < period+1 {
		return
	}

	rsi := make([]float64, n)
	rsiDefined := make([]bool, n)

	gainSum, lossSum := 0.0, 0.0
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i < period {
			continue
		}

		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)
		if avgLoss == 0 {
			rsi[i] = 100
		} else {
			rs := avgGain / avgLoss
			rsi[i] = 100 - 100/(1+rs)
		}
		rsiDefined[i] = true
		bars[i].RSI = rsi[i]
	}

	e.computeStochRSI(bars, rsi, rsiDefined)
}

// computeStochRSI derives StochRSI %K (smoothed) and %D from the RSI
// series: raw = (RSI - min) / (max - min) over the stoch period, then
// two SMA smoothing passes.
func (e *Engine) computeStochRSI(bars []Bar, rsi []float64, defined []bool) {
	stochPeriod := e.config.StochRSIPeriod
	smoothK := e.config.StochRSISmoothK
	smoothD := e.config.StochRSISmoothD
	n := len(bars)

	raw := make([]float64, n)
	rawDefined := make([]bool, n)
	for i := range bars {
		start := i - stochPeriod + 1
		if start < 0 || !defined[i] || !defined[start] {
			continue
		}
		lo, hi := rsi[start], rsi[start]
		for j := start + 1; j <= i; j++ {
			if rsi[j] < lo {
				lo = rsi[j]
			}
			if rsi[j] > hi {
				hi = rsi[j]
			}
		}
		if hi > lo {
			raw[i] = (rsi[i] - lo) / (hi - lo) * 100
		} else {
			raw[i] = 50
		}
		rawDefined[i] = true
	}

	k := smoothSeries(raw, rawDefined, smoothK)
	for i := range bars {
		if k.defined[i] {
			bars[i].StochRSIK = k.values[i]
		}
	}
	d := smoothSeries(k.values, k.defined, smoothD)
	for i := range bars {
		if d.defined[i] {
			bars[i].StochRSID = d.values[i]
		}
	}
}

type smoothed struct {
	values  []float64
	defined []bool
}

// smoothSeries applies an SMA of the given window to a partially-defined
// series; an output point is defined only when its whole window is.
func smoothSeries(values []float64, defined []bool, window int) smoothed {
	n := len(values)
	out := smoothed{values: make([]float64, n), defined: make([]bool, n)}
	for i := range values {
		start := i - window + 1
		if start < 0 {
			continue
		}
		sum := 0.0
		ok := true
		for j := start; j <= i; j++ {
			if !defined[j] {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out.values[i] = sum / float64(window)
			out.defined[i] = true
		}
	}
	return out
}
