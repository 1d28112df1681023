package indicators

import "math"

// computeBollinger fills the Bollinger band columns plus the rolling
// percentile of band width used by the regime classifier. The percentile
// is the fraction of the lookback window whose width is at or below the
// current width, in percent.
func (e *Engine) computeBollinger(bars []Bar) {
	period := e.config.BBPeriod
	widths := make([]float64, len(bars))
	defined := make([]bool, len(bars))

	sum, sumSq := 0.0, 0.0
	for i := range bars {
		c := bars[i].Close
		sum += c
		sumSq += c * c
		if i >= period {
			old := bars[i-period].Close
			sum -= old
			sumSq -= old * old
		}
		if i < period-1 {
			continue
		}

		mean := sum / float64(period)
		variance := sumSq/float64(period) - mean*mean
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)

		bars[i].BBMiddle = mean
		bars[i].BBUpper = mean + e.config.BBStdDev*std
		bars[i].BBLower = mean - e.config.BBStdDev*std
		if mean > 0 {
			widths[i] = (bars[i].BBUpper - bars[i].BBLower) / mean
			defined[i] = true
		}
	}

	lookback := e.config.BBWidthLookback
	for i := range bars {
		if !defined[i] {
			continue
		}
		start := i - lookback + 1
		if start < 0 {
			start = 0
		}
		total, below := 0, 0
		for j := start; j <= i; j++ {
			if !defined[j] {
				continue
			}
			total++
			if widths[j] <= widths[i] {
				below++
			}
		}
		// Require a full window before the percentile means anything.
		if total < lookback {
			continue
		}
		bars[i].BBWidthPctile = float64(below) / float64(total) * 100.0
	}
}
