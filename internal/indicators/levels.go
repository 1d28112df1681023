package indicators

// Asia session boundaries, hours in UTC.
const (
	asiaSessionStartHour = 0
	asiaSessionEndHour   = 8
)

// computeLevels fills the prior-day and Asia-session high/low columns.
// Only bars already seen contribute, so the levels never look ahead:
// during the Asia session the level is the running extreme so far, and
// the prior-day level on day one is zero (undefined).
func (e *Engine) computeLevels(bars []Bar) {
	var (
		prevDayHigh, prevDayLow float64
		curDayHigh, curDayLow   float64
		asiaHigh, asiaLow       float64
		haveDay                 bool
	)

	for i := range bars {
		newDay := i == 0
		if i > 0 {
			y1, d1 := utcDay(bars[i].Timestamp)
			y0, d0 := utcDay(bars[i-1].Timestamp)
			newDay = y1 != y0 || d1 != d0
		}
		if newDay {
			if haveDay {
				prevDayHigh, prevDayLow = curDayHigh, curDayLow
			}
			curDayHigh, curDayLow = bars[i].High, bars[i].Low
			asiaHigh, asiaLow = 0, 0
			haveDay = true
		} else {
			if bars[i].High > curDayHigh {
				curDayHigh = bars[i].High
			}
			if bars[i].Low < curDayLow {
				curDayLow = bars[i].Low
			}
		}

		hour := bars[i].Timestamp.UTC().Hour()
		if hour >= asiaSessionStartHour && hour < asiaSessionEndHour {
			if asiaHigh == 0 || bars[i].High > asiaHigh {
				asiaHigh = bars[i].High
			}
			if asiaLow == 0 || bars[i].Low < asiaLow {
				asiaLow = bars[i].Low
			}
		}

		bars[i].PrevDayHigh = prevDayHigh
		bars[i].PrevDayLow = prevDayLow
		bars[i].AsiaHigh = asiaHigh
		bars[i].AsiaLow = asiaLow
	}
}
