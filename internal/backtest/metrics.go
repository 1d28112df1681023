package backtest

import (
	"math"
	"time"
)

// finalize derives the aggregate statistics from the ledger and equity
// curve once the replay is done.
func finalize(res *Result, barStep time.Duration) {
	if len(res.EquityCurve) > 0 {
		res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	}
	if res.InitialEquity > 0 {
		res.TotalReturn = (res.FinalEquity - res.InitialEquity) / res.InitialEquity
	}

	res.TotalTrades = len(res.Trades)
	var grossProfit, grossLoss, sumMAE, sumMFE float64
	for _, t := range res.Trades {
		net := t.PnL - t.Fees
		if net > 0 {
			res.WinningTrades++
			grossProfit += net
		} else {
			res.LosingTrades++
			grossLoss += math.Abs(net)
		}
		sumMAE += t.MAE
		sumMFE += t.MFE
	}
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades) * 100
		res.AvgMAE = sumMAE / float64(res.TotalTrades)
		res.AvgMFE = sumMFE / float64(res.TotalTrades)
	}
	res.ProfitFactor = profitFactor(grossProfit, grossLoss)
	res.SharpeRatio = annualizedSharpe(res.EquityCurve, barStep)
	res.MaxDrawdown = maxDrawdown(res.EquityCurve)
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// annualizedSharpe computes the Sharpe ratio of per-bar equity returns,
// scaled to annual by the bar resolution (zero risk-free rate).
func annualizedSharpe(curve []EquityPoint, barStep time.Duration) float64 {
	if len(curve) < 2 || barStep <= 0 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)
	if stdDev < 1e-12 {
		return 0
	}

	barsPerDay := float64(24*time.Hour) / float64(barStep)
	return mean / stdDev * math.Sqrt(barsPerDay*365)
}

// maxDrawdown returns the deepest peak-to-trough decline on the equity
// curve as a fraction of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
