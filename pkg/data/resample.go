package data

import (
	"time"

	"github.com/quantara-labs/falcon/pkg/types"
)

// Resample aggregates candles into a coarser interval aligned to UTC wall
// clock boundaries (a 15m resample of 5m candles buckets 00, 15, 30, 45).
// The buckets' timestamps are the interval open. A trailing incomplete
// bucket is still emitted with whatever candles it has.
func Resample(data []types.OHLCV, interval time.Duration) []types.OHLCV {
	if len(data) == 0 || interval <= 0 {
		return nil
	}

	var out []types.OHLCV
	var current types.OHLCV
	var open bool

	for _, candle := range data {
		bucket := candle.Timestamp.UTC().Truncate(interval)
		if !open || !bucket.Equal(current.Timestamp) {
			if open {
				out = append(out, current)
			}
			current = types.OHLCV{
				Timestamp: bucket,
				Open:      candle.Open,
				High:      candle.High,
				Low:       candle.Low,
				Close:     candle.Close,
				Volume:    candle.Volume,
			}
			open = true
			continue
		}
		if candle.High > current.High {
			current.High = candle.High
		}
		if candle.Low < current.Low {
			current.Low = candle.Low
		}
		current.Close = candle.Close
		current.Volume += candle.Volume
	}
	out = append(out, current)

	return out
}
