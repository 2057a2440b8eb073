// Package indicator computes technical indicators over daily bars ordered
// oldest to newest. Every function is pure.
package indicator

import (
	"math"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

const neutralRSI = 50.0

// SMA is the mean of the last n closes. ok is false when fewer than n bars exist.
func SMA(bars []models.PriceBar, n int) (value float64, ok bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n), true
}

// Price is the latest close, or 0 for an empty series.
func Price(bars []models.PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}

type MA struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

type AlignmentResult struct {
	Price float64 `json:"price"`
	MA5   MA      `json:"ma5"`
	MA10  MA      `json:"ma10"`
	MA20  MA      `json:"ma20"`
	MA60  MA      `json:"ma60"`
	// Satisfied counts MA5>MA10, MA10>MA20, MA20>MA60 and price>MA5.
	Satisfied int  `json:"satisfied"`
	Holds     bool `json:"holds"`
}

// Alignment checks MA5 > MA10 > MA20 > MA60 and price > MA5.
func Alignment(bars []models.PriceBar) AlignmentResult {
	out := AlignmentResult{Price: Price(bars)}
	out.MA5.Value, out.MA5.OK = SMA(bars, 5)
	out.MA10.Value, out.MA10.OK = SMA(bars, 10)
	out.MA20.Value, out.MA20.OK = SMA(bars, 20)
	out.MA60.Value, out.MA60.OK = SMA(bars, 60)

	gt := func(a, b MA) bool { return a.OK && b.OK && a.Value > b.Value }
	if gt(out.MA5, out.MA10) {
		out.Satisfied++
	}
	if gt(out.MA10, out.MA20) {
		out.Satisfied++
	}
	if gt(out.MA20, out.MA60) {
		out.Satisfied++
	}
	if out.MA5.OK && len(bars) > 0 && out.Price > out.MA5.Value {
		out.Satisfied++
	}
	out.Holds = out.Satisfied == 4
	return out
}

// RSI uses Wilder smoothing over n periods. It returns 50 when fewer than
// n+1 bars exist and is always within [0,100].
func RSI(bars []models.PriceBar, n int) float64 {
	if n <= 0 || len(bars) < n+1 {
		return neutralRSI
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	for i := n + 1; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return neutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

// BollingerPosition maps price onto the n-period band mean ± k·σ: -1 at the
// lower band, +1 at the upper band, extrapolated beyond. A flat series is 0.
func BollingerPosition(bars []models.PriceBar, n int, k float64) (float64, bool) {
	mean, ok := SMA(bars, n)
	if !ok || k <= 0 {
		return 0, false
	}
	variance := 0.0
	for _, b := range bars[len(bars)-n:] {
		d := b.Close - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(n))
	if sd == 0 {
		return 0, true
	}
	return (Price(bars) - mean) / (k * sd), true
}

// VolumeRatio is today's volume over the average of the previous n sessions.
// It is 0 when that average is 0 or history is too short.
func VolumeRatio(bars []models.PriceBar, n int) float64 {
	if n <= 0 || len(bars) < n+1 {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n-1 : len(bars)-1] {
		sum += b.Volume
	}
	avg := sum / float64(n)
	if avg <= 0 {
		return 0
	}
	return bars[len(bars)-1].Volume / avg
}

// GapPct is (today's open - yesterday's close) / yesterday's close * 100.
func GapPct(bars []models.PriceBar) (float64, bool) {
	if len(bars) < 2 {
		return 0, false
	}
	prev := bars[len(bars)-2].Close
	if prev == 0 {
		return 0, false
	}
	return (bars[len(bars)-1].Open - prev) / prev * 100, true
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
