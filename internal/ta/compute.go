package ta

import (
	"math"

	"tokenlens/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	priceSigFigs    = 4
	minPricePlaces  = 2
	rsiPlaces       = 2
	bandwidthPlaces = 4
)

// Compute derives the full indicator set from a series. Every calculation
// runs on unrounded values; rounding is applied to the returned record only.
// CurrentPrice is the last close as-is. Price-scale indicators below 1 keep
// priceSigFigs significant figures so sub-cent tokens do not collapse to 0.
func Compute(series domain.HistoricalSeries) domain.IndicatorSet {
	closes := series.Closes()
	out := domain.IndicatorSet{
		RSI:           domain.RSI{Signal: domain.SignalNeutral},
		MACD:          domain.MACD{Signal: domain.SignalNeutral},
		VolumeTrend:   domain.SignalNeutral,
		OverallSignal: domain.SignalNeutral,
	}
	if len(closes) == 0 {
		return out
	}

	out.CurrentPrice = closes[len(closes)-1]

	ema12 := optional(EMA(closes, MACDFast))
	ema26 := optional(EMA(closes, MACDSlow))
	out.MovingAverages = domain.MovingAverages{
		SMA20:  pricePtr(optional(SMA(closes, 20))),
		SMA50:  pricePtr(optional(SMA(closes, 50))),
		SMA200: pricePtr(optional(SMA(closes, 200))),
		EMA12:  pricePtr(ema12),
		EMA26:  pricePtr(ema26),
	}

	rsi := optional(RSI(closes, RSIPeriod))
	if rsi != nil {
		out.RSI = domain.RSI{Value: roundPtr(rsi, rsiPlaces), Signal: RSISignal(*rsi)}
	}

	if line, sig, hist, ok := MACD(closes, MACDFast, MACDSlow, MACDSignal); ok {
		out.MACD = domain.MACD{
			MACDLine:   pricePtr(&line),
			SignalLine: pricePtr(&sig),
			Histogram:  pricePtr(&hist),
			Signal:     MACDSignalTag(line, sig, hist),
		}
	}

	if upper, middle, lower, bw, ok := Bollinger(closes, BollingerPeriod, BollingerWidth); ok {
		out.BollingerBands = domain.BollingerBands{
			Upper:     pricePtr(&upper),
			Middle:    pricePtr(&middle),
			Lower:     pricePtr(&lower),
			Bandwidth: roundPtr(&bw, bandwidthPlaces),
		}
	}

	out.VolumeTrend = VolumeTrend(series.Volumes())
	out.OverallSignal = OverallSignal(rsi, out.MACD.Signal, ema12, ema26)
	return out
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func roundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}

// roundPrice rounds to minPricePlaces decimals, or to priceSigFigs
// significant figures when that keeps more of a small value.
func roundPrice(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if math.Abs(v) >= 1 {
		return round(v, minPricePlaces)
	}
	exp := int32(math.Floor(math.Log10(math.Abs(v))))
	return round(v, max(minPricePlaces, priceSigFigs-1-exp))
}

func pricePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := roundPrice(*v)
	return &r
}
