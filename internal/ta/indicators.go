package ta

import (
	"math"

	"tokenlens/internal/domain"
)

// Standard periods used by Compute.
const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerWidth  = 2.0

	volumeRecent = 5
	volumeWindow = 20
)

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func mean(values []float64) float64 {
	m, _ := MeanStd(values)
	return m
}

// SMA is the mean of the last period values. ok is false when there are
// fewer than period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return mean(values[len(values)-period:]), true
}

// EMASeries returns the EMA after each value starting at index period-1.
// The first entry is the SMA of the first period values, so out[i] is the EMA
// of the prefix values[:period+i].
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	ema := mean(values[:period])
	out = append(out, ema)
	k := 2.0 / float64(period+1)
	for _, price := range values[period:] {
		ema = (price-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

// EMA returns the final value of EMASeries.
func EMA(values []float64, period int) (float64, bool) {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// RSI is a simple-average relative strength index over the trailing period
// differences. It needs period+1 closes.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	var gainSum, lossSum float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	return rsiFromAvg(gainSum/float64(period), lossSum/float64(period)), true
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RSISignal tags an RSI reading.
func RSISignal(value float64) string {
	switch {
	case value > 70:
		return domain.SignalOverbought
	case value < 30:
		return domain.SignalOversold
	default:
		return domain.SignalNeutral
	}
}

// MACDSeries returns the MACD line for every prefix of values of length slow
// or more. Because the EMAs are causal this equals recomputing both EMAs on
// each prefix.
func MACDSeries(values []float64, fast, slow int) []float64 {
	if fast <= 0 || slow < fast || len(values) < slow {
		return nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	offset := slow - fast
	out := make([]float64, len(slowEMA))
	for i := range slowEMA {
		out[i] = fastEMA[i+offset] - slowEMA[i]
	}
	return out
}

// MACD returns the current MACD line, its signal line and the histogram.
// With fewer than signal MACD values the signal line equals the MACD line.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine, histogram float64, ok bool) {
	series := MACDSeries(closes, fast, slow)
	if len(series) == 0 {
		return 0, 0, 0, false
	}
	line = series[len(series)-1]
	signalLine = line
	if sig, ok := EMA(series, signal); ok {
		signalLine = sig
	}
	return line, signalLine, line - signalLine, true
}

// MACDSignalTag tags a MACD reading.
func MACDSignalTag(line, signalLine, histogram float64) string {
	switch {
	case line > signalLine && histogram > 0:
		return domain.SignalBullish
	case line < signalLine && histogram < 0:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}

// Bollinger computes bands over the trailing period closes using the
// population standard deviation.
func Bollinger(closes []float64, period int, width float64) (upper, middle, lower, bandwidth float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, 0, 0, 0, false
	}
	middle, std := MeanStd(closes[len(closes)-period:])
	upper = middle + width*std
	lower = middle - width*std
	if middle != 0 {
		bandwidth = (upper - lower) / middle
	}
	return upper, middle, lower, bandwidth, true
}

// VolumeTrend compares the mean of the last 5 volumes against the mean of
// the 15 before them.
func VolumeTrend(volumes []float64) string {
	if len(volumes) < volumeWindow {
		return domain.SignalNeutral
	}
	var total float64
	for _, v := range volumes {
		total += v
	}
	if total == 0 {
		return domain.SignalNeutral
	}
	n := len(volumes)
	recent := mean(volumes[n-volumeRecent:])
	older := mean(volumes[n-volumeWindow : n-volumeRecent])
	if older == 0 {
		return domain.SignalNeutral
	}
	switch {
	case recent > older*1.2:
		return domain.VolumeIncreasing
	case recent < older*0.8:
		return domain.VolumeDecreasing
	default:
		return domain.SignalNeutral
	}
}

// OverallSignal averages the directional votes of RSI, MACD and the EMA
// crossover. A nil rsi or EMA abstains, as does a neutral tag.
func OverallSignal(rsi *float64, macdTag string, ema12, ema26 *float64) string {
	var votes []float64
	if rsi != nil {
		switch RSISignal(*rsi) {
		case domain.SignalOversold:
			votes = append(votes, 1)
		case domain.SignalOverbought:
			votes = append(votes, -1)
		}
	}
	switch macdTag {
	case domain.SignalBullish:
		votes = append(votes, 1)
	case domain.SignalBearish:
		votes = append(votes, -1)
	}
	if ema12 != nil && ema26 != nil {
		if *ema12 > *ema26 {
			votes = append(votes, 1)
		} else {
			votes = append(votes, -1)
		}
	}
	if len(votes) == 0 {
		return domain.SignalNeutral
	}
	avg := mean(votes)
	switch {
	case avg > 0.3:
		return domain.SignalBullish
	case avg < -0.3:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}
