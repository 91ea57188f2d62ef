package domain

import "sort"

// Candle is a single OHLCV point. Timestamp is unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// HistoricalSeries is an ascending sequence of candles for one token.
type HistoricalSeries []Candle

// SortAscending orders the series by timestamp in place.
func (s HistoricalSeries) SortAscending() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Timestamp < s[j].Timestamp })
}

// Closes returns the closing prices, oldest first.
func (s HistoricalSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volumes, oldest first.
func (s HistoricalSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

// FlatCandle builds a candle from a single price observation, as produced by
// sources that report price points rather than OHLC bars.
func FlatCandle(timestampMs int64, price float64) Candle {
	return Candle{
		Timestamp: timestampMs,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}
