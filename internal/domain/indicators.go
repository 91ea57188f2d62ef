package domain

// Signal tags shared by the indicator records.
const (
	SignalNeutral    = "neutral"
	SignalBullish    = "bullish"
	SignalBearish    = "bearish"
	SignalOverbought = "overbought"
	SignalOversold   = "oversold"

	VolumeIncreasing = "increasing"
	VolumeDecreasing = "decreasing"
)

type MovingAverages struct {
	SMA20  *float64 `json:"sma_20"`
	SMA50  *float64 `json:"sma_50"`
	SMA200 *float64 `json:"sma_200"`
	EMA12  *float64 `json:"ema_12"`
	EMA26  *float64 `json:"ema_26"`
}

type RSI struct {
	Value  *float64 `json:"value"`
	Signal string   `json:"signal"`
}

// MACD fields are either all set or all nil.
type MACD struct {
	MACDLine   *float64 `json:"macd_line"`
	SignalLine *float64 `json:"signal_line"`
	Histogram  *float64 `json:"histogram"`
	Signal     string   `json:"signal"`
}

// BollingerBands fields are either all set or all nil.
type BollingerBands struct {
	Upper     *float64 `json:"upper"`
	Middle    *float64 `json:"middle"`
	Lower     *float64 `json:"lower"`
	Bandwidth *float64 `json:"bandwidth"`
}

// IndicatorSet is derived per request from a historical series.
type IndicatorSet struct {
	CurrentPrice   float64        `json:"current_price"`
	MovingAverages MovingAverages `json:"moving_averages"`
	RSI            RSI            `json:"rsi"`
	MACD           MACD           `json:"macd"`
	BollingerBands BollingerBands `json:"bollinger_bands"`
	VolumeTrend    string         `json:"volume_trend"`
	OverallSignal  string         `json:"overall_signal"`
}
