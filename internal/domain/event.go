package domain

import (
	"bytes"
	"strconv"
	"time"
)

// Value is a numeric indicator result that may be unavailable when the
// underlying price history is shorter than the indicator requires.
// An unavailable Value marshals to JSON null; it is never zero and never a NaN.
type Value struct {
	Float64 float64
	Valid   bool
}

// Val wraps a defined float64 into a Value.
func Val(f float64) Value {
	return Value{Float64: f, Valid: true}
}

var jsonNull = []byte("null")

// MarshalJSON encodes the value, or null when unavailable.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return jsonNull, nil
	}
	return strconv.AppendFloat(nil, v.Float64, 'f', -1, 64), nil
}

// UnmarshalJSON decodes a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*v = Val(f)
	return nil
}

// IndicatorSnapshot holds the latest computed indicator values for a symbol.
// Each field is unavailable until the symbol's history is long enough for it.
type IndicatorSnapshot struct {
	EMA12      Value `json:"ema12"`
	EMA26      Value `json:"ema26"`
	EMA50      Value `json:"ema50"`
	EMA100     Value `json:"ema100"`
	EMA200     Value `json:"ema200"`
	MACD       Value `json:"macd"`
	MACDSignal Value `json:"macdSignal"`
	MACDHist   Value `json:"macdHist"`
	RSI14      Value `json:"rsi14"`
}

// UpdateEvent is the record emitted downstream once per finalized candle per
// symbol (and, when partial forwarding is enabled, per live tick). Immutable
// once emitted.
type UpdateEvent struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	IndicatorSnapshot
	TS   int64 `json:"ts"`             // computation timestamp, unix millis
	Live bool  `json:"live,omitempty"` // true for partial-candle ticks
}

// NewUpdateEvent assembles an update event from a candle and its snapshot.
func NewUpdateEvent(k *Kline, snap IndicatorSnapshot, live bool) UpdateEvent {
	return UpdateEvent{
		Symbol:            k.Symbol,
		Open:              k.Open,
		High:              k.High,
		Low:               k.Low,
		Close:             k.Close,
		Volume:            k.Volume,
		IndicatorSnapshot: snap,
		TS:                time.Now().UnixMilli(),
		Live:              live,
	}
}
