package marketdata

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"cryptoPulse/internal/domain"
)

// combinedFrame is the envelope of a combined-stream message:
// {"stream":"btcusdt@kline_1h","data":{...}}.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type wsKlineEvent struct {
	Event string `json:"e"`
	// EventTime must have its own field: without an exact tag match for "E",
	// encoding/json falls back to case-insensitive matching and tries to
	// decode the numeric event time into Event, failing the whole frame.
	EventTime int64   `json:"E"`
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	StartTime int64  `json:"t"`
	EndTime   int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	IsFinal   bool   `json:"x"`
}

// Normalizer decodes raw provider frames into canonical candles. Malformed
// and non-kline frames are expected traffic noise: they are dropped silently
// and counted, never surfaced as errors.
type Normalizer struct {
	dropped atomic.Uint64
}

// Decode turns one raw frame into zero or one candle. The second return is
// false when the frame was dropped.
func (n *Normalizer) Decode(raw []byte) (*domain.Kline, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame.Data) == 0 {
		n.dropped.Add(1)
		return nil, false
	}

	var ev wsKlineEvent
	if err := json.Unmarshal(frame.Data, &ev); err != nil || ev.Event != "kline" {
		n.dropped.Add(1)
		return nil, false
	}

	symbol := ev.Symbol
	if symbol == "" {
		symbol = ev.Kline.Symbol
	}
	if symbol == "" || ev.Kline.Interval == "" {
		n.dropped.Add(1)
		return nil, false
	}

	open, err1 := strconv.ParseFloat(ev.Kline.Open, 64)
	high, err2 := strconv.ParseFloat(ev.Kline.High, 64)
	low, err3 := strconv.ParseFloat(ev.Kline.Low, 64)
	cls, err4 := strconv.ParseFloat(ev.Kline.Close, 64)
	vol, err5 := strconv.ParseFloat(ev.Kline.Volume, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		n.dropped.Add(1)
		return nil, false
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(ev.Kline.StartTime),
		CloseTime: time.UnixMilli(ev.Kline.EndTime),
		Symbol:    symbol,
		Interval:  ev.Kline.Interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		IsFinal:   ev.Kline.IsFinal,
	}, true
}

// Dropped returns the number of frames discarded so far.
func (n *Normalizer) Dropped() uint64 {
	return n.dropped.Load()
}
