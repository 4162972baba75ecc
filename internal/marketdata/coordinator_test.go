package marketdata

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/hub"
	"cryptoPulse/internal/indicators"
)

// fixtureCloses is the 30-value synthetic closing-price sequence used by the
// end-to-end pipeline test.
var fixtureCloses = []float64{
	100.0, 101.5, 99.8, 102.3, 103.1, 101.9, 104.6, 105.2, 103.8, 106.4,
	107.0, 105.5, 108.1, 109.3, 107.8, 110.2, 111.0, 109.4, 112.5, 113.1,
	111.6, 114.2, 115.0, 113.4, 116.1, 117.3, 115.8, 118.0, 119.2, 117.5,
}

// Independent reference implementations, kept deliberately separate from the
// indicators package.

func refEMALast(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, c := range closes[:period] {
		sum += c
	}
	e := sum / float64(period)
	k := 2.0 / float64(period+1)
	for _, c := range closes[period:] {
		e = c*k + e*(1-k)
	}
	return e, true
}

func refRSILast(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		return 100, true
	}
	return 100 - 100/(1+avgGain/avgLoss), true
}

func newTestCoordinator(forwardPartials bool) (*Coordinator, *hub.Subscription) {
	events := hub.New(64)
	coord := NewCoordinator(CoordinatorConfig{
		Window:          NewWindow(500),
		Indicators:      indicators.DefaultConfig(),
		Hub:             events,
		Logger:          nopLogger{},
		ForwardPartials: forwardPartials,
	})
	return coord, events.Attach()
}

func finalFrame(symbol string, closePrice float64) []byte {
	return klineFrame(symbol, strconv.FormatFloat(closePrice, 'f', -1, 64), true)
}

func TestCoordinator_EndToEndAgainstReference(t *testing.T) {
	coord, sub := newTestCoordinator(false)
	ctx := context.Background()

	for i, c := range fixtureCloses {
		coord.HandleRaw(ctx, finalFrame("BTCUSDT", c))

		ev, ok := <-sub.Events()
		require.True(t, ok)
		require.Equal(t, "BTCUSDT", ev.Symbol)
		assert.Equal(t, c, ev.Close)

		history := fixtureCloses[:i+1]

		wantEMA, emaDefined := refEMALast(history, 12)
		require.Equal(t, emaDefined, ev.EMA12.Valid, "ema12 availability at candle %d", i)
		if emaDefined {
			assert.InDelta(t, wantEMA, ev.EMA12.Float64, 1e-9, "ema12 at candle %d", i)
		}

		wantRSI, rsiDefined := refRSILast(history, 14)
		require.Equal(t, rsiDefined, ev.RSI14.Valid, "rsi14 availability at candle %d", i)
		if rsiDefined {
			assert.InDelta(t, wantRSI, ev.RSI14.Float64, 1e-9, "rsi14 at candle %d", i)
		}
	}

	assert.Equal(t, uint64(0), coord.DroppedFrames())
}

func TestCoordinator_EMASeedFirstSmoothedStep(t *testing.T) {
	coord, sub := newTestCoordinator(false)
	ctx := context.Background()

	var events []domain.UpdateEvent
	for _, c := range fixtureCloses[:13] {
		coord.HandleRaw(ctx, finalFrame("BTCUSDT", c))
		events = append(events, <-sub.Events())
	}

	// With 12 closes the EMA equals the plain average of the first 12.
	var sum float64
	for _, c := range fixtureCloses[:12] {
		sum += c
	}
	seed := sum / 12
	require.True(t, events[11].EMA12.Valid)
	assert.InDelta(t, seed, events[11].EMA12.Float64, 1e-12)

	// The 13th close applies exactly one smoothing step to that seed.
	k := 2.0 / 13
	want := fixtureCloses[12]*k + seed*(1-k)
	require.True(t, events[12].EMA12.Valid)
	if math.Abs(events[12].EMA12.Float64-want) != 0 {
		t.Errorf("first smoothed step mismatch: got %v, want %v", events[12].EMA12.Float64, want)
	}
}

func TestCoordinator_PartialCandlesDroppedByDefault(t *testing.T) {
	coord, sub := newTestCoordinator(false)
	ctx := context.Background()

	coord.HandleRaw(ctx, klineFrame("BTCUSDT", "100.5", false))

	select {
	case ev := <-sub.Events():
		t.Fatalf("partial candle must not be forwarded, got %+v", ev)
	default:
	}
	assert.Empty(t, coord.Latest(0))
}

func TestCoordinator_PartialForwardingCarriesPreviousSnapshot(t *testing.T) {
	coord, sub := newTestCoordinator(true)
	ctx := context.Background()

	// Build enough finalized history for a defined EMA12.
	for _, c := range fixtureCloses[:12] {
		coord.HandleRaw(ctx, finalFrame("BTCUSDT", c))
		<-sub.Events()
	}
	lastFinal := coord.Latest(0)[0]

	coord.HandleRaw(ctx, klineFrame("BTCUSDT", "999.9", false))
	tick, ok := <-sub.Events()
	require.True(t, ok)

	assert.True(t, tick.Live)
	assert.Equal(t, 999.9, tick.Close)
	// Indicator state is the previous snapshot, untouched by the live price.
	assert.Equal(t, lastFinal.IndicatorSnapshot, tick.IndicatorSnapshot)
	// History did not grow.
	assert.Equal(t, lastFinal, coord.Latest(0)[0])
}

func TestCoordinator_LatestSortedAndCapped(t *testing.T) {
	coord, sub := newTestCoordinator(false)
	ctx := context.Background()

	for _, sym := range []string{"ETHUSDT", "BTCUSDT", "XRPUSDT", "ADAUSDT"} {
		coord.HandleRaw(ctx, finalFrame(sym, 42))
		<-sub.Events()
	}

	all := coord.Latest(0)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"ADAUSDT", "BTCUSDT", "ETHUSDT", "XRPUSDT"},
		[]string{all[0].Symbol, all[1].Symbol, all[2].Symbol, all[3].Symbol})

	capped := coord.Latest(2)
	require.Len(t, capped, 2)
	assert.Equal(t, "ADAUSDT", capped[0].Symbol)
	assert.Equal(t, "BTCUSDT", capped[1].Symbol)
}
