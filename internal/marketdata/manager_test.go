package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/indicators"
)

type fakeProvider struct {
	closes map[string][]float64
	fail   map[string]bool
}

func (p *fakeProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	if p.fail[symbol] {
		return nil, errors.New("rate limited")
	}
	closes := p.closes[symbol]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	klines := make([]*domain.Kline, 0, len(closes))
	for i, c := range closes {
		klines = append(klines, &domain.Kline{
			OpenTime: time.UnixMilli(int64(i) * 60_000),
			Symbol:   symbol,
			Interval: interval,
			Close:    c,
			IsFinal:  true,
		})
	}
	return klines, nil
}

func (p *fakeProvider) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	return nil, nil
}

func (p *fakeProvider) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	syms := make([]string, 0, len(p.closes))
	for s := range p.closes {
		syms = append(syms, s)
	}
	return syms, nil
}

type fakeArchive struct {
	closes map[string][]float64
	stored []*domain.Kline
}

func (a *fakeArchive) StoreKline(ctx context.Context, k *domain.Kline) error {
	a.stored = append(a.stored, k)
	return nil
}

func (a *fakeArchive) RecentCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	closes := a.closes[symbol]
	if len(closes) == 0 {
		return nil, nil
	}
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return closes, nil
}

func (a *fakeArchive) Close() error { return nil }

func testManagerCfg(p *fakeProvider) ManagerConfig {
	return ManagerConfig{
		Timeframe:        "1h",
		Symbols:          []string{"BTCUSDT"},
		WindowSize:       500,
		Indicators:       indicators.DefaultConfig(),
		BatchSize:        60,
		StreamBaseURL:    "ws://example.test/stream?streams=",
		BackoffMin:       10 * time.Millisecond,
		BackoffMax:       100 * time.Millisecond,
		KeepAlive:        time.Hour,
		SubscriberBuffer: 64,
		Provider:         p,
		Logger:           nopLogger{},
		Dial: func(ctx context.Context, url string) (StreamConn, error) {
			return nil, errors.New("connection refused")
		},
	}
}

func TestNewManager_RejectsUnknownTimeframe(t *testing.T) {
	cfg := testManagerCfg(&fakeProvider{})
	cfg.Timeframe = "7m"
	_, err := NewManager(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7m")
}

func TestNewManager_RequiresSymbols(t *testing.T) {
	cfg := testManagerCfg(&fakeProvider{})
	cfg.Symbols = nil
	_, err := NewManager(cfg)
	require.Error(t, err)
}

func TestManager_SeedFromProvider(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{
		"BTCUSDT": fixtureCloses,
		"ETHUSDT": {1, 2, 3},
	}}
	cfg := testManagerCfg(p)
	cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	m.seed(context.Background())

	assert.Equal(t, fixtureCloses, m.window.Closes("BTCUSDT"))
	assert.Equal(t, []float64{1, 2, 3}, m.window.Closes("ETHUSDT"))
}

func TestManager_SeedFallsBackToArchive(t *testing.T) {
	p := &fakeProvider{
		closes: map[string][]float64{"BTCUSDT": {10, 11, 12}},
		fail:   map[string]bool{"ETHUSDT": true},
	}
	cfg := testManagerCfg(p)
	cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	cfg.Archive = &fakeArchive{closes: map[string][]float64{
		"ETHUSDT": {2000, 2001, 2002},
	}}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	m.seed(context.Background())

	assert.Equal(t, []float64{10, 11, 12}, m.window.Closes("BTCUSDT"))
	assert.Equal(t, []float64{2000, 2001, 2002}, m.window.Closes("ETHUSDT"))
}

func TestManager_SeedFailureLeavesEmptyHistory(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"BTCUSDT": true}}
	m, err := NewManager(testManagerCfg(p))
	require.NoError(t, err)

	m.seed(context.Background())
	assert.Empty(t, m.window.Closes("BTCUSDT"))
}

func TestManager_UnseededSymbolRecoversFromLiveCandles(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"BTCUSDT": true}}
	m, err := NewManager(testManagerCfg(p))
	require.NoError(t, err)
	m.seed(context.Background())

	sub := m.Hub().Attach()
	defer m.Hub().Detach(sub)
	ctx := context.Background()

	// Feed finalized candles as the live stream would deliver them and watch
	// the indicators come online one by one.
	for i, c := range fixtureCloses {
		m.coord.HandleRaw(ctx, finalFrame("BTCUSDT", c))
		ev := <-sub.Events()

		assert.Equal(t, i >= 11, ev.EMA12.Valid, "ema12 at candle %d", i)
		assert.Equal(t, i >= 25, ev.EMA26.Valid, "ema26 at candle %d", i)
		assert.Equal(t, i >= 14, ev.RSI14.Valid, "rsi14 at candle %d", i)
		assert.False(t, ev.EMA50.Valid, "ema50 needs more history than supplied")
	}

	last := m.Latest(0)
	require.Len(t, last, 1)
	assert.Equal(t, fixtureCloses[len(fixtureCloses)-1], last[0].Close)
}

func TestManager_FinalCandlesReachArchive(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"BTCUSDT": nil}}
	arch := &fakeArchive{}
	cfg := testManagerCfg(p)
	cfg.Archive = arch
	m, err := NewManager(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	m.coord.HandleRaw(ctx, finalFrame("BTCUSDT", 101.5))
	m.coord.HandleRaw(ctx, klineFrame("BTCUSDT", "102.0", false))

	require.Len(t, arch.stored, 1)
	assert.Equal(t, 101.5, arch.stored[0].Close)
	assert.True(t, arch.stored[0].IsFinal)
}

func TestManager_StopTearsDown(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"BTCUSDT": {1, 2, 3}}}
	m, err := NewManager(testManagerCfg(p))
	require.NoError(t, err)

	m.Start(context.Background())
	sub := m.Hub().Attach()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// The hub is closed, so the subscriber channel drains and closes.
	for {
		if _, ok := <-sub.Events(); !ok {
			break
		}
	}
}
