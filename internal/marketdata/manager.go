package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/hub"
	"cryptoPulse/internal/indicators"
	"cryptoPulse/internal/ports"
)

const seedWorkers = 8

// ManagerConfig wires one manager instance (one timeframe).
type ManagerConfig struct {
	Timeframe string
	Symbols   []string

	WindowSize       int
	Indicators       indicators.Config
	BatchSize        int
	StreamBaseURL    string
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	KeepAlive        time.Duration
	SubscriberBuffer int
	ForwardPartials  bool

	Provider ports.MarketDataProvider
	Archive  ports.CandleArchive // optional
	Logger   ports.Logger
	Dial     DialFunc // optional test hook
}

// Manager owns everything for one timeframe: the rolling windows, the
// coordinator, the subscriber hub and the batched upstream connections.
// Created lazily on first subscriber; torn down when the last one detaches.
type Manager struct {
	cfg    ManagerConfig
	events *hub.Hub
	window *Window
	coord  *Coordinator
	conns  *BatchConns

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewManager validates the configuration and assembles a manager. It does not
// touch the network until Start.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Provider == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for manager")
	}
	if !domain.IsKnownTimeframe(cfg.Timeframe) {
		return nil, fmt.Errorf("%w: %q", ports.ErrUnknownTimeframe, cfg.Timeframe)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("manager requires at least one symbol")
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 500
	}

	events := hub.New(cfg.SubscriberBuffer)
	window := NewWindow(cfg.WindowSize)
	coord := NewCoordinator(CoordinatorConfig{
		Window:          window,
		Indicators:      cfg.Indicators,
		Hub:             events,
		Logger:          cfg.Logger,
		Archive:         cfg.Archive,
		ForwardPartials: cfg.ForwardPartials,
	})

	m := &Manager{
		cfg:    cfg,
		events: events,
		window: window,
		coord:  coord,
	}
	m.conns = NewBatchConns(cfg.Symbols, BatchConnsConfig{
		StreamBaseURL:     cfg.StreamBaseURL,
		Interval:          cfg.Timeframe,
		BatchSize:         cfg.BatchSize,
		BackoffMin:        cfg.BackoffMin,
		BackoffMax:        cfg.BackoffMax,
		KeepAliveInterval: cfg.KeepAlive,
		Logger:            cfg.Logger,
		Dial:              cfg.Dial,
	}, func(raw []byte) {
		m.coord.HandleRaw(context.Background(), raw)
	})
	return m, nil
}

// Start seeds every symbol's history and then opens the batch connections.
// Seeding is best effort and runs in the background so a slow provider does
// not block the first subscriber.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go func() {
		m.seed(runCtx)
		if runCtx.Err() != nil {
			return
		}
		m.conns.Start(runCtx)
	}()
}

// seed pre-loads the close history for every symbol from the historical
// fetch, falling back to the local archive and finally to an empty history.
func (m *Manager) seed(ctx context.Context) {
	limit := m.cfg.WindowSize
	work := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < seedWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				m.seedSymbol(ctx, symbol, limit)
			}
		}()
	}

	for _, symbol := range m.cfg.Symbols {
		if ctx.Err() != nil {
			break
		}
		work <- symbol
	}
	close(work)
	wg.Wait()

	m.cfg.Logger.Info(ctx, "historical seed complete", map[string]interface{}{
		"timeframe": m.cfg.Timeframe, "symbols": len(m.cfg.Symbols),
	})
}

func (m *Manager) seedSymbol(ctx context.Context, symbol string, limit int) {
	klines, err := m.cfg.Provider.GetKlines(ctx, symbol, m.cfg.Timeframe, limit)
	if err == nil {
		closes := make([]float64, 0, len(klines))
		for _, k := range klines {
			if k.IsFinal {
				closes = append(closes, k.Close)
			}
		}
		m.window.Seed(symbol, closes)
		return
	}

	m.cfg.Logger.Warn(ctx, "seed fetch failed", map[string]interface{}{
		"symbol": symbol, "timeframe": m.cfg.Timeframe, "error": err.Error(),
	})

	if m.cfg.Archive != nil {
		closes, aerr := m.cfg.Archive.RecentCloses(ctx, symbol, m.cfg.Timeframe, limit)
		if aerr == nil && len(closes) > 0 {
			m.window.Seed(symbol, closes)
			m.cfg.Logger.Info(ctx, "seeded from local archive", map[string]interface{}{
				"symbol": symbol, "closes": len(closes),
			})
			return
		}
	}
	// The symbol starts with an empty history; indicators stay unavailable
	// until enough live candles accumulate.
}

// Stop closes every batch connection, stops all timers and detaches all
// subscribers.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.conns.Wait()
	m.events.Close()
}

// Hub exposes the manager's subscriber hub.
func (m *Manager) Hub() *hub.Hub {
	return m.events
}

// Latest returns the most recent update event per symbol (see
// Coordinator.Latest).
func (m *Manager) Latest(limit int) []domain.UpdateEvent {
	return m.coord.Latest(limit)
}
