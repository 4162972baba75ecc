package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/hub"
	"cryptoPulse/internal/indicators"
	"cryptoPulse/internal/marketdata"
	"cryptoPulse/internal/ports"
)

const snapshotWorkers = 8

// RegistryConfig wires the application-level registry.
type RegistryConfig struct {
	// Timeframes is the set a deployment serves. Requests for anything else
	// are rejected.
	Timeframes []string
	// Symbols, when non-empty, bypasses discovery entirely.
	Symbols []string
	// MaxSymbols caps how many discovered symbols get streamed.
	MaxSymbols int

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
	Dial     marketdata.DialFunc // optional test hook
}

// Registry owns one stream manager per timeframe, created lazily on the first
// subscriber and torn down when the last one leaves. It is the single entry
// point the HTTP layer talks to.
type Registry struct {
	cfg     RegistryConfig
	allowed map[string]struct{}

	mu       sync.Mutex
	managers map[string]*managerEntry
	closed   bool

	symMu   sync.Mutex
	symbols []string
}

type managerEntry struct {
	mgr  *marketdata.Manager
	refs int
}

// NewRegistry validates the configuration and creates an empty registry. No
// upstream connection is opened until the first Subscribe.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Provider == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Registry")
	}
	if len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("at least one timeframe must be configured")
	}
	allowed := make(map[string]struct{}, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		if !domain.IsKnownTimeframe(tf) {
			return nil, fmt.Errorf("%w: %q", ports.ErrUnknownTimeframe, tf)
		}
		allowed[tf] = struct{}{}
	}
	return &Registry{
		cfg:      cfg,
		allowed:  allowed,
		managers: make(map[string]*managerEntry),
	}, nil
}

// Timeframes returns the configured timeframes, sorted.
func (r *Registry) Timeframes() []string {
	out := make([]string, 0, len(r.allowed))
	for tf := range r.allowed {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) checkTimeframe(tf string) error {
	if _, ok := r.allowed[tf]; !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownTimeframe, tf)
	}
	return nil
}

// Subscribe attaches a new subscriber to the given timeframe's event stream,
// spinning up the manager (seed fetch plus batch connections) if this is the
// first subscriber for that timeframe.
func (r *Registry) Subscribe(ctx context.Context, timeframe string) (*hub.Subscription, error) {
	if err := r.checkTimeframe(timeframe); err != nil {
		return nil, err
	}

	symbols, err := r.streamSymbols(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	entry, ok := r.managers[timeframe]
	if !ok {
		mgr, err := marketdata.NewManager(marketdata.ManagerConfig{
			Timeframe:        timeframe,
			Symbols:          symbols,
			WindowSize:       r.cfg.WindowSize,
			Indicators:       r.cfg.Indicators,
			BatchSize:        r.cfg.BatchSize,
			StreamBaseURL:    r.cfg.StreamBaseURL,
			BackoffMin:       r.cfg.BackoffMin,
			BackoffMax:       r.cfg.BackoffMax,
			KeepAlive:        r.cfg.KeepAlive,
			SubscriberBuffer: r.cfg.SubscriberBuffer,
			ForwardPartials:  r.cfg.ForwardPartials,
			Provider:         r.cfg.Provider,
			Archive:          r.cfg.Archive,
			Logger:           r.cfg.Logger,
			Dial:             r.cfg.Dial,
		})
		if err != nil {
			return nil, err
		}
		mgr.Start(context.Background())
		entry = &managerEntry{mgr: mgr}
		r.managers[timeframe] = entry
		r.cfg.Logger.Info(ctx, "stream manager started", map[string]interface{}{
			"timeframe": timeframe, "symbols": len(symbols),
		})
	}
	entry.refs++
	return entry.mgr.Hub().Attach(), nil
}

// Unsubscribe detaches the subscription. When the last subscriber of a
// timeframe leaves, its manager is stopped and every upstream connection for
// that timeframe is closed.
func (r *Registry) Unsubscribe(timeframe string, sub *hub.Subscription) {
	r.mu.Lock()
	entry, ok := r.managers[timeframe]
	if !ok {
		r.mu.Unlock()
		return
	}
	entry.mgr.Hub().Detach(sub)
	entry.refs--
	var stopping *marketdata.Manager
	if entry.refs <= 0 {
		delete(r.managers, timeframe)
		stopping = entry.mgr
	}
	r.mu.Unlock()

	if stopping != nil {
		stopping.Stop()
		r.cfg.Logger.Info(context.Background(), "stream manager stopped", map[string]interface{}{
			"timeframe": timeframe,
		})
	}
}

// Snapshot returns the latest per-symbol update events for the timeframe. If
// a live manager is running its in-memory state answers directly; otherwise
// the history is fetched and the indicators computed one-shot, without
// starting a stream.
func (r *Registry) Snapshot(ctx context.Context, timeframe string, limit int) ([]domain.UpdateEvent, error) {
	if err := r.checkTimeframe(timeframe); err != nil {
		return nil, err
	}

	r.mu.Lock()
	entry, live := r.managers[timeframe]
	r.mu.Unlock()
	if live {
		return entry.mgr.Latest(limit), nil
	}
	return r.snapshotOneShot(ctx, timeframe, limit)
}

func (r *Registry) snapshotOneShot(ctx context.Context, timeframe string, limit int) ([]domain.UpdateEvent, error) {
	symbols, err := r.streamSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	windowSize := r.cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 500
	}

	var (
		mu  sync.Mutex
		out []domain.UpdateEvent
		wg  sync.WaitGroup
	)
	work := make(chan string)
	for i := 0; i < snapshotWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				ev, ok := r.snapshotSymbol(ctx, symbol, timeframe, windowSize)
				if !ok {
					continue
				}
				mu.Lock()
				out = append(out, ev)
				mu.Unlock()
			}
		}()
	}
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		work <- symbol
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *Registry) snapshotSymbol(ctx context.Context, symbol, timeframe string, limit int) (domain.UpdateEvent, bool) {
	klines, err := r.cfg.Provider.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil || len(klines) == 0 {
		if err != nil {
			r.cfg.Logger.Warn(ctx, "snapshot fetch failed", map[string]interface{}{
				"symbol": symbol, "timeframe": timeframe, "error": err.Error(),
			})
		}
		return domain.UpdateEvent{}, false
	}

	closes := make([]float64, 0, len(klines))
	var last *domain.Kline
	for _, k := range klines {
		if !k.IsFinal {
			continue
		}
		closes = append(closes, k.Close)
		last = k
	}
	if last == nil {
		return domain.UpdateEvent{}, false
	}
	snap := indicators.Compute(closes, r.cfg.Indicators)
	return domain.NewUpdateEvent(last, snap, false), true
}

// streamSymbols resolves the symbol universe once and caches it for the
// process lifetime. An explicit Symbols list wins over discovery.
func (r *Registry) streamSymbols(ctx context.Context) ([]string, error) {
	r.symMu.Lock()
	defer r.symMu.Unlock()
	if r.symbols != nil {
		return r.symbols, nil
	}

	symbols := r.cfg.Symbols
	if len(symbols) == 0 {
		discovered, err := r.cfg.Provider.GetFuturesSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("symbol discovery failed: %w", err)
		}
		symbols = discovered
		r.cfg.Logger.Info(ctx, "discovered tradable symbols", map[string]interface{}{
			"count": len(symbols),
		})
	}
	if r.cfg.MaxSymbols > 0 && len(symbols) > r.cfg.MaxSymbols {
		symbols = symbols[:r.cfg.MaxSymbols]
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to stream")
	}
	r.symbols = symbols
	return symbols, nil
}

// Close stops every running manager. The registry rejects new subscribers
// afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	managers := make([]*marketdata.Manager, 0, len(r.managers))
	for tf, entry := range r.managers {
		delete(r.managers, tf)
		managers = append(managers, entry.mgr)
	}
	r.mu.Unlock()

	for _, mgr := range managers {
		mgr.Stop()
	}
}

// managerCount reports how many timeframe managers are currently running.
func (r *Registry) managerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
