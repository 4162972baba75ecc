package marketdata

import (
	"context"
	"sort"
	"sync"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/hub"
	"cryptoPulse/internal/indicators"
	"cryptoPulse/internal/ports"
)

// Coordinator ties the normalizer, the rolling window and the indicator
// engine together. For every finalized candle it records the close, rebuilds
// the indicator snapshot from the updated history and broadcasts the update
// event; at most one computation is in flight per symbol at a time. Partial
// candles never touch history: when forwarding is enabled they go out as live
// ticks carrying the previous snapshot.
type Coordinator struct {
	window          *Window
	indCfg          indicators.Config
	events          *hub.Hub
	logger          ports.Logger
	archive         ports.CandleArchive // nil disables archiving
	forwardPartials bool
	norm            Normalizer

	mu     sync.Mutex
	states map[string]*symbolState
}

type symbolState struct {
	mu       sync.Mutex
	snapshot domain.IndicatorSnapshot
	last     domain.UpdateEvent
	has      bool
}

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Window          *Window
	Indicators      indicators.Config
	Hub             *hub.Hub
	Logger          ports.Logger
	Archive         ports.CandleArchive
	ForwardPartials bool
}

// NewCoordinator creates a Coordinator publishing into the given hub.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		window:          cfg.Window,
		indCfg:          cfg.Indicators,
		events:          cfg.Hub,
		logger:          cfg.Logger,
		archive:         cfg.Archive,
		forwardPartials: cfg.ForwardPartials,
		states:          make(map[string]*symbolState),
	}
}

func (c *Coordinator) state(symbol string) *symbolState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[symbol]
	if !ok {
		st = &symbolState{}
		c.states[symbol] = st
	}
	return st
}

// HandleRaw decodes one raw stream frame and processes the resulting candle,
// if any.
func (c *Coordinator) HandleRaw(ctx context.Context, raw []byte) {
	k, ok := c.norm.Decode(raw)
	if !ok {
		return
	}
	c.Handle(ctx, k)
}

// Handle processes one normalized candle.
func (c *Coordinator) Handle(ctx context.Context, k *domain.Kline) {
	st := c.state(k.Symbol)
	st.mu.Lock()

	if !k.IsFinal {
		if !c.forwardPartials {
			st.mu.Unlock()
			return
		}
		ev := domain.NewUpdateEvent(k, st.snapshot, true)
		st.mu.Unlock()
		c.events.Broadcast(ev)
		return
	}

	c.window.Record(k.Symbol, k.Close)
	closes := c.window.Closes(k.Symbol)
	snap := indicators.Compute(closes, c.indCfg)

	ev := domain.NewUpdateEvent(k, snap, false)
	st.snapshot = snap
	st.last = ev
	st.has = true
	st.mu.Unlock()

	c.events.Broadcast(ev)

	if c.archive != nil {
		if err := c.archive.StoreKline(ctx, k); err != nil {
			c.logger.Warn(ctx, "failed to archive candle", map[string]interface{}{
				"symbol": k.Symbol, "error": err.Error(),
			})
		}
	}
}

// Latest returns the most recent update event per symbol, sorted by symbol,
// capped at limit when limit > 0. It serves the one-shot snapshot query.
func (c *Coordinator) Latest(limit int) []domain.UpdateEvent {
	c.mu.Lock()
	states := make(map[string]*symbolState, len(c.states))
	for sym, st := range c.states {
		states[sym] = st
	}
	c.mu.Unlock()

	out := make([]domain.UpdateEvent, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if st.has {
			out = append(out, st.last)
		}
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DroppedFrames reports how many raw frames the normalizer has discarded.
func (c *Coordinator) DroppedFrames() uint64 {
	return c.norm.Dropped()
}
