package marketdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"cryptoPulse/internal/ports"
)

const pingWriteTimeout = 10 * time.Second

// StreamConn is the subset of a websocket connection the batch manager needs.
// *websocket.Conn satisfies it; tests substitute fakes.
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// DialFunc opens one stream connection. The default dials with gorilla's
// websocket dialer; tests inject failing or scripted dialers.
type DialFunc func(ctx context.Context, url string) (StreamConn, error)

func gorillaDial(ctx context.Context, url string) (StreamConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// BatchConnsConfig configures the batched stream connections for one
// timeframe.
type BatchConnsConfig struct {
	StreamBaseURL     string // combined-stream endpoint, streams appended
	Interval          string
	BatchSize         int           // max streams per connection
	BackoffMin        time.Duration // initial reconnect delay
	BackoffMax        time.Duration // reconnect delay cap
	KeepAliveInterval time.Duration // ping probe period per open connection
	Logger            ports.Logger
	Dial              DialFunc // optional, defaults to the gorilla dialer
}

// BatchConns groups symbols into fixed-size batches and owns one upstream
// connection per batch. Each batch runs an independent state machine:
// disconnected → connecting → connected → read loop → disconnected, with an
// exponential backoff between attempts and no terminal failure state. The
// backoff resets once a connection delivers its first message.
type BatchConns struct {
	cfg       BatchConnsConfig
	batches   [][]string
	onMessage func(raw []byte)

	wg sync.WaitGroup

	mu     sync.Mutex
	delays [][]time.Duration // reconnect waits taken so far, per batch
}

// PartitionSymbols splits symbols into chunks of at most size, preserving
// order. Assignment is static for the lifetime of the manager.
func PartitionSymbols(symbols []string, size int) [][]string {
	if size <= 0 {
		size = 60
	}
	var batches [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[i:end])
	}
	return batches
}

// NewBatchConns builds the batch set for the given symbols. onMessage
// receives every raw frame from every batch.
func NewBatchConns(symbols []string, cfg BatchConnsConfig, onMessage func(raw []byte)) *BatchConns {
	if cfg.Dial == nil {
		cfg.Dial = gorillaDial
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 60 * time.Second
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 2 * time.Minute
	}
	batches := PartitionSymbols(symbols, cfg.BatchSize)
	return &BatchConns{
		cfg:       cfg,
		batches:   batches,
		onMessage: onMessage,
		delays:    make([][]time.Duration, len(batches)),
	}
}

// BatchCount returns the number of batches (connections) managed.
func (b *BatchConns) BatchCount() int {
	return len(b.batches)
}

// Start launches one worker per batch. Workers stop when ctx is cancelled;
// Wait blocks until they have all exited.
func (b *BatchConns) Start(ctx context.Context) {
	for idx := range b.batches {
		b.wg.Add(1)
		go func(idx int) {
			defer b.wg.Done()
			b.runBatch(ctx, idx)
		}(idx)
	}
}

// Wait blocks until every batch worker has exited.
func (b *BatchConns) Wait() {
	b.wg.Wait()
}

func (b *BatchConns) streamURL(batch []string) string {
	streams := make([]string, len(batch))
	for i, s := range batch {
		streams[i] = strings.ToLower(s) + "@kline_" + b.cfg.Interval
	}
	return b.cfg.StreamBaseURL + strings.Join(streams, "/")
}

func (b *BatchConns) runBatch(ctx context.Context, idx int) {
	url := b.streamURL(b.batches[idx])
	bo := &backoff.Backoff{
		Min:    b.cfg.BackoffMin,
		Max:    b.cfg.BackoffMax,
		Factor: 2,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := b.cfg.Dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.Duration()
			b.recordDelay(idx, wait)
			b.cfg.Logger.Warn(ctx, "stream connect failed, retrying", map[string]interface{}{
				"batch": idx, "error": err.Error(), "retryIn": wait.String(),
			})
			if !sleepCtx(ctx, wait) {
				return
			}
			continue
		}

		b.cfg.Logger.Info(ctx, "stream batch connected", map[string]interface{}{
			"batch": idx, "streams": len(b.batches[idx]),
		})
		b.serve(ctx, idx, conn, bo)

		if ctx.Err() != nil {
			return
		}
		wait := bo.Duration()
		b.recordDelay(idx, wait)
		b.cfg.Logger.Warn(ctx, "stream batch disconnected, reconnecting", map[string]interface{}{
			"batch": idx, "retryIn": wait.String(),
		})
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// serve runs the read loop for one open connection until it dies or ctx is
// cancelled. A side goroutine sends the keep-alive ping probe and tears the
// socket down on cancellation so the blocked read returns.
func (b *BatchConns) serve(ctx context.Context, idx int, conn StreamConn, bo *backoff.Backoff) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(b.cfg.KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
					b.cfg.Logger.Warn(ctx, "keep-alive ping failed", map[string]interface{}{
						"batch": idx, "error": err.Error(),
					})
					conn.Close()
					return
				}
			}
		}
	}()

	first := true
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.cfg.Logger.Warn(ctx, "stream read error", map[string]interface{}{
					"batch": idx, "error": err.Error(),
				})
			}
			return
		}
		if first {
			// A connection that made it to its first message counts as
			// healthy: the next failure starts over from the minimum delay.
			bo.Reset()
			first = false
		}
		b.onMessage(raw)
	}
}

func (b *BatchConns) recordDelay(idx int, d time.Duration) {
	b.mu.Lock()
	b.delays[idx] = append(b.delays[idx], d)
	b.mu.Unlock()
}

// reconnectDelays returns a copy of the reconnect waits taken for one batch.
func (b *BatchConns) reconnectDelays(idx int) []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]time.Duration, len(b.delays[idx]))
	copy(out, b.delays[idx])
	return out
}

// sleepCtx waits for d, returning false if ctx is cancelled first. The timer
// is always stopped; no reconnect is left pending after teardown.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
