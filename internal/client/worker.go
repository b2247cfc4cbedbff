package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/infra"
	"token_scanner/internal/wire"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
)

const (
	maxRetries       = 10
	pingInterval     = 30 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Submitter accepts commands in order. The sequencer implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd wire.Command) error
}

// Options configures the worker.
type Options struct {
	URL    string
	Filter domain.ScannerFilter // page is taken from Pages
	Pages  []int
	// RefreshSpec is a cron spec such as "@every 30s". Empty disables refreshes.
	RefreshSpec   string
	AutoSubscribe bool
}

// Worker consumes the scanner websocket and feeds mapped commands to a Submitter.
type Worker struct {
	opts    Options
	sink    Submitter
	mapper  *wire.Mapper
	metrics *infra.Metrics
	backoff func(retry int) time.Duration

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	subs      map[domain.PairKey]struct{} // per connection

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a new scanner stream worker
func NewWorker(opts Options, sink Submitter, metrics *infra.Metrics) *Worker {
	if len(opts.Pages) == 0 {
		opts.Pages = []int{1}
	}
	if metrics == nil {
		metrics = infra.NewMetrics()
	}
	return &Worker{
		opts:    opts,
		sink:    sink,
		mapper:  wire.NewMapper(nil),
		metrics: metrics,
		backoff: infra.CalculateBackoff,
		subs:    make(map[domain.PairKey]struct{}),
	}
}

var _ domain.StreamWorker = (*Worker)(nil)

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if w.opts.RefreshSpec != "" {
		w.cron = cron.New()
		if _, err := w.cron.AddFunc(w.opts.RefreshSpec, w.refresh); err != nil {
			w.cancel()
			return &domain.ConfigError{Field: "client.refresh_spec", Err: err}
		}
		w.cron.Start()
	}

	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			if !domain.IsRetriable(err) {
				slog.Error("Scanner connection failed permanently", slog.Any("error", err))
				return
			}
			slog.Warn("Scanner connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := w.backoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, w.opts.URL, make(http.Header))
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil && resp.StatusCode == http.StatusNotFound {
			return domain.NewFatalNetworkError("dial", fmt.Errorf("%w: %s", domain.ErrConnectionFailed, resp.Status))
		}
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.subs = make(map[domain.PairKey]struct{})
	w.mu.Unlock()

	if err := w.requestSnapshots(); err != nil {
		w.closeConnection()
		return domain.NewNetworkError("subscribe", err)
	}

	slog.Info("Scanner connected", slog.String("url", w.opts.URL), slog.Int("pages", len(w.opts.Pages)))
	return nil
}

// requestSnapshots asks for every configured page.
func (w *Worker) requestSnapshots() error {
	for _, page := range w.opts.Pages {
		f := w.opts.Filter
		f.Page = page
		b, err := wire.Encode(wire.EventScannerFilter, f)
		if err != nil {
			return err
		}
		if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
			return err
		}
	}
	return nil
}

// refresh runs on the cron schedule.
func (w *Worker) refresh() {
	if !w.IsConnected() {
		return
	}
	if err := w.requestSnapshots(); err != nil {
		slog.Warn("Snapshot refresh failed", slog.Any("error", err))
		w.metrics.RecordError()
	}
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	// Ping loop
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Scanner read failed", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}
		if err := w.handleMessage(ctx, msg); err != nil {
			return
		}
	}
}

// handleMessage maps one frame and submits the resulting command. It only
// fails when the submitter is gone.
func (w *Worker) handleMessage(ctx context.Context, msg []byte) error {
	env, err := wire.Decode(msg)
	if err != nil {
		w.metrics.RecordDropped()
		slog.Debug("Dropping frame", slog.Any("error", err))
		return nil
	}

	cmd, err := w.mapper.Map(env)
	if err != nil {
		n := countErrors(err)
		w.metrics.RecordValidationErrors(n)
		slog.Error("Snapshot items rejected", slog.Int("count", n), slog.Any("error", err))
	}
	if cmd == nil {
		w.metrics.RecordDropped()
		return nil
	}

	if err := w.sink.Submit(ctx, cmd); err != nil {
		return err
	}

	if snap, ok := cmd.(wire.SnapshotCommand); ok && w.opts.AutoSubscribe {
		w.subscribePage(snap)
	}
	return nil
}

// subscribePage subscribes to ticks and stats of every pair of a snapshot
// page not yet subscribed on this connection.
func (w *Worker) subscribePage(snap wire.SnapshotCommand) {
	for _, e := range snap.Entries {
		key := domain.PairKey{PairAddress: e.Token.PairAddress, TokenAddress: e.Token.TokenAddress, ChainID: e.Token.ChainID}.Canonical()

		w.mu.Lock()
		_, seen := w.subs[key]
		w.subs[key] = struct{}{}
		w.mu.Unlock()
		if seen {
			continue
		}

		for _, event := range []string{wire.EventSubscribePair, wire.EventSubscribePairStats} {
			b, err := wire.Encode(event, key)
			if err != nil {
				continue
			}
			if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
				slog.Warn("Subscribe failed", slog.String("pair", key.PairAddress), slog.Any("error", err))
				return
			}
		}
	}
}

// Subscriptions returns the number of pairs subscribed on the current connection.
func (w *Worker) Subscriptions() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}

// IsConnected reports whether a connection is currently open.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the worker and waits for its goroutines.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.closeConnection()
	w.wg.Wait()
}

// countErrors counts the errors joined in err.
func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
