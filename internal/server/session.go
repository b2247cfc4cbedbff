package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/stream"
	"token_scanner/internal/wire"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// Session is one websocket connection. It owns the scheduler of the pairs
// the connection subscribed to.
type Session struct {
	id      string
	srv     *Server
	conn    *websocket.Conn
	sched   *stream.Scheduler
	limiter *rate.Limiter

	queue     chan stream.Emission
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket connection", slog.Any("error", err))
		return
	}

	sess := s.newSession(conn)
	s.sessions.Store(sess.id, sess)
	s.metrics.IncrementConnections()
	slog.Info("Session connected", slog.String("session", sess.id), slog.String("remote_addr", r.RemoteAddr))

	sess.wg.Add(1)
	go sess.writeLoop()
	sess.readLoop(r.Context())
	sess.close()

	s.sessions.Delete(sess.id)
	s.metrics.DecrementConnections()
	slog.Info("Session disconnected", slog.String("session", sess.id))
}

func (s *Server) newSession(conn *websocket.Conn) *Session {
	sess := &Session{
		id:      uuid.NewString(),
		srv:     s,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst),
		queue:   make(chan stream.Emission, s.opts.SendQueue),
		done:    make(chan struct{}),
	}
	sess.sched = stream.NewScheduler(s.opts.Seed, s.opts.Stream, s.gen.Profiles(), sess.enqueue, s.metrics).WithTimeline(s.TickIndex)
	return sess
}

// ID returns the session id.
func (sess *Session) ID() string {
	return sess.id
}

// enqueue never blocks; a full queue drops the emission.
func (sess *Session) enqueue(e stream.Emission) {
	select {
	case <-sess.done:
		return
	default:
	}
	select {
	case sess.queue <- e:
	default:
		sess.srv.metrics.RecordDropped()
	}
}

func (sess *Session) readLoop(ctx context.Context) {
	sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, msg, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Session read failed", slog.String("session", sess.id), slog.Any("error", err))
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !sess.limiter.Allow() {
			sess.srv.metrics.RecordDropped()
			slog.Debug("Rate limited message", slog.String("session", sess.id))
			continue
		}
		if err := sess.handle(msg); err != nil {
			sess.srv.metrics.RecordDropped()
			slog.Debug("Dropped client message", slog.String("session", sess.id), slog.Any("error", err))
		}
	}
}

var errUnknownEvent = errors.New("unknown event")

func (sess *Session) handle(msg []byte) error {
	env, err := wire.Decode(msg)
	if err != nil {
		return err
	}

	switch env.Event {
	case wire.EventScannerFilter:
		var f domain.ScannerFilter
		if err := wire.DecodeData(env, &f); err != nil {
			return err
		}
		f = f.Normalize()
		res := sess.srv.gen.Generate(f, sess.srv.TickIndex())
		sess.enqueue(stream.Emission{Event: wire.EventScannerPairs, Data: wire.ScannerPairs{Filter: f, ScannerResult: res}})
		return nil

	case wire.EventSubscribePair, wire.EventSubscribePairStats,
		wire.EventUnsubscribePair, wire.EventUnsubscribePairStats:
		var key domain.PairKey
		if err := wire.DecodeData(env, &key); err != nil {
			return err
		}
		if !key.Valid() {
			return domain.ErrMalformedEnvelope
		}
		sess.subscription(env.Event, key)
		return nil
	}
	return errUnknownEvent
}

func (sess *Session) subscription(event string, key domain.PairKey) {
	switch event {
	case wire.EventSubscribePair:
		sess.sched.Start(key, stream.TopicTick)
	case wire.EventSubscribePairStats:
		sess.sched.Start(key, stream.TopicStats)
	case wire.EventUnsubscribePair:
		sess.sched.Stop(key, stream.TopicTick)
	case wire.EventUnsubscribePairStats:
		sess.sched.Stop(key, stream.TopicStats)
	}
}

func (sess *Session) writeLoop() {
	defer sess.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.conn.Close()
				return
			}
		case e := <-sess.queue:
			// Emissions queued before an unsubscribe are stale.
			if e.Topic != 0 && !sess.sched.Active(e.Key, e.Topic) {
				continue
			}
			b, err := wire.Encode(e.Event, e.Data)
			if err != nil {
				sess.srv.metrics.RecordError()
				slog.Error("Failed to encode emission", slog.String("event", e.Event), slog.Any("error", err))
				continue
			}
			sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				sess.conn.Close()
				return
			}
		}
	}
}

// close stops every emitter before the writer so no timer outlives the session.
func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		sess.sched.StopAll()
		close(sess.done)
		sess.wg.Wait()
		sess.conn.Close()
	})
}
