package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/generator"
	"token_scanner/internal/infra"
	"token_scanner/internal/service"
	"token_scanner/internal/stream"
	"token_scanner/internal/wire"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"
)

// Options configures the server.
type Options struct {
	ListenAddr string
	Seed       uint32
	Stream     stream.Config
	RateLimit  float64 // inbound messages per second per session
	RateBurst  int
	SendQueue  int
}

// Server serves the scanner over HTTP and websocket.
type Server struct {
	opts      Options
	gen       *generator.Generator
	view      *service.ScannerService
	favorites domain.FavoriteRepository
	icons     *infra.IconRenderer
	metrics   *infra.Metrics
	registry  *prometheus.Registry

	upgrader websocket.Upgrader
	sessions *xsync.Map[string, *Session]
	started  time.Time
	now      func() time.Time
}

// New creates a server. favorites and icons may be nil.
func New(opts Options, gen *generator.Generator, view *service.ScannerService, favorites domain.FavoriteRepository, icons *infra.IconRenderer, metrics *infra.Metrics) *Server {
	if opts.ListenAddr == "" {
		opts.ListenAddr = ":8080"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if metrics == nil {
		metrics = infra.NewMetrics()
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		slog.Warn("Failed to register metrics", slog.Any("error", err))
	}

	return &Server{
		opts:      opts,
		gen:       gen,
		view:      view,
		favorites: favorites,
		icons:     icons,
		metrics:   metrics,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: xsync.NewMap[string, *Session](),
		started:  time.Now(),
		now:      time.Now,
	}
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	r.HandleFunc("/scanner", s.handleScanner).Methods("GET")
	r.HandleFunc("/tokens", s.handleTokens).Methods("GET")
	r.HandleFunc("/tokens/{pair}", s.handleToken).Methods("GET")
	r.HandleFunc("/favorites", s.handleListFavorites).Methods("GET")
	r.HandleFunc("/favorites/{pair}", s.handleSetFavorite).Methods("PUT", "DELETE")
	r.HandleFunc("/icons/{address:[A-Za-z0-9]+}.png", s.handleIcon).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	return r
}

// Run serves until ctx is cancelled, then closes every session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", s.opts.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.CloseSessions()
	return err
}

// CloseSessions disconnects every websocket session.
func (s *Server) CloseSessions() {
	s.sessions.Range(func(_ string, sess *Session) bool {
		sess.conn.Close()
		return true
	})
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	return s.sessions.Size()
}

// TickIndex is the number of emission intervals since the server started.
// Snapshots generated at the same index are identical.
func (s *Server) TickIndex() int {
	interval := s.opts.Stream.Interval
	if interval <= 0 {
		interval = stream.DefaultInterval
	}
	if s.opts.Stream.FastTiming && s.opts.Stream.FastFactor > 0 {
		interval /= time.Duration(s.opts.Stream.FastFactor)
	}
	return int(s.now().Sub(s.started) / interval)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
		"version":  s.view.Version(),
	})
}

func (s *Server) handleScanner(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.gen.Generate(f, s.TickIndex())
	writeJSON(w, http.StatusOK, wire.ScannerPairs{Filter: f.Normalize(), ScannerResult: res})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view.Page(page))
		return
	}
	favFirst, _ := strconv.ParseBool(q.Get("favoritesFirst"))
	writeJSON(w, http.StatusOK, s.view.Sorted(q.Get("sort"), q.Get("dir"), favFirst))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	t, ok := s.view.GetData(pair)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown pair"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	if s.favorites == nil {
		writeJSON(w, http.StatusOK, []domain.Favorite{})
		return
	}
	favs, err := s.favorites.ListFavorites()
	if err != nil {
		s.metrics.RecordError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	pin := r.Method == http.MethodPut

	chainID := 0
	if t, ok := s.view.GetData(pair); ok {
		chainID = t.ChainID
	}
	if s.favorites != nil {
		if err := s.favorites.SetFavorite(pair, chainID, pin); err != nil {
			s.metrics.RecordError()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.view.SetFavorite(pair, pin)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	if s.icons == nil {
		writeError(w, http.StatusNotFound, errors.New("icons disabled"))
		return
	}
	png, err := s.icons.IconPNG(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(png)
}

// filterFromQuery builds a scanner filter from URL query parameters.
func filterFromQuery(q url.Values) (domain.ScannerFilter, error) {
	f := domain.ScannerFilter{
		Chain:   q.Get("chain"),
		RankBy:  q.Get("rankBy"),
		OrderBy: q.Get("orderBy"),
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid page: %w", err)
		}
		f.Page = page
	}
	if v := q.Get("isNotHP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid isNotHP: %w", err)
		}
		f.IsNotHP = b
	}
	for name, dst := range map[string]**float64{"minVol24H": &f.MinVol24H, "maxAge": &f.MaxAgeHours} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = &n
		}
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := wire.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
