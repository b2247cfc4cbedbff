package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/engine"
	"token_scanner/internal/generator"
	"token_scanner/internal/infra"
	"token_scanner/internal/service"
	"token_scanner/internal/stream"
	"token_scanner/internal/wire"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = 42

type memFavorites struct {
	mu   sync.Mutex
	favs map[string]domain.Favorite
}

func (m *memFavorites) SetFavorite(pair string, chainID int, pin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.TokenID(pair)
	if !pin {
		delete(m.favs, id)
		return nil
	}
	m.favs[id] = domain.Favorite{PairAddress: id, ChainID: chainID}
	return nil
}

func (m *memFavorites) ListFavorites() ([]domain.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Favorite, 0, len(m.favs))
	for _, f := range m.favs {
		out = append(out, f)
	}
	return out, nil
}

type fixture struct {
	srv     *Server
	http    *httptest.Server
	gen     *generator.Generator
	view    *service.ScannerService
	metrics *infra.Metrics
}

func newFixture(t *testing.T, setup ...func(*Server)) *fixture {
	t.Helper()
	gen := generator.New(testSeed, generator.Config{}, nil)
	view := service.NewScannerService()
	metrics := infra.NewMetrics()
	icons, err := infra.NewIconRenderer(t.TempDir())
	require.NoError(t, err)

	opts := Options{
		Seed:   testSeed,
		Stream: stream.Config{Interval: 10 * time.Millisecond, MaxStagger: 10 * time.Millisecond},
	}
	srv := New(opts, gen, view, &memFavorites{favs: map[string]domain.Favorite{}}, icons, metrics)
	for _, fn := range setup {
		fn(srv)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.CloseSessions()
		ts.Close()
	})
	return &fixture{srv: srv, http: ts, gen: gen, view: view, metrics: metrics}
}

// seedView feeds page 1 of the generator through the mapper and reducer.
func (f *fixture) seedView(t *testing.T) domain.ScannerResult {
	t.Helper()
	res := f.gen.Generate(domain.ScannerFilter{Page: 1}, 0)
	env, err := wire.Decode(mustEncode(t, wire.EventScannerPairs, wire.ScannerPairs{Filter: domain.ScannerFilter{Page: 1}, ScannerResult: res}))
	require.NoError(t, err)
	cmd, err := wire.NewMapper(nil).Map(env)
	require.NoError(t, err)

	st := engine.NewReducer(engine.ReducerConfig{}, nil).Reduce(engine.NewState(), cmd)
	f.view.Apply(st)
	return res
}

func mustEncode(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := wire.Encode(event, data)
	require.NoError(t, err)
	return b
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, event string) wire.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := wire.Decode(msg)
		require.NoError(t, err)
		if env.Event == event {
			return env
		}
	}
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestServer_Scanner(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/scanner?page=1&chain=eth")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got wire.ScannerPairs
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ETH", got.Filter.Chain)
	assert.Len(t, got.Items, generator.DefaultPageSize)
	for _, it := range got.Items {
		assert.Equal(t, domain.ChainID(domain.ChainETH), it.ChainID)
	}

	resp, _ = f.get(t, "/scanner?page=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_TokensAndFavorites(t *testing.T) {
	f := newFixture(t)
	res := f.seedView(t)
	last := res.Items[len(res.Items)-1].PairAddress

	resp, body := f.get(t, "/tokens/"+strings.ToUpper(last))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), domain.TokenID(last))

	resp, _ = f.get(t, "/tokens/0xmissing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPut, f.http.URL+"/favorites/"+last, nil)
	put, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	put.Body.Close()
	assert.Equal(t, http.StatusNoContent, put.StatusCode)

	_, body = f.get(t, "/tokens?sort=volume&dir=desc&favoritesFirst=true")
	var views []struct {
		ID         string `json:"id"`
		IsFavorite bool   `json:"isFavorite"`
	}
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, len(res.Items))
	assert.True(t, views[0].IsFavorite)

	_, body = f.get(t, "/favorites")
	assert.Contains(t, string(body), domain.TokenID(last))
}

func TestServer_Icon(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/icons/0xAbC123.png")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, len(body) > 8 && string(body[1:4]) == "PNG")
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	f.metrics.RecordDropped()
	_, body := f.get(t, "/metrics")

	assert.Contains(t, string(body), "scanner_envelopes_dropped_total 1")
}

func TestServer_WebSocketFlow(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		mustEncode(t, wire.EventScannerFilter, domain.ScannerFilter{Page: 1, Chain: "SOL"})))

	var pairs wire.ScannerPairs
	require.NoError(t, wire.DecodeData(readEnvelope(t, conn, wire.EventScannerPairs), &pairs))
	require.NotEmpty(t, pairs.Items)
	key := pairs.Items[0].Key()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventSubscribePair, key)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventSubscribePairStats, key)))

	var tick wire.Tick
	require.NoError(t, wire.DecodeData(readEnvelope(t, conn, wire.EventTick), &tick))
	assert.True(t, domain.SameAddress(key.PairAddress, tick.Pair.PairAddress))
	assert.Len(t, tick.Swaps, 2)

	var stats wire.PairStats
	require.NoError(t, wire.DecodeData(readEnvelope(t, conn, wire.EventPairStats), &stats))
	assert.True(t, domain.SameAddress(key.PairAddress, stats.PairAddress))

	require.Eventually(t, func() bool { return f.metrics.Snapshot().ActiveStreams == 1 }, 2*time.Second, 5*time.Millisecond)

	// Disconnect tears down every emitter of the session.
	conn.Close()
	require.Eventually(t, func() bool {
		s := f.metrics.Snapshot()
		return f.srv.SessionCount() == 0 && s.ActiveStreams == 0 && s.ActiveConnections == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServer_Unsubscribe(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	key := domain.PairKey{PairAddress: "0xPAIR", TokenAddress: "0xTOKEN", ChainID: 1}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventSubscribePair, key)))
	readEnvelope(t, conn, wire.EventTick)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventUnsubscribePair, key)))
	require.Eventually(t, func() bool { return f.metrics.Snapshot().ActiveStreams == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_DropsBadMessages(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, "bogus", map[string]int{"x": 1})))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventSubscribePair, domain.PairKey{})))

	require.Eventually(t, func() bool { return f.metrics.Snapshot().EnvelopesDropped == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), f.metrics.Snapshot().ActiveStreams)
}

func TestFilterFromQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, f domain.ScannerFilter)
	}{
		{"empty", "", false, func(t *testing.T, f domain.ScannerFilter) {
			assert.Equal(t, 0, f.Page)
			assert.Nil(t, f.MinVol24H)
		}},
		{"full", "page=3&chain=bsc&rankBy=volume&orderBy=asc&isNotHP=true&minVol24H=1000&maxAge=24", false, func(t *testing.T, f domain.ScannerFilter) {
			assert.Equal(t, 3, f.Page)
			assert.Equal(t, "bsc", f.Chain)
			assert.True(t, f.IsNotHP)
			require.NotNil(t, f.MinVol24H)
			assert.Equal(t, 1000.0, *f.MinVol24H)
			require.NotNil(t, f.MaxAgeHours)
			assert.Equal(t, 24.0, *f.MaxAgeHours)
		}},
		{"bad page", "page=x", true, nil},
		{"bad flag", "isNotHP=maybe", true, nil},
		{"bad volume", "minVol24H=lots", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			f, err := filterFromQuery(q)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, f)
		})
	}
}

func TestServer_TickIndex(t *testing.T) {
	f := newFixture(t)
	start := f.srv.started
	f.srv.now = func() time.Time { return start.Add(95 * time.Millisecond) }

	assert.Equal(t, 9, f.srv.TickIndex())
}

func TestServer_LateSubscriberJoinsTimeline(t *testing.T) {
	f := newFixture(t, func(s *Server) {
		start := s.started
		s.now = func() time.Time { return start.Add(405 * time.Millisecond) }
	})
	require.Equal(t, 40, f.srv.TickIndex())

	conn := f.dial(t)
	key := domain.PairKey{PairAddress: "0xLATE", TokenAddress: "0xTOKEN", ChainID: 1}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EventSubscribePair, key)))

	var tick wire.Tick
	require.NoError(t, wire.DecodeData(readEnvelope(t, conn, wire.EventTick), &tick))

	p := f.gen.Profiles().Resolve(key)
	want := stream.BuildTick(testSeed, p, 41, stream.PriceAt(testSeed, p, 41), time.Now())
	assert.Equal(t, want.Swaps[0].Price, tick.Swaps[0].Price, "first tick continues the shared price path")
}
