package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"token_scanner/internal/domain"
	"token_scanner/internal/engine"
)

// ScannerService is the read side of the token state. It keeps the latest
// published state and serves ordered and sorted views of it.
type ScannerService struct {
	mu        sync.RWMutex
	state     *engine.State
	favorites map[string]bool
	stateChan chan *engine.State
}

// NewScannerService creates a new ScannerService instance
func NewScannerService() *ScannerService {
	return &ScannerService{
		state:     engine.NewState(),
		favorites: make(map[string]bool),
		stateChan: make(chan *engine.State, 1),
	}
}

// Publish hands a new state to the processor without blocking the caller.
// Only the newest pending state is kept.
func (s *ScannerService) Publish(st *engine.State) {
	for {
		select {
		case s.stateChan <- st:
			return
		default:
		}
		select {
		case <-s.stateChan:
		default:
		}
	}
}

// StartStateProcessor starts a background goroutine applying published states.
func (s *ScannerService) StartStateProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-s.stateChan:
				s.Apply(st)
			}
		}
	}()
}

// Apply installs st if it is newer than the current state.
func (s *ScannerService) Apply(st *engine.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st == nil || st.Version < s.state.Version {
		return
	}
	s.state = st
}

// Version returns the version of the state being served.
func (s *ScannerService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Version
}

// TokenView is a token as served to readers.
type TokenView struct {
	*domain.Token
	IsFavorite bool `json:"isFavorite"`
}

// GetAllData returns all tokens in page order
func (s *ScannerService) GetAllData() []TokenView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.state.Ordered()
	result := make([]TokenView, len(ordered))
	for i, t := range ordered {
		result[i] = TokenView{Token: t, IsFavorite: s.favorites[t.ID]}
	}
	return result
}

// GetData returns the token of a pair address, ignoring case
func (s *ScannerService) GetData(pairAddress string) (TokenView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.state.Lookup(pairAddress)
	if !ok {
		return TokenView{}, false
	}
	return TokenView{Token: t, IsFavorite: s.favorites[t.ID]}, true
}

// Page returns the tokens of one snapshot page in order.
func (s *ScannerService) Page(page int) []TokenView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.state.Pages[page]
	result := make([]TokenView, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.state.Tokens[id]; ok {
			result = append(result, TokenView{Token: t, IsFavorite: s.favorites[id]})
		}
	}
	return result
}

var sortFields = map[string]func(t *domain.Token) float64{
	"price":     func(t *domain.Token) float64 { return t.PriceUSD },
	"mcap":      func(t *domain.Token) float64 { return t.MarketCap },
	"volume":    func(t *domain.Token) float64 { return t.VolumeUSD },
	"liquidity": func(t *domain.Token) float64 { return t.Liquidity.Current },
	"age":       func(t *domain.Token) float64 { return -float64(t.CreatedAt.Unix()) },
	"buys":      func(t *domain.Token) float64 { return float64(t.Transactions.Buys) },
	"sells":     func(t *domain.Token) float64 { return float64(t.Transactions.Sells) },
	"txns":      func(t *domain.Token) float64 { return float64(t.Transactions.Buys + t.Transactions.Sells) },
}

// Sorted returns all tokens ordered by key. Unknown keys keep page order.
// Favorites are listed first when favoritesFirst is set.
func (s *ScannerService) Sorted(key, direction string, favoritesFirst bool) []TokenView {
	result := s.GetAllData()
	value, ok := sortFields[strings.ToLower(key)]
	asc := strings.EqualFold(direction, "asc")

	sort.SliceStable(result, func(i, j int) bool {
		if favoritesFirst && result[i].IsFavorite != result[j].IsFavorite {
			return result[i].IsFavorite
		}
		if !ok {
			return false
		}
		if asc {
			return value(result[i].Token) < value(result[j].Token)
		}
		return value(result[i].Token) > value(result[j].Token)
	})
	return result
}

// SetFavorite sets the favorite status for a pair
func (s *ScannerService) SetFavorite(pairAddress string, isFavorite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.TokenID(pairAddress)
	if isFavorite {
		s.favorites[id] = true
		return
	}
	delete(s.favorites, id)
}
