package engine

import (
	"math"
	"reflect"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/wire"
)

// DefaultLiquidityDrift scales the price change applied to liquidity on each tick.
const DefaultLiquidityDrift = 0.10

// ReducerConfig tunes the reducer.
type ReducerConfig struct {
	LiquidityDrift float64
	HistoryWindow  time.Duration
}

// Reducer applies commands to a State. It is pure apart from the injected
// clock: the input state is never modified.
type Reducer struct {
	cfg ReducerConfig
	now func() time.Time

	// OnUnknownPair is called when a tick or stats update names a pair
	// that no snapshot has introduced.
	OnUnknownPair func(pairAddress string)
}

// NewReducer creates a reducer. Zero config values select the defaults.
func NewReducer(cfg ReducerConfig, now func() time.Time) *Reducer {
	if cfg.LiquidityDrift == 0 {
		cfg.LiquidityDrift = DefaultLiquidityDrift
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = domain.HistoryWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Reducer{cfg: cfg, now: now}
}

// Reduce returns the state after cmd. When cmd has no observable effect the
// same pointer is returned.
func (r *Reducer) Reduce(s *State, cmd wire.Command) *State {
	switch c := cmd.(type) {
	case wire.SnapshotCommand:
		return r.applySnapshot(s, c)
	case wire.TickCommand:
		return r.applyTick(s, c)
	case wire.StatsCommand:
		return r.applyStats(s, c)
	}
	return s
}

func (r *Reducer) applySnapshot(s *State, c wire.SnapshotCommand) *State {
	now := r.now()
	d := &draft{base: s}
	ids := make([]string, 0, len(c.Entries))
	listed := make(map[string]struct{}, len(c.Entries))

	for _, e := range c.Entries {
		fresh := e.Token
		prev, ok := d.current().Lookup(fresh.PairAddress)

		var next *domain.Token
		if ok {
			next = mergeSnapshot(prev, fresh)
			if !sameExceptBookkeeping(prev, next) {
				next.LastSnapshotAt = now
				d.putToken(next)
			}
		} else {
			fresh.History = domain.History{}
			fresh.LastSnapshotAt = now
			next = &fresh
			d.putToken(next)
		}

		meta := d.current().Meta[next.ID]
		if domain.IsFinitePositive(e.TotalSupply) {
			meta.TotalSupply = e.TotalSupply
		}
		d.putMeta(next.ID, meta)
		if _, dup := listed[next.ID]; !dup {
			listed[next.ID] = struct{}{}
			ids = append(ids, next.ID)
		}
	}

	d.putPage(c.Page, ids)
	return d.result()
}

// mergeSnapshot refreshes descriptive and audit fields from fresh while keeping
// the live values the stream has produced since.
func mergeSnapshot(prev *domain.Token, fresh domain.Token) *domain.Token {
	next := fresh
	next.ID = prev.ID
	next.PriceUSD = prev.PriceUSD
	next.MarketCap = prev.MarketCap
	next.VolumeUSD = prev.VolumeUSD
	next.Transactions = prev.Transactions
	next.History = prev.History
	if !prev.LastTickAt.IsZero() {
		next.Liquidity = prev.Liquidity
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = prev.CreatedAt
	}
	next.LastSnapshotAt = prev.LastSnapshotAt
	next.LastTickAt = prev.LastTickAt
	next.LastStatsAt = prev.LastStatsAt
	return &next
}

func (r *Reducer) applyTick(s *State, c wire.TickCommand) *State {
	prev, ok := s.Lookup(c.Key.PairAddress)
	if !ok {
		r.unknown(c.Key.PairAddress)
		return s
	}
	d := &draft{base: s}

	meta := s.Meta[prev.ID]
	for _, sw := range c.Swaps {
		if sw.Token0Address != "" {
			meta.Token0Address = sw.Token0Address
		}
	}
	d.putMeta(prev.ID, meta)

	valid := make([]domain.Swap, 0, len(c.Swaps))
	for _, sw := range c.Swaps {
		if !sw.IsOutlier {
			valid = append(valid, sw)
		}
	}
	if len(valid) == 0 {
		return d.result()
	}

	supply := meta.TotalSupply
	if !domain.IsFinitePositive(supply) {
		supply = 0
		if domain.IsFinitePositive(prev.MarketCap) && domain.IsFinitePositive(prev.PriceUSD) {
			supply = prev.MarketCap / prev.PriceUSD
		}
	}

	price := resolvePrice(valid, prev.PriceUSD)

	mcap := prev.MarketCap
	if supply > 0 {
		if v := supply * price; !math.IsNaN(v) && !math.IsInf(v, 0) {
			mcap = v
		}
	}

	var volume float64
	buys, sells := prev.Transactions.Buys, prev.Transactions.Sells
	for _, sw := range valid {
		effective := sw.Price
		if !domain.IsFinitePositive(effective) {
			effective = price
		}
		if !domain.IsFinitePositive(effective) {
			effective = prev.PriceUSD
		}
		if amount := math.Abs(sw.Amount); !math.IsNaN(amount) && !math.IsInf(amount, 0) && domain.IsFinitePositive(effective) {
			volume += amount * effective
		}

		switch {
		case domain.SameAddress(sw.TokenIn, meta.Token0Address):
			buys++
		case domain.SameAddress(sw.TokenIn, prev.TokenAddress):
			sells++
		case meta.Token0Address == "" && prev.TokenAddress != "":
			buys++
		}
	}

	next := prev.Clone()
	next.PriceUSD = domain.NonNegative(price, prev.PriceUSD)
	next.MarketCap = domain.NonNegative(mcap, prev.MarketCap)
	next.VolumeUSD = domain.NonNegative(prev.VolumeUSD+volume, prev.VolumeUSD)
	next.Transactions = domain.Transactions{Buys: buys, Sells: sells}
	next.Liquidity = r.nextLiquidity(prev.Liquidity.Current, prev.PriceUSD, next.PriceUSD)

	now := r.now()
	next.History = prev.History.Append(domain.Sample{
		Timestamp: now,
		Price:     next.PriceUSD,
		MarketCap: next.MarketCap,
		Volume:    next.VolumeUSD,
		Buys:      next.Transactions.Buys,
		Sells:     next.Transactions.Sells,
		Liquidity: next.Liquidity.Current,
	}, now, r.cfg.HistoryWindow)
	next.LastTickAt = now

	d.putToken(next)
	return d.result()
}

// priceSource yields a candidate price and whether it is usable.
type priceSource func() (float64, bool)

// resolvePrice walks the sources in order: the latest swap, then the other
// swaps newest first, then the prior price.
func resolvePrice(valid []domain.Swap, prior float64) float64 {
	latest := 0
	for i := range valid {
		if !valid[i].Timestamp.Before(valid[latest].Timestamp) {
			latest = i
		}
	}

	sources := []priceSource{
		func() (float64, bool) {
			p := valid[latest].Price
			return p, domain.IsFinitePositive(p)
		},
		func() (float64, bool) {
			for i := len(valid) - 1; i >= 0; i-- {
				if i != latest && domain.IsFinitePositive(valid[i].Price) {
					return valid[i].Price, true
				}
			}
			return 0, false
		},
	}
	for _, src := range sources {
		if p, ok := src(); ok {
			return p
		}
	}
	return prior
}

func (r *Reducer) nextLiquidity(current, priorPrice, price float64) domain.Liquidity {
	if !domain.IsFinitePositive(current) {
		return domain.Liquidity{Current: domain.NonNegative(current, 0)}
	}
	var pct float64
	if domain.IsFinitePositive(priorPrice) {
		pct = (price - priorPrice) / priorPrice
	}
	next := math.Max(0, current+current*pct*r.cfg.LiquidityDrift)
	if math.IsNaN(next) || math.IsInf(next, 0) {
		next = current
	}
	return domain.Liquidity{
		Current:       next,
		ChangePercent: (next - current) / current * 100,
	}
}

func (r *Reducer) applyStats(s *State, c wire.StatsCommand) *State {
	prev, ok := s.Lookup(c.PairAddress)
	if !ok {
		r.unknown(c.PairAddress)
		return s
	}

	next := prev.Clone()
	u := c.StatsUpdate
	override(&next.Audit.ContractVerified, u.ContractVerified)
	override(&next.Audit.Honeypot, u.Honeypot)
	override(&next.Audit.Mintable, u.Mintable)
	override(&next.Audit.Freezable, u.Freezable)
	override(&next.Security.Renounced, u.Renounced)
	override(&next.Security.Locked, u.Locked)
	override(&next.Security.Burned, u.Burned)
	override(&next.Audit.Socials.Website, u.Website)
	override(&next.Audit.Socials.Twitter, u.Twitter)
	override(&next.Audit.Socials.Telegram, u.Telegram)
	override(&next.Audit.Socials.Discord, u.Discord)
	if u.MigrationProgress != nil && !math.IsNaN(*u.MigrationProgress) && !math.IsInf(*u.MigrationProgress, 0) {
		next.MigrationProgress = *u.MigrationProgress
	}

	if sameExceptBookkeeping(prev, next) {
		return s
	}
	next.LastStatsAt = r.now()

	d := &draft{base: s}
	d.putToken(next)
	return d.result()
}

func override[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// sameExceptBookkeeping compares two tokens ignoring the last-update timestamps.
func sameExceptBookkeeping(a, b *domain.Token) bool {
	x, y := *a, *b
	x.LastSnapshotAt, y.LastSnapshotAt = time.Time{}, time.Time{}
	x.LastTickAt, y.LastTickAt = time.Time{}, time.Time{}
	x.LastStatsAt, y.LastStatsAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(x, y)
}

func (r *Reducer) unknown(pairAddress string) {
	if r.OnUnknownPair != nil {
		r.OnUnknownPair(pairAddress)
	}
}
