package wire

import (
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"token_scanner/internal/domain"

	"github.com/shopspring/decimal"
)

// Mapper turns inbound envelopes into commands.
type Mapper struct {
	now func() time.Time
}

// NewMapper creates a mapper. now stamps swaps that arrive without a timestamp.
func NewMapper(now func() time.Time) *Mapper {
	if now == nil {
		now = time.Now
	}
	return &Mapper{now: now}
}

// Map converts env into a command. Unknown events and payloads missing their
// identity fields yield (nil, nil) and should be dropped by the caller.
// For snapshots the returned error joins one ValidationError per rejected item;
// the command still carries every valid item.
func (m *Mapper) Map(env Envelope) (Command, error) {
	switch env.Event {
	case EventScannerPairs:
		var p ScannerPairs
		if err := DecodeData(env, &p); err != nil {
			slog.Debug("dropping scanner-pairs", slog.Any("error", err))
			return nil, nil
		}
		return m.mapSnapshot(p)

	case EventTick:
		var t Tick
		if err := DecodeData(env, &t); err != nil {
			slog.Debug("dropping tick", slog.Any("error", err))
			return nil, nil
		}
		if !t.Pair.Valid() {
			return nil, nil
		}
		return m.mapTick(t), nil

	case EventPairStats:
		var s PairStats
		if err := DecodeData(env, &s); err != nil {
			slog.Debug("dropping pair-stats", slog.Any("error", err))
			return nil, nil
		}
		if s.PairAddress == "" {
			return nil, nil
		}
		return mapStats(s), nil
	}
	return nil, nil
}

func (m *Mapper) mapSnapshot(p ScannerPairs) (Command, error) {
	cmd := SnapshotCommand{
		Page:    max(p.Page, 1),
		Entries: make([]SnapshotEntry, 0, len(p.Items)),
	}
	var errs []error
	for i := range p.Items {
		item := &p.Items[i]
		if item.PairAddress == "" || item.Token1Address == "" {
			continue
		}
		entry, err := MapItem(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cmd.Entries = append(cmd.Entries, entry)
	}
	return cmd, errors.Join(errs...)
}

// MapItem maps one scanner item to a token. A missing name or symbol is a
// *domain.ValidationError; every other field falls back to its zero value.
func MapItem(item *domain.ScannerItem) (SnapshotEntry, error) {
	if strings.TrimSpace(item.Token1Name) == "" {
		return SnapshotEntry{}, &domain.ValidationError{PairAddress: item.PairAddress, Field: "token1Name", Err: domain.ErrMissingName}
	}
	if strings.TrimSpace(item.Token1Symbol) == "" {
		return SnapshotEntry{}, &domain.ValidationError{PairAddress: item.PairAddress, Field: "token1Symbol", Err: domain.ErrMissingSymbol}
	}

	supply := ParseNumber(item.Token1TotalSupplyFormatted)
	if !domain.IsFinitePositive(supply) {
		supply = 0
	}

	t := domain.Token{
		ID:           domain.TokenID(item.PairAddress),
		PairAddress:  item.PairAddress,
		TokenAddress: item.Token1Address,
		Chain:        domain.ChainName(item.ChainID),
		ChainID:      item.ChainID,
		Exchange:     item.DexType,

		Name:   item.Token1Name,
		Symbol: item.Token1Symbol,

		PriceUSD:  firstPositive(item, supply, priceCandidates),
		MarketCap: firstPositive(item, supply, marketCapCandidates),
		VolumeUSD: domain.NonNegative(ParseNumber(item.Volume), 0),
		Liquidity: domain.Liquidity{
			Current:       domain.NonNegative(ParseNumber(item.Liquidity), 0),
			ChangePercent: finiteOr(ParseNumber(item.PercentChangeInLiquidity), 0),
		},
		PriceChange: domain.PriceChange{
			M5:  finiteOr(ParseNumber(item.Diff5M), 0),
			H1:  finiteOr(ParseNumber(item.Diff1H), 0),
			H6:  finiteOr(ParseNumber(item.Diff6H), 0),
			H24: finiteOr(ParseNumber(item.Diff24H), 0),
		},
		Transactions: domain.Transactions{
			Buys:  int64(max(item.Buys, 0)),
			Sells: int64(max(item.Sells, 0)),
		},
		Audit: domain.Audit{
			Mintable:         !item.IsMintAuthDisabled,
			Freezable:        !item.IsFreezeAuthDisabled,
			Honeypot:         item.HoneyPot != nil && *item.HoneyPot,
			ContractVerified: item.ContractVerified,
			Socials: domain.Socials{
				Website:  deref(firstLink(item.WebLink, item.WebsiteLink)),
				Twitter:  deref(firstLink(item.TwitterLink, item.Twitter)),
				Telegram: deref(firstLink(item.TelegramLink, item.Telegram)),
				Discord:  deref(firstLink(item.DiscordLink, item.Discord)),
			},
		},
		Security: domain.Security{
			Renounced: item.ContractRenounced,
			Locked:    item.LiquidityLocked,
			Burned:    ParseNumber(item.BurnedSupply) > 0,
		},
		MigrationProgress: clampPercent(ParseNumber(item.MigrationProgress)),
	}
	if created, err := time.Parse(time.RFC3339, item.Age); err == nil {
		t.CreatedAt = created
	}
	return SnapshotEntry{Token: t, TotalSupply: supply}, nil
}

func (m *Mapper) mapTick(t Tick) TickCommand {
	swaps := make([]domain.Swap, 0, len(t.Swaps))
	for _, r := range t.Swaps {
		ts := m.now()
		if r.Timestamp > 0 {
			ts = time.UnixMilli(r.Timestamp)
		}
		swaps = append(swaps, domain.Swap{
			Price:         ParseNumber(r.Price),
			Amount:        ParseNumber(r.Amount),
			TokenIn:       r.TokenIn,
			Token0Address: r.Token0Address,
			IsOutlier:     r.IsOutlier,
			Timestamp:     ts,
		})
	}
	return TickCommand{domain.TickBatch{Key: t.Pair, Swaps: swaps}}
}

func mapStats(s PairStats) StatsCommand {
	u := domain.StatsUpdate{
		PairAddress:      s.PairAddress,
		ChainID:          s.ChainID,
		ContractVerified: s.ContractVerified,
		Honeypot:         s.HoneyPot,
		Mintable:         negate(s.IsMintAuthDisabled),
		Freezable:        negate(s.IsFreezeAuthDisabled),
		Renounced:        s.ContractRenounced,
		Locked:           s.LiquidityLocked,
		Burned:           s.TokenBurned,
		Website:          firstLink(s.WebLink, s.WebsiteLink),
		Twitter:          firstLink(s.TwitterLink, s.Twitter),
		Telegram:         firstLink(s.TelegramLink, s.Telegram),
		Discord:          firstLink(s.DiscordLink, s.Discord),
	}
	if s.MigrationProgress != nil {
		if v := ParseNumber(*s.MigrationProgress); !math.IsNaN(v) && !math.IsInf(v, 0) {
			p := clampPercent(v)
			u.MigrationProgress = &p
		}
	}
	return StatsCommand{u}
}

// ParseNumber parses a decimal string leniently. Unparseable input yields NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return math.NaN()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.NaN()
	}
	return d.InexactFloat64()
}

// extractor reads one candidate value from an item. supply is the parsed
// total supply, or 0.
type extractor func(item *domain.ScannerItem, supply float64) float64

// Market-cap fields in priority order.
var marketCapCandidates = []extractor{
	func(i *domain.ScannerItem, _ float64) float64 { return ParseNumber(i.CurrentMcap) },
	func(i *domain.ScannerItem, _ float64) float64 { return ParseNumber(i.InitialMcap) },
	func(i *domain.ScannerItem, _ float64) float64 { return ParseNumber(i.PairMcapUSD) },
	func(i *domain.ScannerItem, _ float64) float64 { return ParseNumber(i.PairMcapUSDInitial) },
}

// Price sources in priority order: the quoted price, then the price implied
// by the market cap and supply.
var priceCandidates = []extractor{
	func(i *domain.ScannerItem, _ float64) float64 { return ParseNumber(i.Price) },
	func(i *domain.ScannerItem, supply float64) float64 {
		if supply <= 0 {
			return math.NaN()
		}
		return firstPositive(i, supply, marketCapCandidates) / supply
	},
}

// firstPositive returns the first candidate that is finite and > 0, else 0.
func firstPositive(item *domain.ScannerItem, supply float64, candidates []extractor) float64 {
	for _, c := range candidates {
		if v := c(item, supply); domain.IsFinitePositive(v) {
			return v
		}
	}
	return 0
}

// ResolveMarketCap applies the market-cap priority list to item.
func ResolveMarketCap(item *domain.ScannerItem) float64 {
	return firstPositive(item, 0, marketCapCandidates)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clampPercent(v float64) float64 {
	v = finiteOr(v, 0)
	return math.Min(math.Max(v, 0), 100)
}

// firstLink prefers the canonical spelling and falls back to the legacy one.
func firstLink(canonical, legacy *string) *string {
	if canonical != nil && *canonical != "" {
		return canonical
	}
	if legacy != nil && *legacy != "" {
		return legacy
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func negate(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := !*b
	return &v
}
