package stream

import (
	"math"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/generator"
	"token_scanner/internal/seed"
	"token_scanner/internal/wire"

	"github.com/shopspring/decimal"
)

const (
	maxDrift     = 0.03
	outlierRatio = 0.5
)

func tickRand(base uint32, key domain.PairKey, n int) *seed.Rand {
	return seed.New(seed.MixAll(base, seed.Hash(key.String()), uint32(n)))
}

// NextPrice moves prev by the bounded drift of tick n.
func NextPrice(base uint32, key domain.PairKey, n int, prev float64) float64 {
	drift := tickRand(base, key, n).Range(-maxDrift, maxDrift)
	next := prev * (1 + drift)
	if !domain.IsFinitePositive(next) {
		return prev
	}
	return next
}

// PriceAt replays the price path of key from its reference price up to tick n.
func PriceAt(base uint32, p generator.Profile, n int) float64 {
	price := p.Price
	for i := 1; i <= n; i++ {
		price = NextPrice(base, p.Key, i, price)
	}
	return price
}

// BuildTick produces tick n for a pair trading at price. The batch always holds
// one canonical swap and one outlier at about half the reference price.
// token0 is revealed from the second tick on.
func BuildTick(base uint32, p generator.Profile, n int, price float64, now time.Time) wire.Tick {
	// Skip the drift draw so amounts are independent of the price path.
	r := tickRand(base, p.Key, n)
	r.Float64()

	amount := r.LogRange(0, 4)
	tokenIn := p.Key.TokenAddress
	if r.Chance(0.55) {
		tokenIn = p.Token0Address
	}
	canonical := wire.SwapRecord{
		Price:     formatDecimal(price),
		Amount:    formatDecimal(amount),
		TokenIn:   tokenIn,
		Timestamp: now.UnixMilli(),
	}
	if n >= 2 {
		canonical.Token0Address = p.Token0Address
	}

	outlier := wire.SwapRecord{
		Price:     formatDecimal(price * outlierRatio * r.Range(0.9, 1.1)),
		Amount:    formatDecimal(r.LogRange(2, 5)),
		TokenIn:   p.Token0Address,
		IsOutlier: true,
		Timestamp: now.UnixMilli() - 1,
	}

	return wire.Tick{
		Pair:  p.Key,
		Swaps: []wire.SwapRecord{canonical, outlier},
	}
}

// BuildStats produces the stats event of a pair at tick n. Flags are the pair's
// identity facts, the same ones its scanner rows carry, so they never flap.
// Migration progress follows the tick timeline and only grows with n.
func BuildStats(base uint32, key domain.PairKey, n int) wire.PairStats {
	f := generator.FactsFor(base, key)
	verified := f.Verified
	honeypot := f.Honeypot
	mintDisabled := f.MintDisabled
	freezeDisabled := f.FreezeDisabled
	renounced := f.Renounced
	locked := f.Locked
	burned := f.Burned()
	mp := decimal.NewFromFloat(f.MigrationAt(n)).StringFixed(2)

	return wire.PairStats{
		PairAddress:          key.PairAddress,
		ChainID:              key.ChainID,
		ContractVerified:     &verified,
		HoneyPot:             &honeypot,
		IsMintAuthDisabled:   &mintDisabled,
		IsFreezeAuthDisabled: &freezeDisabled,
		ContractRenounced:    &renounced,
		LiquidityLocked:      &locked,
		TokenBurned:          &burned,
		MigrationProgress:    &mp,
	}
}

func formatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).Round(12).String()
}
