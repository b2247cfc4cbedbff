package generator

import (
	"math"

	"token_scanner/internal/domain"
	"token_scanner/internal/seed"
)

// Facts are the values of a pair that depend on its identity only. Pages,
// filters, profiles and stats events all read them from here, so every view
// of one pair agrees on its price and audit flags.
type Facts struct {
	Price       float64
	TotalSupply float64

	Honeypot       bool
	Verified       bool
	Renounced      bool
	MintDisabled   bool
	FreezeDisabled bool
	Locked         bool
	LockedRatio    float64
	BurnedSupply   float64

	// Migration progress is MigrationStart + k*MigrationRate, capped at 100.
	// Pairs off SOL are always fully migrated.
	MigrationStart float64
	MigrationRate  float64
}

// FactsFor derives the identity facts of key under base.
func FactsFor(base uint32, key domain.PairKey) Facts {
	id := seed.Hash(key.String())

	vr := seed.New(seed.MixAll(base, seed.Hash("value"), id))
	f := Facts{
		Price:       vr.LogRange(-8, 1),
		TotalSupply: vr.LogRange(7, 12),
	}

	ar := seed.New(seed.MixAll(base, seed.Hash("audit"), id))
	f.Honeypot = ar.Chance(0.05)
	f.Verified = ar.Chance(0.6)
	f.Renounced = ar.Chance(0.4)
	f.MintDisabled = ar.Chance(0.7)
	f.FreezeDisabled = ar.Chance(0.7)
	f.Locked = ar.Chance(0.5)
	f.LockedRatio = lockedRatio(f.Locked, ar)
	burned := ar.Range(0.5, 100)
	if ar.Chance(0.3) {
		f.BurnedSupply = burned
	}

	f.MigrationStart, f.MigrationRate = 100, 0
	if key.ChainID == domain.ChainID(domain.ChainSOL) {
		mr := seed.New(seed.MixAll(base, seed.Hash("migration"), id))
		f.MigrationStart = mr.Range(0, 80)
		f.MigrationRate = mr.Range(0.1, 2)
	}
	return f
}

// Burned reports whether any supply was burned.
func (f Facts) Burned() bool {
	return f.BurnedSupply > 0
}

// MigrationAt returns the migration progress after k steps. It never decreases.
func (f Facts) MigrationAt(k int) float64 {
	if k < 0 {
		k = 0
	}
	return math.Min(100, f.MigrationStart+float64(k)*f.MigrationRate)
}
