package generator

import (
	"time"

	"token_scanner/internal/domain"

	"github.com/patrickmn/go-cache"
)

// Profile is what the stream scheduler needs to know about a pair to emit ticks for it.
type Profile struct {
	Key           domain.PairKey
	Symbol        string
	Price         float64
	TotalSupply   float64
	Token0Address string
}

// ProfileRegistry remembers the profile of every pair the generator has produced.
type ProfileRegistry struct {
	base  uint32
	cache *cache.Cache
}

// NewProfileRegistry creates a registry. Profiles never expire; they are
// rebuilt identically whenever the generator reproduces the pair.
func NewProfileRegistry(base uint32) *ProfileRegistry {
	return &ProfileRegistry{
		base:  base,
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// Register stores p under its canonical key.
func (r *ProfileRegistry) Register(p Profile) {
	r.cache.Set(p.Key.String(), p, cache.NoExpiration)
}

// Lookup returns the registered profile for key, if any.
func (r *ProfileRegistry) Lookup(key domain.PairKey) (Profile, bool) {
	v, ok := r.cache.Get(key.String())
	if !ok {
		return Profile{}, false
	}
	return v.(Profile), true
}

// Resolve returns the registered profile or, for pairs the generator never
// produced (e.g. a client subscribing from a stale page), one built from the
// same identity facts the generator would have used.
func (r *ProfileRegistry) Resolve(key domain.PairKey) Profile {
	if p, ok := r.Lookup(key); ok {
		return p
	}
	return profileOf(key.Canonical(), "", FactsFor(r.base, key))
}

func profileOf(key domain.PairKey, symbol string, f Facts) Profile {
	return Profile{
		Key:           key,
		Symbol:        symbol,
		Price:         f.Price,
		TotalSupply:   f.TotalSupply,
		Token0Address: baseAssetAddress(domain.ChainName(key.ChainID)),
	}
}

// Len returns the number of registered profiles.
func (r *ProfileRegistry) Len() int {
	return r.cache.ItemCount()
}
