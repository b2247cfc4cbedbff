package domain

import (
	"math"
	"time"
)

// Liquidity is the pool liquidity in USD and its change relative to the previous value.
type Liquidity struct {
	Current       float64 `json:"current"`
	ChangePercent float64 `json:"changePercent"`
}

// PriceChange holds percentage price changes over fixed windows.
type PriceChange struct {
	M5  float64 `json:"5m"`
	H1  float64 `json:"1h"`
	H6  float64 `json:"6h"`
	H24 float64 `json:"24h"`
}

// Transactions counts swaps classified as buys or sells.
type Transactions struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

// Socials are the optional project links of a token.
type Socials struct {
	Website  string `json:"website,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Discord  string `json:"discord,omitempty"`
}

// Audit holds contract audit facts.
type Audit struct {
	Mintable         bool    `json:"mintable"`
	Freezable        bool    `json:"freezable"`
	Honeypot         bool    `json:"honeypot"`
	ContractVerified bool    `json:"contractVerified"`
	Socials          Socials `json:"socials"`
}

// Security holds ownership and liquidity-lock facts.
type Security struct {
	Renounced bool `json:"renounced"`
	Locked    bool `json:"locked"`
	Burned    bool `json:"burned"`
}

// Token is the reconciled live state of one pair.
type Token struct {
	// Identity
	ID           string `json:"id"`
	PairAddress  string `json:"pairAddress"`
	TokenAddress string `json:"tokenAddress"`
	Chain        string `json:"chain"`
	ChainID      int    `json:"chainId"`
	Exchange     string `json:"exchange"`

	// Descriptive
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"createdAt"`

	// Live numeric
	PriceUSD     float64      `json:"priceUsd"`
	MarketCap    float64      `json:"marketCap"`
	VolumeUSD    float64      `json:"volumeUsd"`
	Liquidity    Liquidity    `json:"liquidity"`
	PriceChange  PriceChange  `json:"priceChangePcs"`
	Transactions Transactions `json:"transactions"`

	Audit             Audit    `json:"audit"`
	Security          Security `json:"security"`
	MigrationProgress float64  `json:"migrationProgress"`

	History History `json:"history"`

	LastSnapshotAt time.Time `json:"lastSnapshotAt"`
	LastTickAt     time.Time `json:"lastTickAt"`
	LastStatsAt    time.Time `json:"lastStatsAt"`
}

// Key returns the pair key of the token.
func (t *Token) Key() PairKey {
	return PairKey{PairAddress: t.PairAddress, TokenAddress: t.TokenAddress, ChainID: t.ChainID}
}

// Clone returns a deep copy; the history slices are not shared.
func (t *Token) Clone() *Token {
	c := *t
	c.History = t.History.Clone()
	return &c
}

// Meta is per-pair bookkeeping that is never rendered.
type Meta struct {
	TotalSupply   float64 `json:"totalSupply"`
	Token0Address string  `json:"token0Address"`
}

// IsFinitePositive reports whether v is a usable price or amount.
func IsFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// NonNegative returns v when it is finite and >= 0, otherwise fallback.
func NonNegative(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fallback
	}
	return v
}
