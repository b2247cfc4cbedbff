package domain

import (
	"fmt"
	"strings"
)

// ScannerFilter is the query of a scanner snapshot page.
type ScannerFilter struct {
	Page        int      `json:"page"`
	Chain       string   `json:"chain,omitempty"`
	RankBy      string   `json:"rankBy,omitempty"`
	OrderBy     string   `json:"orderBy,omitempty"` // "asc" or "desc"
	MinVol24H   *float64 `json:"minVol24H,omitempty"`
	MaxAgeHours *float64 `json:"maxAge,omitempty"`
	IsNotHP     bool     `json:"isNotHP,omitempty"` // exclude honeypots
}

// Normalize clamps the page to 1 and upper-cases the chain.
func (f ScannerFilter) Normalize() ScannerFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	f.Chain = strings.ToUpper(strings.TrimSpace(f.Chain))
	f.RankBy = strings.TrimSpace(f.RankBy)
	f.OrderBy = strings.ToLower(strings.TrimSpace(f.OrderBy))
	return f
}

// CacheKey renders every field except the page in a stable form.
func (f ScannerFilter) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chain=%s|rank=%s|order=%s|hp=%t", f.Chain, f.RankBy, f.OrderBy, f.IsNotHP)
	if f.MinVol24H != nil {
		fmt.Fprintf(&b, "|minvol=%g", *f.MinVol24H)
	}
	if f.MaxAgeHours != nil {
		fmt.Fprintf(&b, "|maxage=%g", *f.MaxAgeHours)
	}
	return b.String()
}

// ScannerResult is one snapshot page.
type ScannerResult struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Items      []ScannerItem `json:"pairs"`
}

// ScannerItem is a pair record as transmitted on the wire. Numeric-looking
// fields are strings and must be parsed defensively.
type ScannerItem struct {
	PairAddress   string `json:"pairAddress"`
	Token1Address string `json:"token1Address"`
	ChainID       int    `json:"chainId"`
	RouterAddress string `json:"routerAddress"`
	DexType       string `json:"dexType"`

	Token1Name                 string `json:"token1Name"`
	Token1Symbol               string `json:"token1Symbol"`
	Token1Decimals             int    `json:"token1Decimals"`
	Token1ImageURI             string `json:"token1ImageUri,omitempty"`
	Token1TotalSupplyFormatted string `json:"token1TotalSupplyFormatted"`
	Token0Symbol               string `json:"token0Symbol"`
	Token0Decimals             int    `json:"token0Decimals"`

	Age   string `json:"age"` // RFC3339
	Price string `json:"price"`

	CurrentMcap        string `json:"currentMcap"`
	InitialMcap        string `json:"initialMcap"`
	PairMcapUSD        string `json:"pairMcapUsd"`
	PairMcapUSDInitial string `json:"pairMcapUsdInitial"`
	FDV                string `json:"fdv"`

	Volume                   string `json:"volume"`
	Liquidity                string `json:"liquidity"`
	PercentChangeInLiquidity string `json:"percentChangeInLiquidity"`
	PercentChangeInMcap      string `json:"percentChangeInMcap"`

	Diff5M  string `json:"diff5M"`
	Diff1H  string `json:"diff1H"`
	Diff6H  string `json:"diff6H"`
	Diff24H string `json:"diff24H"`

	Buys   int `json:"buys"`
	Sells  int `json:"sells"`
	Txns   int `json:"txns"`
	Makers int `json:"makers"`

	Reserves0    string `json:"reserves0"`
	Reserves0USD string `json:"reserves0Usd"`
	Reserves1    string `json:"reserves1"`
	Reserves1USD string `json:"reserves1Usd"`

	BuyFee  *string `json:"buyFee"`
	SellFee *string `json:"sellFee"`

	ContractRenounced         bool    `json:"contractRenounced"`
	ContractVerified          bool    `json:"contractVerified"`
	IsMintAuthDisabled        bool    `json:"isMintAuthDisabled"`
	IsFreezeAuthDisabled      bool    `json:"isFreezeAuthDisabled"`
	HoneyPot                  *bool   `json:"honeyPot"`
	LiquidityLocked           bool    `json:"liquidityLocked"`
	LiquidityLockedRatio      string  `json:"liquidityLockedRatio"`
	LiquidityLockedAmount     string  `json:"liquidityLockedAmount"`
	BurnedSupply              string  `json:"burnedSupply"`
	DevHoldings               string  `json:"devHoldings"`
	SniperHoldings            string  `json:"sniperHoldings"`
	InsiderHoldings           string  `json:"insiderHoldings"`
	BundlerHoldings           string  `json:"bundlerHoldings"`
	Top10Holdings             string  `json:"top10Holdings"`
	MigrationProgress         string  `json:"migrationProgress"`
	CallCount                 int     `json:"callCount"`
	MigratedFromVirtualRouter *string `json:"migratedFromVirtualRouter"`

	// Socials; the legacy spellings are still emitted by older producers.
	WebLink      *string `json:"webLink,omitempty"`
	WebsiteLink  *string `json:"websiteLink,omitempty"`
	TwitterLink  *string `json:"twitterLink,omitempty"`
	Twitter      *string `json:"twitter,omitempty"`
	TelegramLink *string `json:"telegramLink,omitempty"`
	Telegram     *string `json:"telegram,omitempty"`
	DiscordLink  *string `json:"discordLink,omitempty"`
	Discord      *string `json:"discord,omitempty"`
}

// Key returns the pair key of the item.
func (i ScannerItem) Key() PairKey {
	return PairKey{PairAddress: i.PairAddress, TokenAddress: i.Token1Address, ChainID: i.ChainID}
}
