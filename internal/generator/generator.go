package generator

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/seed"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPageSize is the number of pairs per scanner page.
	DefaultPageSize = 50

	socialEpoch = 30 * 24 * time.Hour
	maxAgeHours = 720.0
)

// Chain weights used when no chain filter is given. Order matches domain.Chains.
var chainWeights = []float64{0.55, 0.25, 0.12, 0.08}

var dexTypes = map[string][]string{
	domain.ChainETH:  {"uniswap_v2", "uniswap_v3"},
	domain.ChainSOL:  {"raydium", "pumpfun", "meteora"},
	domain.ChainBASE: {"aerodrome", "uniswap_v3"},
	domain.ChainBSC:  {"pancakeswap_v2", "pancakeswap_v3"},
}

// Config tunes the generator.
type Config struct {
	PageSize int
	CacheTTL time.Duration // 0 disables the page cache
}

// Generator produces deterministic scanner pages from a base seed.
type Generator struct {
	seed     uint32
	pageSize int
	vocab    *Vocabulary
	profiles *ProfileRegistry
	pages    *cache.Cache
	now      func() time.Time
}

// New creates a generator. now supplies display timestamps and the social
// link epoch only; every value derives from base.
func New(base uint32, cfg Config, now func() time.Time) *Generator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if now == nil {
		now = time.Now
	}
	g := &Generator{
		seed:     base,
		pageSize: cfg.PageSize,
		vocab:    NewVocabulary(base),
		profiles: NewProfileRegistry(base),
		now:      now,
	}
	if cfg.CacheTTL > 0 {
		g.pages = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return g
}

// Profiles exposes the registry filled by Generate.
func (g *Generator) Profiles() *ProfileRegistry {
	return g.profiles
}

// TotalPages is the number of pages before the vocabulary wraps.
func (g *Generator) TotalPages() int {
	return (g.vocab.Len() + g.pageSize - 1) / g.pageSize
}

// candidate carries the raw numbers behind an item for filtering and sorting.
type candidate struct {
	item      domain.ScannerItem
	facts     Facts
	mcap      float64
	volume    float64
	liquidity float64
	ageHours  float64
}

// Generate returns one scanner page. The same filter, page and tickIndex always
// yield the same items in the same order.
func (g *Generator) Generate(f domain.ScannerFilter, tickIndex int) domain.ScannerResult {
	f = f.Normalize()
	if tickIndex < 0 {
		tickIndex = 0
	}
	if f.Chain != "" && !domain.IsKnownChain(f.Chain) {
		f.Chain = ""
	}

	cacheKey := f.CacheKey() + "|page=" + strconv.Itoa(f.Page) + "|tick=" + strconv.Itoa(tickIndex)
	if g.pages != nil {
		if v, ok := g.pages.Get(cacheKey); ok {
			res := v.(domain.ScannerResult)
			res.Items = slices.Clone(res.Items)
			return res
		}
	}

	requestSeed := seed.Mix(g.seed, seed.Hash(f.CacheKey()+"|page="+strconv.Itoa(f.Page)))
	start := (f.Page - 1) * g.pageSize

	picked := make([]candidate, 0, g.pageSize)
	seen := make(map[string]struct{}, g.pageSize)
	// A page only ever looks at its own window of the vocabulary, so filtered
	// pages may come up short but never repeat a symbol from another page.
	for n := 0; n < g.pageSize && n < g.vocab.Len(); n++ {
		c := g.build(requestSeed, n, start+n, f.Chain, tickIndex)
		if !accept(c, f) {
			continue
		}
		addr := strings.ToLower(c.item.PairAddress)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		picked = append(picked, c)
	}

	sortCandidates(picked, f.RankBy, f.OrderBy)

	res := domain.ScannerResult{
		Page:       f.Page,
		TotalPages: g.TotalPages(),
		Items:      make([]domain.ScannerItem, len(picked)),
	}
	for i, c := range picked {
		res.Items[i] = c.item
		g.profiles.Register(profileOf(c.item.Key(), c.item.Token1Symbol, c.facts))
	}

	if g.pages != nil {
		g.pages.Set(cacheKey, res, cache.DefaultExpiration)
		res.Items = slices.Clone(res.Items)
	}
	return res
}

func accept(c candidate, f domain.ScannerFilter) bool {
	if f.IsNotHP && c.facts.Honeypot {
		return false
	}
	if f.MinVol24H != nil && c.volume < *f.MinVol24H {
		return false
	}
	if f.MaxAgeHours != nil && c.ageHours > *f.MaxAgeHours {
		return false
	}
	return true
}

// sub returns an independent generator for one named facet of an item.
func sub(itemSeed uint32, facet string) *seed.Rand {
	return seed.New(seed.Mix(itemSeed, seed.Hash(facet)))
}

func (g *Generator) chainFor(symbolIndex int) string {
	r := seed.New(seed.MixAll(g.seed, seed.Hash("chain"), uint32(symbolIndex)))
	return domain.Chains[r.Pick(chainWeights)]
}

// counter models a monotone activity counter:
// base + tick*rate + floor(tick*fractionalRate) + noise.
func counter(itemSeed uint32, name string, tickIndex int) int {
	base := sub(itemSeed, name+".base").IntRange(5, 2000)
	rate := sub(itemSeed, name+".rate").IntRange(0, 6)
	frac := sub(itemSeed, name+".frac").Float64()
	noise := sub(itemSeed, name+".noise").IntRange(0, 9)
	return base + tickIndex*rate + int(math.Floor(float64(tickIndex)*frac)) + noise
}

func (g *Generator) build(requestSeed uint32, n, position int, chainFilter string, tickIndex int) candidate {
	symbolIndex := position % g.vocab.Len()
	if symbolIndex < 0 {
		symbolIndex += g.vocab.Len()
	}
	symbol, name := g.vocab.At(symbolIndex)

	chain := chainFilter
	if chain == "" {
		chain = g.chainFor(symbolIndex)
	}

	// Identity depends on chain and symbol only, so a pair keeps its address
	// across pages, filters and tick indices.
	idr := seed.New(seed.MixAll(g.seed, seed.Hash(chain), seed.Hash(symbol)))
	pairAddress := address(idr, chain)
	tokenAddress := address(idr, chain)
	routerAddress := address(idr, chain)
	key := domain.PairKey{PairAddress: pairAddress, TokenAddress: tokenAddress, ChainID: domain.ChainID(chain)}

	// Pair facts follow the identity; only presentation noise follows the request.
	facts := FactsFor(g.seed, key)
	itemSeed := seed.MixAll(g.seed, seed.Hash("item"), seed.Hash(key.String()))
	noiseSeed := seed.Mix(requestSeed, uint32(n))

	price, supply := facts.Price, facts.TotalSupply
	vr := sub(itemSeed, "value")
	mcap := price * supply
	initialMcap := mcap * vr.Range(0.2, 1.5)
	volume := mcap * vr.Range(0.01, 2)
	liquidity := mcap * vr.Range(0.02, 0.25)

	mcaps := [4]float64{
		mcap,
		initialMcap,
		mcap * vr.Range(0.95, 1.05),
		initialMcap * vr.Range(0.95, 1.05),
	}
	zr := sub(itemSeed, "mcap.zero")
	if zr.Chance(0.3) {
		order := []int{0, 1, 2, 3}
		zr.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order[:zr.IntRange(1, 3)] {
			mcaps[idx] = 0
		}
	}
	honeypot := facts.Honeypot

	ager := sub(itemSeed, "age")
	ageHours := ager.Range(0.1, maxAgeHours)
	createdAt := g.now().Add(-time.Duration(ageHours * float64(time.Hour))).UTC()

	buys := counter(itemSeed, "buys", tickIndex)
	sells := counter(itemSeed, "sells", tickIndex)

	dr := sub(noiseSeed, "diff")
	hr := sub(itemSeed, "holders")
	dexes := dexTypes[chain]
	baseUSD := baseAssetPrices[chain]

	item := domain.ScannerItem{
		PairAddress:   pairAddress,
		Token1Address: tokenAddress,
		ChainID:       key.ChainID,
		RouterAddress: routerAddress,
		DexType:       dexes[sub(itemSeed, "dex").Intn(len(dexes))],

		Token1Name:                 name,
		Token1Symbol:               symbol,
		Token1Decimals:             decimalsFor(chain),
		Token1ImageURI:             "/icons/" + strings.ToLower(tokenAddress) + ".png",
		Token1TotalSupplyFormatted: formatAmount(supply, 0),
		Token0Symbol:               baseAssetSymbols[chain],
		Token0Decimals:             decimalsFor(chain),

		Age:   createdAt.Format(time.RFC3339),
		Price: formatPrice(price),

		CurrentMcap:        formatAmount(mcaps[0], 2),
		InitialMcap:        formatAmount(mcaps[1], 2),
		PairMcapUSD:        formatAmount(mcaps[2], 2),
		PairMcapUSDInitial: formatAmount(mcaps[3], 2),
		FDV:                formatAmount(price*supply, 2),

		Volume:                   formatAmount(volume, 2),
		Liquidity:                formatAmount(liquidity, 2),
		PercentChangeInLiquidity: formatAmount(dr.Range(-20, 20), 2),
		PercentChangeInMcap:      formatAmount(dr.Range(-40, 60), 2),

		Diff5M:  formatAmount(dr.Range(-15, 15), 2),
		Diff1H:  formatAmount(dr.Range(-30, 30), 2),
		Diff6H:  formatAmount(dr.Range(-50, 50), 2),
		Diff24H: formatAmount(dr.Range(-80, 200), 2),

		Buys:   buys,
		Sells:  sells,
		Txns:   buys + sells,
		Makers: 1 + sub(itemSeed, "makers").Intn(buys+sells),

		Reserves0:    formatAmount(liquidity/2/baseUSD, 6),
		Reserves0USD: formatAmount(liquidity/2, 2),
		Reserves1:    formatAmount(liquidity/2/price, 2),
		Reserves1USD: formatAmount(liquidity/2, 2),

		ContractRenounced:     facts.Renounced,
		ContractVerified:      facts.Verified,
		IsMintAuthDisabled:    facts.MintDisabled,
		IsFreezeAuthDisabled:  facts.FreezeDisabled,
		HoneyPot:              &honeypot,
		LiquidityLocked:       facts.Locked,
		LiquidityLockedRatio:  formatAmount(facts.LockedRatio, 2),
		LiquidityLockedAmount: formatAmount(liquidity*facts.LockedRatio/100, 2),
		BurnedSupply:          formatAmount(facts.BurnedSupply, 2),
		DevHoldings:           formatAmount(hr.Range(0, 15), 2),
		SniperHoldings:        formatAmount(hr.Range(0, 10), 2),
		InsiderHoldings:       formatAmount(hr.Range(0, 10), 2),
		BundlerHoldings:       formatAmount(hr.Range(0, 8), 2),
		Top10Holdings:         formatAmount(hr.Range(5, 60), 2),
		MigrationProgress:     formatAmount(facts.MigrationAt(tickIndex), 2),
		CallCount:             sub(noiseSeed, "calls").Intn(40),
	}

	if chain != domain.ChainSOL {
		fr := sub(itemSeed, "fees")
		buyFee := formatAmount(fr.Range(0, 10), 2)
		sellFee := formatAmount(fr.Range(0, 10), 2)
		item.BuyFee, item.SellFee = &buyFee, &sellFee
	}

	g.applySocials(&item, symbol)

	return candidate{
		item:      item,
		facts:     facts,
		mcap:      mcap,
		volume:    volume,
		liquidity: liquidity,
		ageHours:  ageHours,
	}
}

// applySocials derives links from a coarse time epoch so they change rarely.
// Half the items use the legacy field spellings.
func (g *Generator) applySocials(item *domain.ScannerItem, symbol string) {
	epoch := uint32(g.now().Unix() / int64(socialEpoch/time.Second))
	r := seed.New(seed.MixAll(g.seed,
		seed.Hash(strings.ToLower(item.PairAddress)),
		seed.Hash(strings.ToLower(item.Token1Address)),
		epoch))
	handle := strings.ToLower(symbol)
	legacy := r.Chance(0.5)

	if r.Chance(0.6) {
		link := "https://" + handle + ".io"
		if legacy {
			item.WebsiteLink = &link
		} else {
			item.WebLink = &link
		}
	}
	if r.Chance(0.7) {
		link := "https://x.com/" + handle
		if legacy {
			item.Twitter = &link
		} else {
			item.TwitterLink = &link
		}
	}
	if r.Chance(0.5) {
		link := "https://t.me/" + handle
		if legacy {
			item.Telegram = &link
		} else {
			item.TelegramLink = &link
		}
	}
	if r.Chance(0.2) {
		link := "https://discord.gg/" + handle
		if legacy {
			item.Discord = &link
		} else {
			item.DiscordLink = &link
		}
	}
}

func lockedRatio(locked bool, r *seed.Rand) float64 {
	if !locked {
		return 0
	}
	return r.Range(50, 100)
}

func decimalsFor(chain string) int {
	if chain == domain.ChainSOL {
		return 9
	}
	return 18
}

func formatAmount(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).Round(12).String()
}

// String is used in log lines.
func (g *Generator) String() string {
	return fmt.Sprintf("generator(symbols=%d, pageSize=%d)", g.vocab.Len(), g.pageSize)
}
