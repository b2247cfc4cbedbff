package wire

import (
	"errors"
	"math"
	"testing"
	"time"

	"token_scanner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validItem() domain.ScannerItem {
	return domain.ScannerItem{
		PairAddress:                "0xPAIR1",
		Token1Address:              "0xTOKEN1",
		ChainID:                    1,
		DexType:                    "uniswap_v2",
		Token1Name:                 "Pepe Inu",
		Token1Symbol:               "PEPEINU",
		Token1TotalSupplyFormatted: "1000000",
		Age:                        "2026-03-01T10:00:00Z",
		Price:                      "0.5",
		CurrentMcap:                "500000",
		Volume:                     "1234.5",
		Liquidity:                  "9000",
		Buys:                       10,
		Sells:                      4,
		IsMintAuthDisabled:         true,
		HoneyPot:                   ptr(false),
		BurnedSupply:               "12.5",
		MigrationProgress:          "42",
	}
}

func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	b, err := Encode(event, data)
	require.NoError(t, err)
	env, err := Decode(b)
	require.NoError(t, err)
	return env
}

func TestResolveMarketCap(t *testing.T) {
	tests := []struct {
		name       string
		candidates [4]string
		want       float64
	}{
		{"first zero falls through", [4]string{"0", "5", "3", "2"}, 5},
		{"first positive wins", [4]string{"100", "5", "3", "2"}, 100},
		{"all zero", [4]string{"0", "0", "0", "0"}, 0},
		{"garbage skipped", [4]string{"abc", "", "-4", "7"}, 7},
		{"non-finite skipped", [4]string{"NaN", "Infinity", "3", "2"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := domain.ScannerItem{
				CurrentMcap:        tt.candidates[0],
				InitialMcap:        tt.candidates[1],
				PairMcapUSD:        tt.candidates[2],
				PairMcapUSDInitial: tt.candidates[3],
			}
			assert.Equal(t, tt.want, ResolveMarketCap(&item))
		})
	}
}

func TestMapItem(t *testing.T) {
	t.Run("maps fields", func(t *testing.T) {
		item := validItem()
		item.WebsiteLink = ptr("https://legacy.io")
		item.TwitterLink = ptr("https://x.com/canonical")
		item.Twitter = ptr("https://x.com/legacy")

		entry, err := MapItem(&item)
		require.NoError(t, err)

		tok := entry.Token
		assert.Equal(t, "0xpair1", tok.ID)
		assert.Equal(t, "0xPAIR1", tok.PairAddress)
		assert.Equal(t, domain.ChainETH, tok.Chain)
		assert.Equal(t, 0.5, tok.PriceUSD)
		assert.Equal(t, 500000.0, tok.MarketCap)
		assert.Equal(t, 1234.5, tok.VolumeUSD)
		assert.Equal(t, int64(10), tok.Transactions.Buys)
		assert.False(t, tok.Audit.Mintable)
		assert.True(t, tok.Audit.Freezable)
		assert.True(t, tok.Security.Burned)
		assert.Equal(t, 42.0, tok.MigrationProgress)
		assert.Equal(t, "https://legacy.io", tok.Audit.Socials.Website)
		assert.Equal(t, "https://x.com/canonical", tok.Audit.Socials.Twitter)
		assert.Equal(t, 1000000.0, entry.TotalSupply)
		assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), tok.CreatedAt.UTC())
	})

	t.Run("missing name is a validation error", func(t *testing.T) {
		item := validItem()
		item.Token1Name = "  "
		_, err := MapItem(&item)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "0xPAIR1", verr.PairAddress)
		assert.ErrorIs(t, err, domain.ErrMissingName)
	})

	t.Run("missing symbol is a validation error", func(t *testing.T) {
		item := validItem()
		item.Token1Symbol = ""
		_, err := MapItem(&item)
		assert.ErrorIs(t, err, domain.ErrMissingSymbol)
	})

	t.Run("other fields degrade", func(t *testing.T) {
		item := validItem()
		item.Price = "n/a"
		item.Volume = "-5"
		item.Liquidity = ""
		item.Age = "yesterday"
		item.Token1TotalSupplyFormatted = "oops"

		entry, err := MapItem(&item)
		require.NoError(t, err)
		assert.Equal(t, 0.0, entry.Token.PriceUSD)
		assert.Equal(t, 0.0, entry.Token.VolumeUSD)
		assert.Equal(t, 0.0, entry.Token.Liquidity.Current)
		assert.True(t, entry.Token.CreatedAt.IsZero())
		assert.Equal(t, 0.0, entry.TotalSupply)
	})

	t.Run("price implied by market cap", func(t *testing.T) {
		item := validItem()
		item.Price = "0"
		entry, err := MapItem(&item)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, entry.Token.PriceUSD, 1e-12)
	})
}

func TestMapper_Snapshot(t *testing.T) {
	m := NewMapper(nil)
	bad := validItem()
	bad.PairAddress = "0xBAD"
	bad.Token1Symbol = ""
	anonymous := validItem()
	anonymous.PairAddress = ""

	env := envelope(t, EventScannerPairs, ScannerPairs{
		ScannerResult: domain.ScannerResult{
			Page:  2,
			Items: []domain.ScannerItem{validItem(), bad, anonymous},
		},
	})

	cmd, err := m.Map(env)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingSymbol)

	snap, ok := cmd.(SnapshotCommand)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Page)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "0xpair1", snap.Entries[0].Token.ID)
}

func TestMapper_Tick(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMapper(func() time.Time { return now })

	env := envelope(t, EventTick, Tick{
		Pair: domain.PairKey{PairAddress: "0xPAIR1", TokenAddress: "0xTOKEN1", ChainID: 1},
		Swaps: []SwapRecord{
			{Price: "1.5", Amount: "-10", TokenIn: "0xWETH", Token0Address: "0xWETH", Timestamp: now.UnixMilli()},
			{Price: "bogus", Amount: "3", TokenIn: "0xTOKEN1", IsOutlier: true},
		},
	})

	cmd, err := m.Map(env)
	require.NoError(t, err)
	tick, ok := cmd.(TickCommand)
	require.True(t, ok)
	require.Len(t, tick.Swaps, 2)
	assert.Equal(t, 1.5, tick.Swaps[0].Price)
	assert.Equal(t, -10.0, tick.Swaps[0].Amount)
	assert.True(t, math.IsNaN(tick.Swaps[1].Price))
	assert.True(t, tick.Swaps[1].IsOutlier)
	assert.Equal(t, now, tick.Swaps[1].Timestamp)
}

func TestMapper_Stats(t *testing.T) {
	m := NewMapper(nil)
	env := envelope(t, EventPairStats, PairStats{
		PairAddress:        "0xPAIR1",
		IsMintAuthDisabled: ptr(true),
		HoneyPot:           ptr(false),
		MigrationProgress:  ptr("250"),
		Telegram:           ptr("https://t.me/legacy"),
	})

	cmd, err := m.Map(env)
	require.NoError(t, err)
	stats, ok := cmd.(StatsCommand)
	require.True(t, ok)

	require.NotNil(t, stats.Mintable)
	assert.False(t, *stats.Mintable)
	assert.Nil(t, stats.Freezable)
	assert.Nil(t, stats.ContractVerified)
	require.NotNil(t, stats.MigrationProgress)
	assert.Equal(t, 100.0, *stats.MigrationProgress)
	require.NotNil(t, stats.Telegram)
	assert.Equal(t, "https://t.me/legacy", *stats.Telegram)
}

func TestMapper_DropsMalformed(t *testing.T) {
	m := NewMapper(nil)
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown event", Envelope{Event: "hello", Data: []byte(`{}`)}},
		{"client event", Envelope{Event: EventSubscribePair, Data: []byte(`{}`)}},
		{"tick without data", Envelope{Event: EventTick}},
		{"tick not an object", Envelope{Event: EventTick, Data: []byte(`[1,2]`)}},
		{"tick without token", Envelope{Event: EventTick, Data: []byte(`{"pair":{"pair":"0x1"},"swaps":[]}`)}},
		{"stats without pair", Envelope{Event: EventPairStats, Data: []byte(`{"honeyPot":true}`)}},
		{"snapshot wrong type", Envelope{Event: EventScannerPairs, Data: []byte(`{"pairs":"nope"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := m.Map(tt.env)
			assert.Nil(t, cmd)
			assert.NoError(t, err)
		})
	}
}

func TestDecode(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, domain.ErrMalformedEnvelope))

	_, err = Decode([]byte(`{"data":{}}`))
	assert.True(t, errors.Is(err, domain.ErrMalformedEnvelope))

	env, err := Decode([]byte(`{"event":"tick","data":{"pair":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventTick, env.Event)
}
