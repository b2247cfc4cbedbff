package domain

import (
	"slices"
	"time"
)

// HistoryWindow is the default age bound of a token's rolling history.
const HistoryWindow = time.Hour

// Sample is one point appended to a History.
type Sample struct {
	Timestamp time.Time
	Price     float64
	MarketCap float64
	Volume    float64
	Buys      int64
	Sells     int64
	Liquidity float64
}

// History is a time-ascending rolling window stored as parallel slices.
// Every slice always has the same length.
type History struct {
	Timestamps []int64   `json:"ts"` // unix millis
	Prices     []float64 `json:"price"`
	MarketCaps []float64 `json:"mcap"`
	Volumes    []float64 `json:"volume"`
	Buys       []int64   `json:"buys"`
	Sells      []int64   `json:"sells"`
	Liquidity  []float64 `json:"liquidity"`
}

// Len returns the number of samples.
func (h History) Len() int {
	return len(h.Timestamps)
}

// Clone copies every slice.
func (h History) Clone() History {
	return History{
		Timestamps: slices.Clone(h.Timestamps),
		Prices:     slices.Clone(h.Prices),
		MarketCaps: slices.Clone(h.MarketCaps),
		Volumes:    slices.Clone(h.Volumes),
		Buys:       slices.Clone(h.Buys),
		Sells:      slices.Clone(h.Sells),
		Liquidity:  slices.Clone(h.Liquidity),
	}
}

// Append returns a new History with s added and every sample older than
// now-window removed from the front. The receiver is left untouched.
// A sample older than the last retained one is dropped to keep the window ascending.
func (h History) Append(s Sample, now time.Time, window time.Duration) History {
	ts := s.Timestamp.UnixMilli()
	out := h.Clone()
	if n := out.Len(); n == 0 || ts >= out.Timestamps[n-1] {
		out.Timestamps = append(out.Timestamps, ts)
		out.Prices = append(out.Prices, s.Price)
		out.MarketCaps = append(out.MarketCaps, s.MarketCap)
		out.Volumes = append(out.Volumes, s.Volume)
		out.Buys = append(out.Buys, s.Buys)
		out.Sells = append(out.Sells, s.Sells)
		out.Liquidity = append(out.Liquidity, s.Liquidity)
	}
	return out.Evict(now.Add(-window))
}

// Evict drops leading samples strictly older than cutoff.
func (h History) Evict(cutoff time.Time) History {
	limit := cutoff.UnixMilli()
	drop := 0
	for drop < len(h.Timestamps) && h.Timestamps[drop] < limit {
		drop++
	}
	if drop == 0 {
		return h
	}
	return History{
		Timestamps: h.Timestamps[drop:],
		Prices:     h.Prices[drop:],
		MarketCaps: h.MarketCaps[drop:],
		Volumes:    h.Volumes[drop:],
		Buys:       h.Buys[drop:],
		Sells:      h.Sells[drop:],
		Liquidity:  h.Liquidity[drop:],
	}
}

// Aligned reports whether every parallel slice has the same length.
func (h History) Aligned() bool {
	n := len(h.Timestamps)
	return len(h.Prices) == n && len(h.MarketCaps) == n && len(h.Volumes) == n &&
		len(h.Buys) == n && len(h.Sells) == n && len(h.Liquidity) == n
}
