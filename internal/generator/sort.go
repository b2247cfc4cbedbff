package generator

import "sort"

// sortKeys is the allow-list of server-side sort keys.
var sortKeys = map[string]func(c candidate) float64{
	"volume":    func(c candidate) float64 { return c.volume },
	"price":     func(c candidate) float64 { return c.price },
	"mcap":      func(c candidate) float64 { return c.mcap },
	"age":       func(c candidate) float64 { return c.ageHours },
	"liquidity": func(c candidate) float64 { return c.liquidity },
	"buys":      func(c candidate) float64 { return float64(c.item.Buys) },
	"sells":     func(c candidate) float64 { return float64(c.item.Sells) },
	"txns":      func(c candidate) float64 { return float64(c.item.Txns) },
}

// IsSortKey reports whether key is accepted for server-side sorting.
func IsSortKey(key string) bool {
	_, ok := sortKeys[key]
	return ok
}

// sortCandidates reorders in place. Unknown keys keep the natural order;
// any direction other than "asc" sorts descending.
func sortCandidates(cs []candidate, key, direction string) {
	value, ok := sortKeys[key]
	if !ok {
		return
	}
	asc := direction == "asc"
	sort.SliceStable(cs, func(i, j int) bool {
		if asc {
			return value(cs[i]) < value(cs[j])
		}
		return value(cs[i]) > value(cs[j])
	})
}
