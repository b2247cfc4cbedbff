package domain

import (
	"strconv"
	"strings"
)

// Chain identifiers understood by the scanner.
const (
	ChainETH  = "ETH"
	ChainSOL  = "SOL"
	ChainBASE = "BASE"
	ChainBSC  = "BSC"
)

// Chains lists every supported chain in a stable order.
var Chains = []string{ChainETH, ChainSOL, ChainBASE, ChainBSC}

var chainIDs = map[string]int{
	ChainETH:  1,
	ChainSOL:  900,
	ChainBASE: 8453,
	ChainBSC:  56,
}

// ChainID returns the numeric id for a chain name, or 0 when unknown.
func ChainID(chain string) int {
	return chainIDs[strings.ToUpper(chain)]
}

// ChainName maps a numeric chain id back to its name. Unknown ids yield "".
func ChainName(id int) string {
	for name, cid := range chainIDs {
		if cid == id {
			return name
		}
	}
	return ""
}

// IsKnownChain reports whether chain is one of Chains (case-insensitive).
func IsKnownChain(chain string) bool {
	_, ok := chainIDs[strings.ToUpper(chain)]
	return ok
}

// PairKey identifies a pair on a chain. Addresses compare case-insensitively;
// use Canonical before using a key as a map key.
type PairKey struct {
	PairAddress  string `json:"pair"`
	TokenAddress string `json:"token"`
	ChainID      int    `json:"chain"`
}

// Canonical returns the key with both addresses lower-cased.
func (k PairKey) Canonical() PairKey {
	return PairKey{
		PairAddress:  strings.ToLower(k.PairAddress),
		TokenAddress: strings.ToLower(k.TokenAddress),
		ChainID:      k.ChainID,
	}
}

// ID is the canonical token id derived from the pair address.
func (k PairKey) ID() string {
	return TokenID(k.PairAddress)
}

// Valid reports whether the identity fields required to route an update are present.
func (k PairKey) Valid() bool {
	return k.PairAddress != "" && k.TokenAddress != ""
}

// String renders the canonical key, used as a hash salt.
func (k PairKey) String() string {
	c := k.Canonical()
	return c.PairAddress + ":" + c.TokenAddress + ":" + strconv.Itoa(c.ChainID)
}

// TokenID derives the canonical token id for a pair address.
func TokenID(pairAddress string) string {
	return strings.ToLower(pairAddress)
}

// SameAddress compares two addresses ignoring case. Empty never matches.
func SameAddress(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}
