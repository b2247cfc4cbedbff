package generator

import (
	"strings"

	"token_scanner/internal/domain"
	"token_scanner/internal/seed"
)

const (
	hexDigits      = "0123456789abcdef"
	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// Wrapped native assets that every generated pair trades against.
var baseAssets = map[string]string{
	domain.ChainETH:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	domain.ChainSOL:  "So11111111111111111111111111111111111111112",
	domain.ChainBASE: "0x4200000000000000000000000000000000000006",
	domain.ChainBSC:  "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
}

// Approximate USD price of each base asset, used to size reserves.
var baseAssetPrices = map[string]float64{
	domain.ChainETH:  3200,
	domain.ChainSOL:  150,
	domain.ChainBASE: 3200,
	domain.ChainBSC:  600,
}

var baseAssetSymbols = map[string]string{
	domain.ChainETH:  "WETH",
	domain.ChainSOL:  "SOL",
	domain.ChainBASE: "WETH",
	domain.ChainBSC:  "WBNB",
}

func baseAssetAddress(chain string) string {
	if addr, ok := baseAssets[chain]; ok {
		return addr
	}
	return baseAssets[domain.ChainETH]
}

// address draws a chain-appropriate address. EVM addresses use mixed case so
// consumers must compare them case-insensitively.
func address(r *seed.Rand, chain string) string {
	if chain == domain.ChainSOL {
		var b strings.Builder
		b.Grow(44)
		for i := 0; i < 44; i++ {
			b.WriteByte(base58Alphabet[r.Intn(len(base58Alphabet))])
		}
		return b.String()
	}

	var b strings.Builder
	b.Grow(42)
	b.WriteString("0x")
	for i := 0; i < 40; i++ {
		c := hexDigits[r.Intn(len(hexDigits))]
		if c >= 'a' && r.Chance(0.5) {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
