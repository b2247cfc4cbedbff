package generator

import (
	"strings"

	"token_scanner/internal/seed"
)

var symbolPrefixes = []string{
	"PEPE", "DOGE", "SHIB", "MOON", "FLOKI", "BONK", "WIF", "CHAD", "GIGA", "TURBO",
	"BASED", "MEME", "FROG", "APE", "BULL", "BEAR", "ZEN", "NEKO", "PIXEL", "ROCKET",
	"LAMBO", "HODL", "SAFE", "BABY", "KING", "QUEEN", "NINJA", "ROBO", "CYBER", "LUNA",
	"STAR", "NOVA", "ALPHA", "OMEGA", "DEGEN", "WAGMI", "GOLD", "ICE", "FIRE", "VOID",
}

var symbolSuffixes = []string{
	"", "AI", "INU", "CAT", "DOG", "X", "FI", "PAD", "SWAP", "BOT",
	"GPT", "DAO", "COIN", "VERSE", "CHAIN", "PUNK", "WIZ", "ZILLA", "MAX", "PRO",
	"LABS", "BOY", "GIRL", "FROG", "KONG", "MAXI",
}

// Vocabulary is a seeded permutation of the symbol space.
type Vocabulary struct {
	symbols []string
	names   []string
}

// NewVocabulary builds the full symbol space and shuffles it with a sub-seed of base.
func NewVocabulary(base uint32) *Vocabulary {
	seen := make(map[string]bool, len(symbolPrefixes)*len(symbolSuffixes))
	v := &Vocabulary{}
	for _, p := range symbolPrefixes {
		for _, s := range symbolSuffixes {
			sym := p + s
			if seen[sym] {
				continue
			}
			seen[sym] = true
			v.symbols = append(v.symbols, sym)
			v.names = append(v.names, displayName(p, s))
		}
	}

	r := seed.New(seed.Mix(base, seed.Hash("symbols")))
	r.Shuffle(len(v.symbols), func(i, j int) {
		v.symbols[i], v.symbols[j] = v.symbols[j], v.symbols[i]
		v.names[i], v.names[j] = v.names[j], v.names[i]
	})
	return v
}

// Len is the number of distinct symbols.
func (v *Vocabulary) Len() int {
	return len(v.symbols)
}

// At returns the symbol and display name at position i, wrapping around.
func (v *Vocabulary) At(i int) (symbol, name string) {
	i %= len(v.symbols)
	if i < 0 {
		i += len(v.symbols)
	}
	return v.symbols[i], v.names[i]
}

func displayName(prefix, suffix string) string {
	name := titleCase(prefix)
	if suffix != "" {
		name += " " + titleCase(suffix)
	}
	return name
}

func titleCase(s string) string {
	if len(s) <= 2 {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}
