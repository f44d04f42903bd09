package elo

import "strings"

const (
	DefaultK         = 40
	DefaultVeteranK  = 20
	DefaultVeteranAt = 20
)

// DefaultBaseK is the per-game starting K-factor.
var DefaultBaseK = map[string]int{
	"chess":      40,
	"pingpong":   40,
	"backgammon": 10,
}

// Policy picks a K-factor from the game and how many games a player has
// committed. Veterans drop to VeteranK unless the game's base is lower.
type Policy struct {
	Base      map[string]int
	Default   int
	VeteranK  int
	VeteranAt int
}

func DefaultPolicy() Policy {
	base := make(map[string]int, len(DefaultBaseK))
	for g, k := range DefaultBaseK {
		base[g] = k
	}
	return Policy{Base: base, Default: DefaultK, VeteranK: DefaultVeteranK, VeteranAt: DefaultVeteranAt}
}

// WithOverrides returns a copy whose base table includes overrides.
func (p Policy) WithOverrides(overrides map[string]int) Policy {
	base := make(map[string]int, len(p.Base)+len(overrides))
	for g, k := range p.Base {
		base[g] = k
	}
	for g, k := range overrides {
		if k > 0 {
			base[strings.ToLower(strings.TrimSpace(g))] = k
		}
	}
	p.Base = base
	return p
}

func (p Policy) BaseK(game string) int {
	if k, ok := p.Base[strings.ToLower(game)]; ok {
		return k
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultK
}

func (p Policy) KFactor(game string, gamesPlayed int) int {
	base := p.BaseK(game)
	if gamesPlayed >= p.veteranAt() {
		return min(p.veteranK(), base)
	}
	return base
}

func (p Policy) veteranAt() int {
	if p.VeteranAt > 0 {
		return p.VeteranAt
	}
	return DefaultVeteranAt
}

func (p Policy) veteranK() int {
	if p.VeteranK > 0 {
		return p.VeteranK
	}
	return DefaultVeteranK
}
