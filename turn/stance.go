package turn

import (
	"sort"

	"github.com/wfunc/liargame/game"
)

// Stance is the position a bot takes in the discussion.
type Stance string

const (
	StanceAgree    Stance = "AGREE"
	StanceDisagree Stance = "DISAGREE"
	StanceDefense  Stance = "DEFENSE"
)

// FallbackTarget is used when nobody else can be named.
const FallbackTarget = "you"

// stanceFor picks the stance and accusation target of speaker.
func (a *Advancer) stanceFor(round *game.RoundState, speaker, actingHuman string) (Stance, string) {
	hint, hasHint := round.HumanSuspectHint()
	if hasHint {
		if _, known := round.Participant(hint); !known {
			hasHint = false
		}
	}
	if !hasHint {
		hint = ""
	}
	pool := a.ambiguousPool(round)
	framed := framedTarget(pool, hint)
	order := round.TurnOrder()

	if framed != "" && speaker == framed {
		return StanceDefense, redirect(speaker, hint, pool, order)
	}
	if hasHint && speaker == hint {
		if framed != "" && framed != speaker {
			return StanceDefense, framed
		}
		return StanceDefense, redirect(speaker, "", pool, order)
	}
	if hasHint && a.isSupporter(round, speaker, framed, hint) {
		return StanceAgree, hint
	}
	if framed != "" {
		return StanceDisagree, framed
	}
	if hasHint && hint != speaker {
		return StanceDisagree, hint
	}

	var candidates []string
	for _, name := range order {
		if name != speaker && name != hint {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) > 0 {
		return StanceDisagree, candidates[a.rnd.Intn(len(candidates))]
	}
	if actingHuman != "" && actingHuman != speaker {
		return StanceDisagree, actingHuman
	}
	if humans := round.Humans(); len(humans) > 0 && humans[0] != speaker {
		return StanceDisagree, humans[0]
	}
	return StanceDisagree, FallbackTarget
}

// ambiguousPool returns the configured ambiguous names that are automated
// participants of this round, sorted.
func (a *Advancer) ambiguousPool(round *game.RoundState) []string {
	var pool []string
	seen := make(map[string]bool)
	for _, name := range a.policy.AmbiguousPool {
		if seen[name] {
			continue
		}
		if p, ok := round.Participant(name); ok && p.Automated {
			pool = append(pool, name)
			seen[name] = true
		}
	}
	sort.Strings(pool)
	return pool
}

// framedTarget is the pool member everyone piles onto: the other one when
// the human suspects a pool member, else the first. A hint naming the only
// member frames nobody.
func framedTarget(pool []string, hint string) string {
	if len(pool) == 0 {
		return ""
	}
	for i, name := range pool {
		if name == hint {
			if len(pool) == 1 {
				return ""
			}
			return pool[(i+1)%len(pool)]
		}
	}
	return pool[0]
}

// redirect is who a defending speaker blames instead.
func redirect(speaker, hint string, pool, order []string) string {
	if hint != "" && hint != speaker {
		return hint
	}
	for _, name := range pool {
		if name != speaker {
			return name
		}
	}
	for _, name := range order {
		if name != speaker {
			return name
		}
	}
	return FallbackTarget
}

// isSupporter reports whether speaker is one of the first SupporterCount
// automated speakers, in discussion order, that are not framed or hinted.
func (a *Advancer) isSupporter(round *game.RoundState, speaker, framed, hint string) bool {
	if a.policy.SupporterCount <= 0 {
		return false
	}
	count := 0
	for _, name := range round.TurnOrder() {
		p, _ := round.Participant(name)
		if !p.Automated || name == framed || name == hint {
			continue
		}
		if name == speaker {
			return true
		}
		count++
		if count >= a.policy.SupporterCount {
			return false
		}
	}
	return false
}
