// Package matchup turns weekly signup pools into tiered pairings.
//
// Generation is pure: callers load the pools, pass a seeded *rand.Rand and
// persist the resulting Plan themselves.
package matchup

import (
	"math/rand"
	"sort"

	"ladder-bot/internal/model"
	"ladder-bot/internal/rank"
)

// OverflowTier collects players promoted out of the top rung.
const OverflowTier = rank.MaxRung + 1

// Entrant is one signed-up player as seen by the generator.
type Entrant struct {
	PlayerID int64
	Rung     int
	WinRatio float64
}

// Pairing is a future game. Host and away keep their own rung for the
// step snapshot; Tier is the bucket the pair was drawn from.
type Pairing struct {
	Host Entrant
	Away Entrant
	Tier int
}

// Removal records a player trimmed from an odd-sized pool.
type Removal struct {
	Entrant Entrant
	// Dual is set when the player was also signed up on the other platform.
	Dual bool
}

// Tier is a non-empty rung bucket after rebalancing.
type Tier struct {
	Number   int
	Pairings []Pairing
}

// PoolPlan is the outcome for one platform.
type PoolPlan struct {
	Platform model.Platform
	Removed  []Removal
	Tiers    []Tier
	// Unpaired holds players left over in the overflow bucket. They are
	// carried over rather than paired across tiers.
	Unpaired []Entrant
}

// Pairings flattens the plan in tier order.
func (p PoolPlan) Pairings() []Pairing {
	var out []Pairing
	for _, t := range p.Tiers {
		out = append(out, t.Pairings...)
	}
	return out
}

// Plan is the generator result for both platforms.
type Plan struct {
	Mobile PoolPlan
	Steam  PoolPlan
}

// Empty reports whether no games would be created.
func (p Plan) Empty() bool {
	return len(p.Mobile.Tiers) == 0 && len(p.Steam.Tiers) == 0
}

// GameCount returns the number of pairings across both platforms.
func (p Plan) GameCount() int {
	return len(p.Mobile.Pairings()) + len(p.Steam.Pairings())
}

// Generate builds pairings for the mobile and steam pools.
//
// Odd pools lose exactly one player, preferring someone signed up on both
// platforms. When both pools are odd, a dual player trimmed from the mobile
// pool is trimmed from the steam pool too, so only one person sits out.
func Generate(mobile, steam []Entrant, rng *rand.Rand) Plan {
	mobile = normalize(mobile)
	steam = normalize(steam)

	mobileIDs := idSet(mobile)
	steamIDs := idSet(steam)

	var removedMobile, removedSteam []Removal
	var prefer int64
	if len(mobile)%2 == 1 {
		var r Removal
		mobile, r = trim(mobile, steamIDs, 0, rng)
		removedMobile = append(removedMobile, r)
		if r.Dual {
			prefer = r.Entrant.PlayerID
		}
	}
	if len(steam)%2 == 1 {
		var r Removal
		steam, r = trim(steam, mobileIDs, prefer, rng)
		removedSteam = append(removedSteam, r)
	}

	m := build(mobile, rng)
	m.Platform = model.PlatformMobile
	m.Removed = removedMobile

	s := build(steam, rng)
	s.Platform = model.PlatformSteam
	s.Removed = removedSteam

	return Plan{Mobile: m, Steam: s}
}

// normalize drops duplicate entries and orders the pool by player id so a
// seeded generator is reproducible regardless of load order.
func normalize(pool []Entrant) []Entrant {
	seen := make(map[int64]bool, len(pool))
	out := make([]Entrant, 0, len(pool))
	for _, e := range pool {
		if seen[e.PlayerID] {
			continue
		}
		seen[e.PlayerID] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func idSet(pool []Entrant) map[int64]bool {
	set := make(map[int64]bool, len(pool))
	for _, e := range pool {
		set[e.PlayerID] = true
	}
	return set
}

// trim removes one player from pool. prefer is taken when present,
// otherwise players also in other are chosen first.
func trim(pool []Entrant, other map[int64]bool, prefer int64, rng *rand.Rand) ([]Entrant, Removal) {
	var duals, rest []int
	for i, e := range pool {
		if prefer != 0 && e.PlayerID == prefer {
			duals = []int{i}
			break
		}
		if other[e.PlayerID] {
			duals = append(duals, i)
		} else {
			rest = append(rest, i)
		}
	}

	var idx int
	dual := false
	switch {
	case len(duals) > 0:
		idx = duals[rng.Intn(len(duals))]
		dual = true
	case len(rest) > 0:
		idx = rest[rng.Intn(len(rest))]
	default:
		idx = rng.Intn(len(pool))
		dual = other[pool[idx].PlayerID]
	}

	removed := pool[idx]
	out := make([]Entrant, 0, len(pool)-1)
	out = append(out, pool[:idx]...)
	out = append(out, pool[idx+1:]...)
	return out, Removal{Entrant: removed, Dual: dual}
}

// build buckets an even pool by rung, promotes the weakest player of each
// odd bucket one tier up and pairs every bucket.
func build(pool []Entrant, rng *rand.Rand) PoolPlan {
	buckets := make([][]Entrant, OverflowTier+1)
	for _, e := range pool {
		r := rank.Clamp(e.Rung)
		buckets[r] = append(buckets[r], e)
	}

	for r := rank.MinRung; r <= rank.MaxRung; r++ {
		b := buckets[r]
		byWinRatio(b)
		if len(b)%2 == 0 {
			continue
		}
		buckets[r+1] = append(buckets[r+1], b[0])
		buckets[r] = b[1:]
	}

	var plan PoolPlan
	overflow := buckets[OverflowTier]
	if len(overflow)%2 == 1 {
		byWinRatio(overflow)
		plan.Unpaired = append(plan.Unpaired, overflow[0])
		buckets[OverflowTier] = overflow[1:]
	}

	for r := rank.MinRung; r <= OverflowTier; r++ {
		b := buckets[r]
		if len(b) == 0 {
			continue
		}
		shuffled := make([]Entrant, len(b))
		copy(shuffled, b)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		tier := Tier{Number: r}
		for i := 0; i+1 < len(shuffled); i += 2 {
			tier.Pairings = append(tier.Pairings, Pairing{
				Host: shuffled[i],
				Away: shuffled[i+1],
				Tier: r,
			})
		}
		plan.Tiers = append(plan.Tiers, tier)
	}
	return plan
}

// byWinRatio sorts ascending by win ratio, ties broken by id.
func byWinRatio(b []Entrant) {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].WinRatio != b[j].WinRatio {
			return b[i].WinRatio < b[j].WinRatio
		}
		return b[i].PlayerID < b[j].PlayerID
	})
}
