// Package rank implements the bounded rung ladder: step sizes, clamping and
// placement seeding. Everything here is pure.
package rank

import (
	"errors"
	"fmt"
)

// Rung bounds and placement thresholds.
const (
	MinRung     = 1
	MaxRung     = 12
	DefaultRung = MinRung

	// PlacementGames is the number of confirmed games during which steps double.
	PlacementGames = 4
	// PlacementSeedGames is the confirmed-game count at which a new player's
	// rung is seeded from their record.
	PlacementSeedGames = 3
)

// ErrPlacementInconsistent is returned when a placement record cannot be
// mapped onto a seed rung.
var ErrPlacementInconsistent = errors.New("placement record inconsistent")

// placementSeeds maps wins out of PlacementSeedGames to a rung.
var placementSeeds = map[int]int{0: 1, 1: 3, 2: 5, 3: 7}

// PlacementActive reports whether a player with the given number of
// confirmed games is still in placement.
func PlacementActive(confirmedGames int) bool {
	return confirmedGames < PlacementGames
}

// StepChange returns the rung deltas for the winner and loser of a game.
// Each side's magnitude is doubled only by its own placement status.
func StepChange(winnerPlacement, loserPlacement bool) (winnerDelta, loserDelta int) {
	winnerDelta, loserDelta = 1, -1
	if winnerPlacement {
		winnerDelta = 2
	}
	if loserPlacement {
		loserDelta = -2
	}
	return winnerDelta, loserDelta
}

// Clamp bounds a rung to [MinRung, MaxRung].
func Clamp(rung int) int {
	if rung < MinRung {
		return MinRung
	}
	if rung > MaxRung {
		return MaxRung
	}
	return rung
}

// Valid reports whether rung lies inside the ladder.
func Valid(rung int) bool {
	return rung >= MinRung && rung <= MaxRung
}

// Apply adds delta to rung and clamps the result.
func Apply(rung, delta int) int {
	return Clamp(rung + delta)
}

// PlacementRung returns the seed rung for a player who has won wins out of
// exactly PlacementSeedGames confirmed games.
func PlacementRung(wins, games int) (int, error) {
	if games != PlacementSeedGames {
		return 0, fmt.Errorf("%w: %d games, want %d", ErrPlacementInconsistent, games, PlacementSeedGames)
	}
	r, ok := placementSeeds[wins]
	if !ok {
		return 0, fmt.Errorf("%w: %d wins out of %d", ErrPlacementInconsistent, wins, games)
	}
	return r, nil
}

// WinRatio returns wins/games, or 0 when no games have been played.
func WinRatio(wins, games int) float64 {
	if games <= 0 {
		return 0
	}
	return float64(wins) / float64(games)
}
