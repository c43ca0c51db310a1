// Package model defines the domain models for the ladder.
package model

import (
	"strings"
	"time"
)

// Platform identifies which client a player signs up to play on.
type Platform string

const (
	PlatformMobile Platform = "mobile"
	PlatformSteam  Platform = "steam"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformMobile || p == PlatformSteam
}

// ParsePlatform maps user input onto a Platform.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile", "m":
		return PlatformMobile, true
	case "steam", "s", "pc":
		return PlatformSteam, true
	}
	return "", false
}

// Player represents a registered ladder participant.
type Player struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	MobileName *string   `db:"mobile_name"`
	SteamName  *string   `db:"steam_name"`
	Rung       int       `db:"rung"`
	WinRatio   float64   `db:"win_ratio"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Handle returns the in-game name registered for the platform, or nil.
func (p *Player) Handle(platform Platform) *string {
	switch platform {
	case PlatformMobile:
		return p.MobileName
	case PlatformSteam:
		return p.SteamName
	}
	return nil
}

// SetHandle replaces the in-game name for the platform. A nil name clears it.
func (p *Player) SetHandle(platform Platform, name *string) {
	switch platform {
	case PlatformMobile:
		p.MobileName = name
	case PlatformSteam:
		p.SteamName = name
	}
}

// HasPlatform reports whether the player can sign up for the platform.
func (p *Player) HasPlatform(platform Platform) bool {
	h := p.Handle(platform)
	return h != nil && *h != ""
}

// GameState is the lifecycle state derived from a game's flags.
type GameState int

const (
	StatePending GameState = iota
	StateStarted
	StateClaimed
	StateConfirmed
)

func (s GameState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStarted:
		return "started"
	case StateClaimed:
		return "claimed"
	case StateConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// Game represents a single 1-on-1 ladder match.
// HostStep and AwayStep snapshot each side's rung when the game was generated.
// The *StepChange fields hold the nominal delta and the *RungApplied fields
// hold the movement that actually landed after clamping.
type Game struct {
	ID              int64      `db:"id"`
	Name            *string    `db:"name"`
	HostID          int64      `db:"host_id"`
	AwayID          int64      `db:"away_id"`
	WinnerID        *int64     `db:"winner_id"`
	IsStarted       bool       `db:"is_started"`
	IsComplete      bool       `db:"is_complete"`
	IsConfirmed     bool       `db:"is_confirmed"`
	HostSwitched    bool       `db:"host_switched"`
	HostStep        int        `db:"host_step"`
	AwayStep        int        `db:"away_step"`
	HostStepChange  *int       `db:"host_step_change"`
	AwayStepChange  *int       `db:"away_step_change"`
	HostRungApplied *int       `db:"host_rung_applied"`
	AwayRungApplied *int       `db:"away_rung_applied"`
	Step            int        `db:"step"`
	Mobile          bool       `db:"mobile"`
	OpenedAt        time.Time  `db:"opened_at"`
	StartedAt       *time.Time `db:"started_at"`
	WinClaimedAt    *time.Time `db:"win_claimed_at"`
	WinClaimedBy    *int64     `db:"win_claimed_by"`
}

// State derives the lifecycle state. Exactly one state holds for any
// combination of flags.
func (g *Game) State() GameState {
	switch {
	case g.IsConfirmed:
		return StateConfirmed
	case g.IsComplete:
		return StateClaimed
	case g.IsStarted:
		return StateStarted
	default:
		return StatePending
	}
}

// IsParticipant reports whether the player is the host or away side.
func (g *Game) IsParticipant(playerID int64) bool {
	return playerID == g.HostID || playerID == g.AwayID
}

// Opponent returns the other side of the game.
func (g *Game) Opponent(playerID int64) int64 {
	if playerID == g.HostID {
		return g.AwayID
	}
	return g.HostID
}

// Platform returns the platform the game is played on.
func (g *Game) Platform() Platform {
	if g.Mobile {
		return PlatformMobile
	}
	return PlatformSteam
}

// DisplayName returns the game name or a placeholder when unnamed.
func (g *Game) DisplayName() string {
	if g.Name == nil || *g.Name == "" {
		return "unnamed"
	}
	return *g.Name
}

// Signup links a player to a platform for the current signup window.
type Signup struct {
	ID        int64     `db:"id"`
	PlayerID  int64     `db:"player_id"`
	Platform  Platform  `db:"platform"`
	CreatedAt time.Time `db:"created_at"`
}

// SignupMessage is a weekly signup window backed by a chat message.
type SignupMessage struct {
	ID        int64     `db:"id"`
	MessageID int64     `db:"message_id"`
	ChatID    int64     `db:"chat_id"`
	IsOpen    bool      `db:"is_open"`
	CloseAt   time.Time `db:"close_at"`
	CreatedAt time.Time `db:"created_at"`
}

// GameLog is an append-only audit entry.
type GameLog struct {
	ID        int64     `db:"id"`
	GameID    *int64    `db:"game_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// PlayerRecord is a player's confirmed-game tally.
type PlayerRecord struct {
	Games int `db:"games"`
	Wins  int `db:"wins"`
}
