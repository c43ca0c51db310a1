package service

import "ladder-bot/internal/model"

// Caller is the authenticated identity behind a command.
type Caller struct {
	ID          int64
	IsModerator bool
	IsOwner     bool
}

// System is the caller used by scheduled jobs.
var System = Caller{IsModerator: true, IsOwner: true}

// canHost reports whether c may act as the host of g.
func (c Caller) canHost(g *model.Game) bool {
	return c.IsModerator || c.ID == g.HostID
}

// canReport reports whether c may file a result for g.
func (c Caller) canReport(g *model.Game) bool {
	return c.IsModerator || g.IsParticipant(c.ID)
}

func (c Caller) requireModerator() error {
	if !c.IsModerator {
		return ErrModeratorOnly
	}
	return nil
}

func (c Caller) requireOwner() error {
	if !c.IsOwner {
		return ErrOwnerOnly
	}
	return nil
}

// label renders the caller for audit entries.
func (c Caller) label() string {
	if c == System {
		return "the scheduler"
	}
	return playerRef(c.ID)
}
