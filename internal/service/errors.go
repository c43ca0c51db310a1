package service

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by a service wraps exactly one of
// these so dispatch can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrAmbiguousTarget  = errors.New("ambiguous target")
	ErrValidation       = errors.New("validation failed")
	ErrConflictDetected = errors.New("conflicting win claims")
)

// Specific failures.
var (
	ErrGameNotFound   = fmt.Errorf("game %w", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)

	ErrAlreadyStarted   = fmt.Errorf("game already started: %w", ErrInvalidState)
	ErrNotStarted       = fmt.Errorf("game not started: %w", ErrInvalidState)
	ErrNotClaimed       = fmt.Errorf("game has no pending win claim: %w", ErrInvalidState)
	ErrNotConfirmed     = fmt.Errorf("game not confirmed: %w", ErrInvalidState)
	ErrAlreadyConfirmed = fmt.Errorf("game already confirmed: %w", ErrInvalidState)
	ErrGameComplete     = fmt.Errorf("game already complete: %w", ErrInvalidState)

	ErrNotParticipant = fmt.Errorf("not a participant: %w", ErrNotAuthorized)
	ErrModeratorOnly  = fmt.Errorf("moderator only: %w", ErrNotAuthorized)
	ErrOwnerOnly      = fmt.Errorf("owner only: %w", ErrNotAuthorized)

	ErrEmptyName       = fmt.Errorf("name is required: %w", ErrValidation)
	ErrNameTooLong     = fmt.Errorf("name is too long: %w", ErrValidation)
	ErrWinnerNotSide   = fmt.Errorf("winner is not a side of this game: %w", ErrValidation)
	ErrInvalidRung     = fmt.Errorf("rung out of range: %w", ErrValidation)
	ErrUnknownPlatform = fmt.Errorf("unknown platform: %w", ErrValidation)

	ErrSignupsClosed   = fmt.Errorf("signups are closed: %w", ErrInvalidState)
	ErrSignupsOpen     = fmt.Errorf("signups are already open: %w", ErrInvalidState)
	ErrAlreadySignedUp = fmt.Errorf("already signed up: %w", ErrInvalidState)
	ErrNotSignedUp     = fmt.Errorf("not signed up: %w", ErrInvalidState)
	ErrMissingHandle   = fmt.Errorf("no in-game name for platform: %w", ErrValidation)
	ErrInactivePlayer  = fmt.Errorf("player is inactive: %w", ErrInvalidState)
)
