package service

import (
	"fmt"
	"strconv"
	"strings"

	"ladder-bot/internal/model"
)

// ResolveKind tags the outcome of resolving free text to a player.
type ResolveKind int

const (
	NotFound ResolveKind = iota
	Resolved
	Ambiguous
)

// Resolution is the tagged result of Resolve.
type Resolution struct {
	Kind       ResolveKind
	Player     *model.Player
	Candidates []*model.Player
}

// Err maps an unresolved result onto the error taxonomy.
func (r Resolution) Err(query string) error {
	switch r.Kind {
	case Resolved:
		return nil
	case Ambiguous:
		names := make([]string, len(r.Candidates))
		for i, p := range r.Candidates {
			names[i] = p.Name
		}
		return fmt.Errorf("%w: %q matches %s", ErrAmbiguousTarget, query, strings.Join(names, ", "))
	default:
		return fmt.Errorf("%w: no player matches %q", ErrPlayerNotFound, query)
	}
}

func resolved(p *model.Player) Resolution { return Resolution{Kind: Resolved, Player: p} }

// names returns every name a player can be addressed by.
func names(p *model.Player) []string {
	out := []string{p.Name}
	for _, h := range []*string{p.MobileName, p.SteamName} {
		if h != nil && *h != "" {
			out = append(out, *h)
		}
	}
	return out
}

// Resolve matches query against candidates. A numeric id wins outright,
// then an exact name or handle, then a case-insensitive exact match, then a
// unique case-insensitive substring.
func Resolve(query string, candidates []*model.Player) Resolution {
	q := strings.TrimPrefix(strings.TrimSpace(query), "@")
	if q == "" {
		return Resolution{Kind: NotFound}
	}

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		for _, p := range candidates {
			if p.ID == id {
				return resolved(p)
			}
		}
	}

	for _, p := range candidates {
		for _, n := range names(p) {
			if n == q {
				return resolved(p)
			}
		}
	}

	var folded []*model.Player
	for _, p := range candidates {
		for _, n := range names(p) {
			if strings.EqualFold(n, q) {
				folded = append(folded, p)
				break
			}
		}
	}
	if len(folded) == 1 {
		return resolved(folded[0])
	}
	if len(folded) > 1 {
		return Resolution{Kind: Ambiguous, Candidates: folded}
	}

	lq := strings.ToLower(q)
	var partial []*model.Player
	for _, p := range candidates {
		for _, n := range names(p) {
			if strings.Contains(strings.ToLower(n), lq) {
				partial = append(partial, p)
				break
			}
		}
	}
	switch len(partial) {
	case 0:
		return Resolution{Kind: NotFound}
	case 1:
		return resolved(partial[0])
	default:
		return Resolution{Kind: Ambiguous, Candidates: partial}
	}
}
