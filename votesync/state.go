// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votesync

import "github.com/danielhkuo/startup-votes/models"

// Transition applies one button press to the prior vote.
// Same direction twice retracts; the opposite direction flips with a double delta.
func Transition(prior models.VoteKind, d models.Direction) (next models.VoteKind, delta int) {
	requested := d.Kind()
	sign := 1
	if requested == models.VoteDown {
		sign = -1
	}

	switch prior {
	case models.VoteNone:
		return requested, sign
	case requested:
		return models.VoteNone, -sign
	default:
		return requested, 2 * sign
	}
}

// Highlight maps a vote kind to the single button shown as active.
func Highlight(kind models.VoteKind) models.Highlight {
	switch kind {
	case models.VoteUp:
		return models.HighlightUp
	case models.VoteDown:
		return models.HighlightDown
	default:
		return models.HighlightNone
	}
}

// tally tracks what is displayed for one startup: the last confirmed net
// value plus deltas whose requests have not resolved yet. presses counts
// button presses so a failed request can tell whether a later one owns the vote.
type tally struct {
	known    bool
	base     int
	pending  int
	presses  int
	inflight int
}

func (t *tally) displayed() int {
	return t.base + t.pending
}

// State is the current user's vote per startup and the displayed tallies.
// It is owned by exactly one Synchronizer, which guards it.
type State struct {
	votes   map[int]models.VoteKind
	tallies map[int]*tally
	loaded  bool
}

func NewState() *State {
	return &State{
		votes:   make(map[int]models.VoteKind),
		tallies: make(map[int]*tally),
	}
}

func (s *State) vote(id int) models.VoteKind {
	return s.votes[id]
}

func (s *State) setVote(id int, kind models.VoteKind) {
	if kind == models.VoteNone {
		delete(s.votes, id)
		return
	}
	s.votes[id] = kind
}

func (s *State) tally(id int) *tally {
	t, ok := s.tallies[id]
	if !ok {
		t = &tally{}
		s.tallies[id] = t
	}
	return t
}

// displayed reads a tally without creating it.
func (s *State) displayed(id int) int {
	if t, ok := s.tallies[id]; ok {
		return t.displayed()
	}
	return 0
}

// forgetUnseen drops a tally that only exists because of votes which all
// failed, so the startup reads as never seen again.
func (s *State) forgetUnseen(id int) {
	t, ok := s.tallies[id]
	if ok && !t.known && t.inflight == 0 && t.base == 0 {
		delete(s.tallies, id)
	}
}

func (s *State) reset() {
	s.votes = make(map[int]models.VoteKind)
	s.loaded = false
}
