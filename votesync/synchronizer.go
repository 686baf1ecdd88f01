// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/voteclient"
)

var (
	ErrUnauthenticated  = errors.New("login required")
	ErrPersist          = errors.New("failed to save vote")
	ErrInvalidDirection = errors.New("direction must be up or down")
)

// User-visible notification texts
const (
	MsgLoginToVote  = "Please log in to vote"
	MsgVoteFailed   = "Error registering the vote"
	MsgSessionEnded = "Your session has ended, please log in again"
)

// Backend is the part of the vote service the synchronizer calls.
type Backend interface {
	Count(ctx context.Context, startupID int) (models.VoteCount, error)
	UserVotes(ctx context.Context, userID int) ([]models.VoteRecord, error)
	UpsertVote(ctx context.Context, userID, startupID int, kind models.VoteKind) error
	DeleteVote(ctx context.Context, userID, startupID int) error
}

// Sessions gates every mutating action.
type Sessions interface {
	Current(ctx context.Context) (auth.Session, error)
	Invalidate(ctx context.Context) error
}

type Options struct {
	// Reconcile re-reads the server tally after each successful vote.
	Reconcile bool
	// RefreshLimit bounds concurrent tally reads in RefreshTallies.
	RefreshLimit int
}

// Result is the state of one startup after CastVote returns.
type Result struct {
	StartupID int
	Vote      models.VoteKind
	Displayed int
	Drift     bool
}

// Synchronizer applies votes optimistically, persists them and reconciles
// the displayed tallies with the server. Safe for concurrent use.
type Synchronizer struct {
	backend  Backend
	sessions Sessions
	opts     Options

	mu    sync.Mutex
	state *State

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func New(state *State, backend Backend, sessions Sessions, opts Options) *Synchronizer {
	if state == nil {
		state = NewState()
	}
	if opts.RefreshLimit <= 0 {
		opts.RefreshLimit = 4
	}
	return &Synchronizer{
		backend:   backend,
		sessions:  sessions,
		opts:      opts,
		state:     state,
		listeners: make(map[int]Listener),
	}
}

// CastVote presses the up or down button on a startup for the current user.
func (s *Synchronizer) CastVote(ctx context.Context, startupID int, d models.Direction) (Result, error) {
	if !d.Valid() {
		return Result{}, ErrInvalidDirection
	}

	sess, err := s.sessions.Current(ctx)
	if ErrorIsAuth(err) {
		s.emit(Event{Kind: EventLoginRequired, StartupID: startupID, Message: MsgLoginToVote})
		return Result{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to read session: %w", err)
	}

	// Optimistic apply, visible before the request goes out
	s.mu.Lock()
	prior := s.state.vote(startupID)
	next, delta := Transition(prior, d)
	s.state.setVote(startupID, next)
	t := s.state.tally(startupID)
	t.pending += delta
	t.presses++
	t.inflight++
	press := t.presses
	applied := s.eventLocked(EventApplied, startupID)
	s.mu.Unlock()
	s.emit(applied)

	slog.Debug("vote applied",
		"startup_id", startupID,
		"prior", prior.String(),
		"next", next.String(),
		"delta", delta,
	)

	if next == models.VoteNone {
		err = s.backend.DeleteVote(ctx, sess.User.ID, startupID)
	} else {
		err = s.backend.UpsertVote(ctx, sess.User.ID, startupID, next)
	}

	if err != nil {
		s.mu.Lock()
		// A later press on the same startup owns the vote; only its delta goes
		if t.presses == press {
			s.state.setVote(startupID, prior)
		}
		t.pending -= delta
		t.inflight--
		s.state.forgetUnseen(startupID)
		reverted := s.eventLocked(EventReverted, startupID)
		res := s.resultLocked(startupID)
		s.mu.Unlock()
		s.emit(reverted)

		slog.Warn("vote not saved, reverted",
			"startup_id", startupID,
			"user_id", sess.User.ID,
			"error", err,
		)

		if errors.Is(err, voteclient.ErrUnauthorized) {
			s.EndSession(ctx, MsgSessionEnded)
			return res, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		s.emit(Event{Kind: EventNotification, StartupID: startupID, Level: LevelError, Message: MsgVoteFailed})
		return res, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.mu.Lock()
	t.base += delta
	t.pending -= delta
	t.inflight--
	s.mu.Unlock()

	drift := false
	if s.opts.Reconcile {
		drift = s.reconcile(ctx, startupID)
	}

	s.mu.Lock()
	res := s.resultLocked(startupID)
	s.mu.Unlock()
	res.Drift = drift
	return res, nil
}

// reconcile overwrites the displayed value with the server's when they disagree.
// A failed read is logged and leaves the local value in place.
func (s *Synchronizer) reconcile(ctx context.Context, startupID int) bool {
	count, err := s.backend.Count(ctx, startupID)
	if err != nil {
		slog.Warn("tally verification failed", "startup_id", startupID, "error", err)
		return false
	}
	changed, before, after := s.setTally(startupID, count, true)
	if changed {
		slog.Info("tally corrected from server",
			"startup_id", startupID,
			"local", before,
			"server", after,
		)
	}
	return changed
}

// setTally stores a server tally and emits a reconciled event if the
// displayed value moved. A first sighting only counts when afterVote is set.
func (s *Synchronizer) setTally(startupID int, count models.VoteCount, afterVote bool) (changed bool, before, after int) {
	s.mu.Lock()
	t := s.state.tally(startupID)
	before = t.displayed()
	known := t.known
	t.known = true
	t.base = count.Net()
	after = t.displayed()
	changed = (known || afterVote) && before != after
	var ev Event
	if changed {
		ev = s.eventLocked(EventReconciled, startupID)
	}
	s.mu.Unlock()

	if changed {
		s.emit(ev)
	}
	return changed, before, after
}

// SetTally seeds the displayed tally from a listing the page already fetched.
func (s *Synchronizer) SetTally(startupID int, count models.VoteCount) {
	s.setTally(startupID, count, false)
}

// RefreshTallies reads the server tally of every startup, a few at a time.
// Every startup is attempted; the first error is returned.
func (s *Synchronizer) RefreshTallies(ctx context.Context, startupIDs ...int) error {
	var g errgroup.Group
	g.SetLimit(s.opts.RefreshLimit)
	for _, id := range startupIDs {
		g.Go(func() error {
			count, err := s.backend.Count(ctx, id)
			if err != nil {
				return fmt.Errorf("startup %d: %w", id, err)
			}
			s.setTally(id, count, false)
			return nil
		})
	}
	return g.Wait()
}

// LoadVotesForUser replaces the vote state with the user's stored votes.
// On failure the state is left empty, still marked loaded, and the error returned.
func (s *Synchronizer) LoadVotesForUser(ctx context.Context, userID int) error {
	records, err := s.backend.UserVotes(ctx, userID)

	s.mu.Lock()
	s.state.reset()
	if err == nil {
		for _, r := range records {
			if r.VoteType.Valid() {
				s.state.setVote(r.StartupID, r.VoteType)
			}
		}
	}
	s.state.loaded = true
	count := len(s.state.votes)
	s.mu.Unlock()
	s.emit(Event{Kind: EventLoaded, Message: fmt.Sprintf("%d votes", count)})

	if err != nil {
		slog.Warn("failed to load user votes", "user_id", userID, "error", err)
		if errors.Is(err, voteclient.ErrUnauthorized) {
			s.EndSession(ctx, MsgSessionEnded)
			return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return fmt.Errorf("failed to load votes: %w", err)
	}
	slog.Info("user votes loaded", "user_id", userID, "count", count)
	return nil
}

// LoadCurrentUser loads votes for whoever is logged in. With no session
// the state is simply empty and loaded.
func (s *Synchronizer) LoadCurrentUser(ctx context.Context) error {
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		s.Reset()
		s.mu.Lock()
		s.state.loaded = true
		s.mu.Unlock()
		return nil
	}
	return s.LoadVotesForUser(ctx, sess.User.ID)
}

// RenderVoteButtons is the single button to highlight for a startup.
func (s *Synchronizer) RenderVoteButtons(startupID int) models.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Highlight(s.state.vote(startupID))
}

// Vote is the user's current vote on a startup.
func (s *Synchronizer) Vote(startupID int) models.VoteKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.vote(startupID)
}

// Displayed is the count shown next to the buttons; ok is false until a
// tally has been seen or a vote cast.
func (s *Synchronizer) Displayed(startupID int) (value int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.tallies[startupID]
	if !ok {
		return 0, false
	}
	return t.displayed(), true
}

// Snapshot copies the vote state.
func (s *Synchronizer) Snapshot() map[int]models.VoteKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]models.VoteKind, len(s.state.votes))
	for id, kind := range s.state.votes {
		out[id] = kind
	}
	return out
}

// Known lists every startup with a vote or a tally, ascending.
func (s *Synchronizer) Known() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int]struct{}, len(s.state.tallies)+len(s.state.votes))
	for id := range s.state.tallies {
		seen[id] = struct{}{}
	}
	for id := range s.state.votes {
		seen[id] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.loaded
}

// Reset drops the user's votes, used when the session ends.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.state.reset()
	s.mu.Unlock()
}

// EndSession clears the session and the user's votes and tells listeners
// to show the login page. Used on logout and when a backend rejects the token.
func (s *Synchronizer) EndSession(ctx context.Context, message string) {
	if err := s.sessions.Invalidate(ctx); err != nil {
		slog.Error("failed to clear session", "error", err)
	}
	s.Reset()
	s.emit(Event{Kind: EventLoginRequired, Message: message})
}

func (s *Synchronizer) resultLocked(startupID int) Result {
	return Result{
		StartupID: startupID,
		Vote:      s.state.vote(startupID),
		Displayed: s.state.displayed(startupID),
	}
}

func (s *Synchronizer) eventLocked(kind EventKind, startupID int) Event {
	vote := s.state.vote(startupID)
	return Event{
		Kind:      kind,
		StartupID: startupID,
		Vote:      vote.String(),
		Displayed: s.state.displayed(startupID),
		Buttons:   Highlight(vote),
	}
}

// ErrorIsAuth reports whether err should send the page to the login flow.
func ErrorIsAuth(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, auth.ErrNoSession) ||
		errors.Is(err, auth.ErrTokenExpired)
}
