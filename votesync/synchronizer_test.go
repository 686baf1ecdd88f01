// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votesync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/testutil"
	"github.com/danielhkuo/startup-votes/voteclient"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

const testUserID = 3

// memStore keeps the session in memory
type memStore struct {
	mu   sync.Mutex
	sess *auth.Session
}

func (m *memStore) Load(context.Context) (auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return auth.Session{}, auth.ErrNoSession
	}
	return *m.sess, nil
}

func (m *memStore) Save(_ context.Context, s auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &s
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// eventLog records every event a synchronizer emits
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	backend  *testutil.FakeBackend
	sessions *auth.Manager
	sync     *Synchronizer
	events   *eventLog
}

// newFixture wires a synchronizer to a fake backend. When token is not
// empty the user is logged in with it.
func newFixture(t *testing.T, token string) *fixture {
	t.Helper()

	backend := testutil.NewFakeBackend(t)
	sessions := auth.NewManager(&memStore{})
	if token != "" {
		if _, err := sessions.Save(context.Background(), token, models.User{ID: testUserID, FirstName: "Ana"}); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
	}
	client, err := voteclient.New(backend.URL(), backend.URL(), sessions, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	s := New(NewState(), client, sessions, Options{Reconcile: true})
	events := &eventLog{}
	t.Cleanup(s.Subscribe(events.record))
	return &fixture{backend: backend, sessions: sessions, sync: s, events: events}
}

// seed copies the fake server's tally into the synchronizer
func (f *fixture) seed(startupID int) {
	f.sync.SetTally(startupID, f.backend.Count(startupID))
}

func (f *fixture) displayed(t *testing.T, startupID int) int {
	t.Helper()
	v, ok := f.sync.Displayed(startupID)
	if !ok {
		t.Fatalf("no displayed tally for startup %d", startupID)
	}
	return v
}

func TestTransition(t *testing.T) {
	tests := []struct {
		prior     models.VoteKind
		dir       models.Direction
		wantNext  models.VoteKind
		wantDelta int
	}{
		{models.VoteNone, models.DirectionUp, models.VoteUp, 1},
		{models.VoteNone, models.DirectionDown, models.VoteDown, -1},
		{models.VoteUp, models.DirectionUp, models.VoteNone, -1},
		{models.VoteDown, models.DirectionDown, models.VoteNone, 1},
		{models.VoteDown, models.DirectionUp, models.VoteUp, 2},
		{models.VoteUp, models.DirectionDown, models.VoteDown, -2},
	}

	for _, tt := range tests {
		t.Run(tt.prior.String()+"_"+string(tt.dir), func(t *testing.T) {
			next, delta := Transition(tt.prior, tt.dir)
			if next != tt.wantNext || delta != tt.wantDelta {
				t.Errorf("Transition(%s, %s) = (%s, %d), want (%s, %d)",
					tt.prior, tt.dir, next, delta, tt.wantNext, tt.wantDelta)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	tests := map[models.VoteKind]models.Highlight{
		models.VoteNone: models.HighlightNone,
		models.VoteUp:   models.HighlightUp,
		models.VoteDown: models.HighlightDown,
	}
	for kind, want := range tests {
		if got := Highlight(kind); got != want {
			t.Errorf("Highlight(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestCastVote_UpThenRetract(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(42, 5, 1)
	f.seed(42)
	ctx := context.Background()

	if got := f.displayed(t, 42); got != 4 {
		t.Fatalf("initial displayed = %d, want 4", got)
	}

	res, err := f.sync.CastVote(ctx, 42, models.DirectionUp)
	if err != nil {
		t.Fatalf("CastVote(up) error = %v", err)
	}
	want := Result{StartupID: 42, Vote: models.VoteUp, Displayed: 5}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("CastVote(up) mismatch (-want +got):\n%s", diff)
	}
	if got := f.backend.UserVote(testUserID, 42); got != models.VoteUp {
		t.Errorf("server vote = %q, want upvote", got)
	}
	if got := f.sync.RenderVoteButtons(42); got != models.HighlightUp {
		t.Errorf("buttons = %s, want up", got)
	}

	res, err = f.sync.CastVote(ctx, 42, models.DirectionUp)
	if err != nil {
		t.Fatalf("CastVote(up again) error = %v", err)
	}
	if res.Vote != models.VoteNone || res.Displayed != 4 {
		t.Errorf("after retract got %+v, want no vote and 4", res)
	}
	if got := f.backend.UserVote(testUserID, 42); got != models.VoteNone {
		t.Errorf("server still has vote %q", got)
	}
	if got := f.sync.RenderVoteButtons(42); got != models.HighlightNone {
		t.Errorf("buttons = %s, want none", got)
	}

	// The retract was a DELETE, not a POST with an empty type
	var methods []string
	for _, r := range f.backend.Requests() {
		if r.Path == "/votes/" {
			methods = append(methods, r.Method)
		}
	}
	if diff := cmp.Diff([]string{http.MethodPost, http.MethodDelete}, methods); diff != "" {
		t.Errorf("vote writes mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_Flip(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(5, 2, 0)
	f.backend.SetUserVote(testUserID, 5, models.VoteDown)
	ctx := context.Background()

	if err := f.sync.LoadVotesForUser(ctx, testUserID); err != nil {
		t.Fatalf("LoadVotesForUser() error = %v", err)
	}
	f.seed(5)
	if got := f.displayed(t, 5); got != 1 {
		t.Fatalf("initial displayed = %d, want 1", got)
	}

	res, err := f.sync.CastVote(ctx, 5, models.DirectionUp)
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if res.Vote != models.VoteUp || res.Displayed != 3 || res.Drift {
		t.Errorf("flip got %+v, want upvote showing 3 without drift", res)
	}
}

func TestCastVote_FailureReverts(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(7, 10, 2)
	f.seed(7)
	f.backend.FailWrites(http.StatusInternalServerError)

	res, err := f.sync.CastVote(context.Background(), 7, models.DirectionDown)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if res.Vote != models.VoteNone || res.Displayed != 8 {
		t.Errorf("after failure got %+v, want no vote showing 8", res)
	}
	if got := f.sync.RenderVoteButtons(7); got != models.HighlightNone {
		t.Errorf("buttons = %s, want none", got)
	}

	want := []EventKind{EventApplied, EventReverted, EventNotification}
	if diff := cmp.Diff(want, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	f.events.mu.Lock()
	applied, note := f.events.events[0], f.events.events[2]
	f.events.mu.Unlock()
	if applied.Displayed != 7 || applied.Buttons != models.HighlightDown {
		t.Errorf("applied event = %+v, want 7 with down highlighted", applied)
	}
	if note.Message != MsgVoteFailed || note.Level != LevelError {
		t.Errorf("notification = %+v", note)
	}
}

func TestCastVote_FailureRestoresPriorVote(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(7, 1, 0)
	f.backend.SetUserVote(testUserID, 7, models.VoteUp)
	ctx := context.Background()
	if err := f.sync.LoadVotesForUser(ctx, testUserID); err != nil {
		t.Fatal(err)
	}
	f.seed(7)
	f.backend.FailWrites(http.StatusBadGateway)

	res, err := f.sync.CastVote(ctx, 7, models.DirectionDown)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if res.Vote != models.VoteUp || res.Displayed != 2 {
		t.Errorf("got %+v, want upvote restored showing 2", res)
	}
}

func TestCastVote_OptimisticBeforeConfirmation(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(42, 5, 1)
	f.seed(42)
	f.backend.HoldWrites()

	applied := make(chan Event, 1)
	unsubscribe := f.sync.Subscribe(func(ev Event) {
		if ev.Kind == EventApplied {
			applied <- ev
		}
	})
	defer unsubscribe()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.sync.CastVote(context.Background(), 42, models.DirectionUp)
		done <- outcome{res, err}
	}()

	select {
	case ev := <-applied:
		if ev.Displayed != 5 {
			t.Errorf("applied event displayed = %d, want 5", ev.Displayed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no applied event while the write was held")
	}

	// Still in flight: the page already shows the new vote
	if got := f.displayed(t, 42); got != 5 {
		t.Errorf("displayed while pending = %d, want 5", got)
	}
	if got := f.sync.Vote(42); got != models.VoteUp {
		t.Errorf("vote while pending = %s, want upvote", got)
	}

	f.backend.Release()
	select {
	case out := <-done:
		if out.err != nil || out.res.Displayed != 5 {
			t.Errorf("CastVote() = %+v, %v", out.res, out.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CastVote did not return after release")
	}
}

func TestCastVote_ReconcilesDrift(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(42, 5, 1)
	f.seed(42)

	// Others voted since the page was rendered
	f.backend.SetTally(42, 9, 1)

	res, err := f.sync.CastVote(context.Background(), 42, models.DirectionUp)
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if !res.Drift || res.Displayed != 9 {
		t.Errorf("got %+v, want drift corrected to 9", res)
	}
	want := []EventKind{EventApplied, EventReconciled}
	if diff := cmp.Diff(want, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_Unauthenticated(t *testing.T) {
	f := newFixture(t, "")
	f.backend.SetTally(1, 3, 0)
	f.seed(1)

	_, err := f.sync.CastVote(context.Background(), 1, models.DirectionUp)
	if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected ErrUnauthenticated wrapping ErrNoSession, got %v", err)
	}
	if !ErrorIsAuth(err) {
		t.Error("ErrorIsAuth() = false")
	}
	if got := f.displayed(t, 1); got != 3 {
		t.Errorf("displayed = %d, want 3 untouched", got)
	}
	if n := len(f.backend.Requests()); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
	if diff := cmp.Diff([]EventKind{EventLoginRequired}, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_RejectedTokenLogsOut(t *testing.T) {
	f := newFixture(t, "stale")
	f.backend.RequireToken("fresh")
	f.backend.SetTally(2, 4, 0)
	f.seed(2)
	ctx := context.Background()

	res, err := f.sync.CastVote(ctx, 2, models.DirectionUp)
	if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, voteclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if res.Displayed != 4 || res.Vote != models.VoteNone {
		t.Errorf("got %+v, want reverted to 4", res)
	}
	if _, err := f.sessions.Current(ctx); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("session still present: %v", err)
	}
	if f.sync.Loaded() {
		t.Error("vote state still marked loaded after logout")
	}
	want := []EventKind{EventApplied, EventReverted, EventLoginRequired}
	if diff := cmp.Diff(want, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_InvalidDirection(t *testing.T) {
	f := newFixture(t, "tok")
	if _, err := f.sync.CastVote(context.Background(), 1, models.Direction("sideways")); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestCastVote_ConcurrentStartups(t *testing.T) {
	f := newFixture(t, "tok")
	ids := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for _, id := range ids {
		f.backend.SetTally(id, id, 0)
		f.seed(id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.sync.CastVote(context.Background(), id, models.DirectionUp); err != nil {
				t.Errorf("CastVote(%d) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if got := f.displayed(t, id); got != id+1 {
			t.Errorf("startup %d displayed = %d, want %d", id, got, id+1)
		}
	}
	if diff := cmp.Diff(ids, f.sync.Known()); diff != "" {
		t.Errorf("Known() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadVotesForUser(t *testing.T) {
	t.Run("existing votes", func(t *testing.T) {
		f := newFixture(t, "tok")
		f.backend.SetUserVote(testUserID, 1, models.VoteUp)
		f.backend.SetUserVote(testUserID, 2, models.VoteDown)
		f.backend.SetUserVote(99, 3, models.VoteUp)

		if err := f.sync.LoadVotesForUser(context.Background(), testUserID); err != nil {
			t.Fatalf("LoadVotesForUser() error = %v", err)
		}
		want := map[int]models.VoteKind{1: models.VoteUp, 2: models.VoteDown}
		if diff := cmp.Diff(want, f.sync.Snapshot()); diff != "" {
			t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
		}
		if !f.sync.Loaded() {
			t.Error("Loaded() = false")
		}
		if got := f.sync.RenderVoteButtons(2); got != models.HighlightDown {
			t.Errorf("buttons for 2 = %s, want down", got)
		}
	})

	t.Run("no votes", func(t *testing.T) {
		f := newFixture(t, "tok")
		if err := f.sync.LoadVotesForUser(context.Background(), testUserID); err != nil {
			t.Fatalf("LoadVotesForUser() error = %v", err)
		}
		if len(f.sync.Snapshot()) != 0 || !f.sync.Loaded() {
			t.Errorf("expected empty loaded state, got %v loaded=%v", f.sync.Snapshot(), f.sync.Loaded())
		}
	})

	t.Run("service failure", func(t *testing.T) {
		f := newFixture(t, "tok")
		f.backend.SetUserVote(testUserID, 1, models.VoteUp)
		f.backend.FailUserVotes(http.StatusInternalServerError)

		err := f.sync.LoadVotesForUser(context.Background(), testUserID)
		if err == nil {
			t.Fatal("expected error")
		}
		if len(f.sync.Snapshot()) != 0 || !f.sync.Loaded() {
			t.Error("expected empty loaded state after failure")
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFixture(t, "stale")
		f.backend.RequireToken("fresh")

		err := f.sync.LoadVotesForUser(context.Background(), testUserID)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
		if _, err := f.sessions.Current(context.Background()); !errors.Is(err, auth.ErrNoSession) {
			t.Errorf("session not cleared: %v", err)
		}
	})
}

func TestLoadCurrentUser_NoSession(t *testing.T) {
	f := newFixture(t, "")
	if err := f.sync.LoadCurrentUser(context.Background()); err != nil {
		t.Fatalf("LoadCurrentUser() error = %v", err)
	}
	if !f.sync.Loaded() || len(f.sync.Snapshot()) != 0 {
		t.Error("expected empty loaded state")
	}
	if n := len(f.backend.Requests()); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestRefreshTallies(t *testing.T) {
	f := newFixture(t, "")
	f.backend.SetTally(1, 4, 1)
	f.backend.SetTally(2, 0, 2)
	f.backend.SetTally(3, 7, 0)

	if err := f.sync.RefreshTallies(context.Background(), 1, 2, 3); err != nil {
		t.Fatalf("RefreshTallies() error = %v", err)
	}
	for id, want := range map[int]int{1: 3, 2: -2, 3: 7} {
		if got := f.displayed(t, id); got != want {
			t.Errorf("startup %d displayed = %d, want %d", id, got, want)
		}
	}

	// A later change on the server is a reconciled event
	f.backend.SetTally(3, 8, 0)
	if err := f.sync.RefreshTallies(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]EventKind{EventReconciled}, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayed_Unknown(t *testing.T) {
	s := New(nil, nil, nil, Options{})
	if _, ok := s.Displayed(100); ok {
		t.Error("Displayed() ok = true for unseen startup")
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := New(nil, nil, nil, Options{})
	var calls int
	unsubscribe := s.Subscribe(func(Event) { calls++ })

	s.emit(Event{Kind: EventNotification})
	unsubscribe()
	s.emit(Event{Kind: EventNotification})

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

// countFailBackend accepts writes but cannot report tallies
type countFailBackend struct{}

func (countFailBackend) Count(context.Context, int) (models.VoteCount, error) {
	return models.VoteCount{}, errors.New("count unavailable")
}
func (countFailBackend) UserVotes(context.Context, int) ([]models.VoteRecord, error) {
	return nil, nil
}
func (countFailBackend) UpsertVote(context.Context, int, int, models.VoteKind) error { return nil }
func (countFailBackend) DeleteVote(context.Context, int, int) error                 { return nil }

func TestCastVote_VerificationFailureKeepsLocal(t *testing.T) {
	sessions := auth.NewManager(&memStore{})
	if _, err := sessions.Save(context.Background(), "tok", models.User{ID: testUserID}); err != nil {
		t.Fatal(err)
	}
	s := New(nil, countFailBackend{}, sessions, Options{Reconcile: true})
	s.SetTally(4, models.VoteCount{StartupID: 4, Upvotes: 2})

	res, err := s.CastVote(context.Background(), 4, models.DirectionUp)
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if res.Displayed != 3 || res.Drift {
		t.Errorf("got %+v, want 3 without drift", res)
	}
}

func TestCastVote_FailureOnUnseenStartupLeavesNoTally(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.FailWrites(http.StatusInternalServerError)

	if _, err := f.sync.CastVote(context.Background(), 99, models.DirectionUp); !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if _, ok := f.sync.Displayed(99); ok {
		t.Error("Displayed() ok = true after a failed vote on an unseen startup")
	}
	if got := f.sync.Known(); len(got) != 0 {
		t.Errorf("Known() = %v, want empty", got)
	}

	// The next read goes to the server instead of trusting a stale zero
	f.backend.FailWrites(0)
	f.backend.SetTally(99, 6, 0)
	if err := f.sync.RefreshTallies(context.Background(), 99); err != nil {
		t.Fatal(err)
	}
	if got := f.displayed(t, 99); got != 6 {
		t.Errorf("displayed = %d, want 6", got)
	}
}

// press casts a vote in the background and waits until its write reaches
// the held backend
func (f *fixture) press(t *testing.T, startupID int, d models.Direction, held int) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := f.sync.CastVote(context.Background(), startupID, d)
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for f.backend.Held() < held {
		if time.Now().After(deadline) {
			t.Fatalf("write %d never reached the backend", held)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("CastVote did not return")
		return nil
	}
}

func TestCastVote_DoubleClick(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(42, 5, 1)
	f.seed(42)
	f.backend.HoldWrites()

	first := f.press(t, 42, models.DirectionUp, 1)
	if got := f.displayed(t, 42); got != 5 {
		t.Errorf("displayed after first press = %d, want 5", got)
	}
	second := f.press(t, 42, models.DirectionUp, 2)

	// Both optimistic updates applied in order before anything resolved
	if got := f.displayed(t, 42); got != 4 {
		t.Errorf("displayed after second press = %d, want 4", got)
	}
	if got := f.sync.Vote(42); got != models.VoteNone {
		t.Errorf("vote after second press = %s, want none", got)
	}

	f.backend.ReleaseNext()
	if err := wait(t, first); err != nil {
		t.Fatalf("first CastVote() error = %v", err)
	}
	f.backend.ReleaseNext()
	if err := wait(t, second); err != nil {
		t.Fatalf("second CastVote() error = %v", err)
	}

	if got := f.displayed(t, 42); got != 4 {
		t.Errorf("final displayed = %d, want 4", got)
	}
	if diff := cmp.Diff(map[int]models.VoteKind{}, f.sync.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}
	if got := f.backend.UserVote(testUserID, 42); got != models.VoteNone {
		t.Errorf("server vote = %s, want none", got)
	}
	want := []EventKind{EventApplied, EventApplied}
	if diff := cmp.Diff(want, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_DoubleClickFirstFails(t *testing.T) {
	f := newFixture(t, "tok")
	f.backend.SetTally(42, 5, 1)
	f.seed(42)
	f.backend.HoldWrites()

	first := f.press(t, 42, models.DirectionUp, 1)
	second := f.press(t, 42, models.DirectionDown, 2)
	if got := f.displayed(t, 42); got != 3 {
		t.Errorf("displayed after flip = %d, want 3", got)
	}

	f.backend.FailWrites(http.StatusInternalServerError)
	f.backend.ReleaseNext()
	if err := wait(t, first); !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist from first press, got %v", err)
	}
	// The later press still owns the vote
	if got := f.sync.Vote(42); got != models.VoteDown {
		t.Errorf("vote after first failure = %s, want downvote", got)
	}

	f.backend.FailWrites(0)
	f.backend.ReleaseNext()
	if err := wait(t, second); err != nil {
		t.Fatalf("second CastVote() error = %v", err)
	}

	if got := f.displayed(t, 42); got != 3 {
		t.Errorf("final displayed = %d, want 3", got)
	}
	if diff := cmp.Diff(map[int]models.VoteKind{42: models.VoteDown}, f.sync.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}
	if got := f.backend.UserVote(testUserID, 42); got != models.VoteDown {
		t.Errorf("server vote = %s, want downvote", got)
	}
	want := []EventKind{EventApplied, EventApplied, EventReverted, EventNotification, EventReconciled}
	if diff := cmp.Diff(want, f.events.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCastVote_TransportFailureReverts(t *testing.T) {
	t.Run("server unreachable", func(t *testing.T) {
		sessions := auth.NewManager(&memStore{})
		if _, err := sessions.Save(context.Background(), "tok", models.User{ID: testUserID}); err != nil {
			t.Fatal(err)
		}
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client, err := voteclient.New(srv.URL, srv.URL, sessions, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		s := New(nil, client, sessions, Options{Reconcile: true})
		events := &eventLog{}
		defer s.Subscribe(events.record)()
		s.SetTally(8, models.VoteCount{StartupID: 8, Upvotes: 3})

		res, err := s.CastVote(context.Background(), 8, models.DirectionUp)
		if !errors.Is(err, ErrPersist) {
			t.Fatalf("expected ErrPersist, got %v", err)
		}
		want := Result{StartupID: 8, Vote: models.VoteNone, Displayed: 3}
		if diff := cmp.Diff(want, res); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]EventKind{EventApplied, EventReverted, EventNotification}, events.kinds()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
		if _, err := sessions.Current(context.Background()); err != nil {
			t.Errorf("session dropped on a network error: %v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		f := newFixture(t, "tok")
		f.backend.SetTally(8, 3, 0)
		f.seed(8)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := f.sync.CastVote(ctx, 8, models.DirectionDown)
		if !errors.Is(err, ErrPersist) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected ErrPersist wrapping context.Canceled, got %v", err)
		}
		if res.Vote != models.VoteNone || res.Displayed != 3 {
			t.Errorf("got %+v, want no vote showing 3", res)
		}
		if got := f.backend.UserVote(testUserID, 8); got != models.VoteNone {
			t.Errorf("server vote = %s, want none", got)
		}
	})
}

// brokenStore cannot read the session database
type brokenStore struct{ memStore }

func (*brokenStore) Load(context.Context) (auth.Session, error) {
	return auth.Session{}, errors.New("database is locked")
}

func TestCastVote_SessionStoreFailure(t *testing.T) {
	// A nil backend panics if the vote is sent anywhere
	s := New(nil, nil, auth.NewManager(&brokenStore{}), Options{})
	events := &eventLog{}
	defer s.Subscribe(events.record)()
	s.SetTally(1, models.VoteCount{StartupID: 1, Upvotes: 2})

	_, err := s.CastVote(context.Background(), 1, models.DirectionUp)
	if err == nil {
		t.Fatal("expected error")
	}
	if ErrorIsAuth(err) || errors.Is(err, ErrUnauthenticated) {
		t.Errorf("store failure reported as a login problem: %v", err)
	}
	if len(events.kinds()) != 0 {
		t.Errorf("expected no events, got %v", events.kinds())
	}
	if v, _ := s.Displayed(1); v != 2 {
		t.Errorf("displayed = %d, want 2 untouched", v)
	}
}
