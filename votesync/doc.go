// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package votesync keeps a user's votes and the displayed tallies in step
with the vote service.

# Voting

CastVote applies a button press locally before anything is sent:

	res, err := s.CastVote(ctx, 42, models.DirectionUp)

Pressing the same direction twice retracts the vote. Pressing the other
direction flips it and moves the tally by two. The change is written to
the service (POST for a new or changed vote, DELETE for a retraction). If
the write fails the local change is rolled back and ErrPersist returned.
A 401 or 403 clears the session and returns ErrUnauthenticated.

Presses on the same startup may overlap. Each applies on top of the
previous one, and a failed earlier press removes only its own delta: the
vote stays as the latest press left it.

# Tallies

Each startup's displayed count is the last value confirmed by the server
plus the deltas of votes still in flight. After a successful write the
server count is read again (when Options.Reconcile is set) and wins if it
disagrees; Result.Drift reports that.

# Events

Subscribe delivers Event values for every visible change: applied,
reverted, reconciled, loaded, notification and login_required. Listeners
run on the caller's goroutine after the state lock is released.
*/
package votesync
