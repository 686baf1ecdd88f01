// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP and websocket endpoints used by the
startup directory pages.

# Handler Types

Each handler is a struct built from the shared services:

  - SessionHandler: login against the auth service, logout, session info
  - StartupsHandler: the directory listing with search and sort
  - VotesHandler: vote buttons, casting votes, refreshing tallies
  - CommentsHandler: listing and editing comments
  - EventsHandler: websocket stream of synchronizer events

	votesHandler := handlers.NewVotesHandler(sync, sessions, cfg)

# Listing

	GET /startups?q=robot&sort=most-voted

Returns one page of startups, each with its vote view. Tallies are read
from the vote service for the whole page before sorting, so most-voted
reflects the counts the user sees, including votes still in flight.

# Voting

	POST /startups/{id}/vote  {"direction": "up"}

The answer is the startup's vote view: the user's vote, the displayed
count, which button is highlighted and the status text. A missing session
answers 401 with login_url; a failed write answers 502 after the vote has
been rolled back.

# Comments

Comments carry a relative "posted" time (for example "3 hours ago") and
is_owner for the logged-in user. A 403 from the comment service means the
comment belongs to someone else and leaves the session alone; a 401 ends it.

# Events

	GET /events

Upgrades to a websocket and writes one JSON object per synchronizer event.
Slow readers lose events rather than block voting.
*/
package handlers
