// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main runs the startup-votes page adapter.

The startup directory's pages let a logged-in user vote each startup up or
down and comment on it. This server sits next to those pages: it keeps the
session, applies votes optimistically so the buttons and counts change at
once, writes them to the vote service and corrects the counts when the
service disagrees. Pages follow along over a websocket at /events.

# Starting the Server

	go run . -data-api http://localhost:8000 -auth-api http://localhost:8080

Or with environment variables (a .env file is read when present):

	DATA_API_URL=http://localhost:8000 AUTH_API_URL=http://localhost:8080 go run .

# Configuration

  - PORT (-p): server port (default 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default sqlite)
  - DATABASE_URL (-d): session store DSN (default startup-votes.db)
  - DATA_API_URL (-data-api): vote and comment service
  - AUTH_API_URL (-auth-api): auth service
  - LOGIN_URL (-login-url): where pages go when a login is needed
  - CORS_ORIGINS (-cors): comma-separated allowed origins (default *)
  - REQUEST_TIMEOUT (-timeout): backend call timeout (default 10s)
  - VERIFY_SYNC (-verify-sync): re-read tallies after each vote (default true)
  - LOG_LEVEL (-log-level): debug, info, warn or error

# Architecture

  - votesync: optimistic vote state, tallies and events
  - voteclient: REST client for the vote, comment and auth services
  - auth: stored session and token expiry
  - handlers: HTTP and websocket endpoints for the pages
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: request/response types
  - db: session store connection and schema
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
