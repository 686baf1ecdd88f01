// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the startup-votes page adapter.

# Route Registration

NewRouter wires every handler and wraps the mux in CORS:

	handler := router.NewRouter(router.Deps{
		Config:   cfg,
		Client:   client,
		Sessions: sessions,
		Sync:     sync,
	})

# Endpoints

Health:

	GET /health

Session:

	POST /session/login  - Log in and load the user's votes
	POST /session/logout - Clear session and votes
	GET  /session        - Current user or login_url

Startups:

	GET  /startups            - Listing (q, sort, skip, limit)
	GET  /startups/{id}       - One startup with its vote view

Votes:

	GET  /votes               - All of the user's votes
	GET  /startups/{id}/vote  - Button state for one startup
	POST /startups/{id}/vote  - Press up or down
	POST /startups/tallies    - Refresh counts for a listing

Comments:

	GET    /startups/{id}/comments - List (skip, limit)
	POST   /startups/{id}/comments - Post
	PUT    /comments/{id}          - Edit own comment
	DELETE /comments/{id}          - Delete own comment

Events:

	GET /events - Websocket stream
*/
package router
