// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/handlers"
	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/voteclient"
	"github.com/danielhkuo/startup-votes/votesync"
)

// Deps are the long-lived services the handlers share.
type Deps struct {
	Config   cliparse.Config
	Client   *voteclient.Client
	Sessions *auth.Manager
	Sync     *votesync.Synchronizer
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(d.Client, d.Sessions, d.Sync, d.Config)
	votesHandler := handlers.NewVotesHandler(d.Sync, d.Sessions, d.Config)
	startupsHandler := handlers.NewStartupsHandler(d.Client, d.Sync, d.Sessions, d.Config)
	commentsHandler := handlers.NewCommentsHandler(d.Client, d.Sessions, d.Sync, d.Config)
	eventsHandler := handlers.NewEventsHandler(d.Sync, d.Config)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session
	mux.HandleFunc("POST /session/login", middleware.WithLogging(sessionHandler.Login))
	mux.HandleFunc("POST /session/logout", middleware.WithLogging(sessionHandler.Logout))
	mux.HandleFunc("GET /session", middleware.WithLogging(sessionHandler.Get))

	// Startup directory
	mux.HandleFunc("GET /startups", middleware.WithLogging(startupsHandler.List))
	mux.HandleFunc("GET /startups/{id}", middleware.WithLogging(startupsHandler.Get))

	// Votes
	mux.HandleFunc("GET /votes", middleware.WithLogging(votesHandler.State))
	mux.HandleFunc("GET /startups/{id}/vote", middleware.WithLogging(votesHandler.Get))
	mux.HandleFunc("POST /startups/{id}/vote", middleware.WithLogging(votesHandler.Cast))
	mux.HandleFunc("POST /startups/tallies", middleware.WithLogging(votesHandler.Tallies))

	// Comments
	mux.HandleFunc("GET /startups/{id}/comments", middleware.WithLogging(commentsHandler.List))
	mux.HandleFunc("POST /startups/{id}/comments", middleware.WithLogging(commentsHandler.Create))
	mux.HandleFunc("PUT /comments/{id}", middleware.WithLogging(commentsHandler.Update))
	mux.HandleFunc("DELETE /comments/{id}", middleware.WithLogging(commentsHandler.Delete))

	// Event stream for the page
	mux.HandleFunc("GET /events", middleware.WithLogging(eventsHandler.Stream))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("startup-votes API v1"))
	})

	return middleware.CORS(d.Config.CORSOrigins)(mux)
}
