// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/voteclient"
	"github.com/danielhkuo/startup-votes/votesync"
)

// Listing orders accepted by GET /startups
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortMostVoted = "most-voted"
)

type StartupsHandler struct {
	client *voteclient.Client
	sync   *votesync.Synchronizer
	votes  *VotesHandler
}

func NewStartupsHandler(client *voteclient.Client, sync *votesync.Synchronizer, sessions *auth.Manager, cfg cliparse.Config) *StartupsHandler {
	return &StartupsHandler{
		client: client,
		sync:   sync,
		votes:  NewVotesHandler(sync, sessions, cfg),
	}
}

// matches is a case-insensitive substring search over name, description and category
func matches(s models.Startup, query string) bool {
	if query == "" {
		return true
	}
	for _, field := range []string{s.Name, s.Description, s.CategoryLabel()} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// sortStartups orders views in place; ties keep the service's order
func sortStartups(views []models.StartupView, order string) {
	created := func(v models.StartupView) int64 {
		if v.CreatedDate == nil {
			return 0
		}
		return v.CreatedDate.UnixNano()
	}
	switch order {
	case SortNewest:
		sort.SliceStable(views, func(i, j int) bool { return created(views[i]) > created(views[j]) })
	case SortOldest:
		sort.SliceStable(views, func(i, j int) bool { return created(views[i]) < created(views[j]) })
	case SortMostVoted:
		sort.SliceStable(views, func(i, j int) bool { return views[i].Votes.Displayed > views[j].Votes.Displayed })
	}
}

// List handles GET /startups?q=&sort=&skip=&limit=
func (h *StartupsHandler) List(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("sort")
	if order == "" {
		order = SortNewest
	}
	if order != SortNewest && order != SortOldest && order != SortMostVoted {
		middleware.ErrorResponse(w, http.StatusBadRequest, "sort must be newest, oldest or most-voted")
		return
	}
	skip, okSkip := queryInt(r, "skip", 0)
	limit, okLimit := queryInt(r, "limit", voteclient.DefaultStartupLimit)
	if !okSkip || !okLimit || skip < 0 || limit < 1 || limit > voteclient.MaxStartupLimit {
		middleware.ErrorResponse(w, http.StatusBadRequest, "skip must be >= 0 and limit between 1 and 200")
		return
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	startups, err := h.client.Startups(r.Context(), skip, limit)
	if err != nil {
		slog.Error("startup service failed", "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Failed to load startups")
		return
	}

	ids := make([]int, 0, len(startups))
	for _, s := range startups {
		ids = append(ids, s.StartupID)
	}
	// A missing tally shows as 0; the listing itself still renders
	if err := h.sync.RefreshTallies(r.Context(), ids...); err != nil {
		slog.Warn("some tallies could not be loaded", "count", len(ids), "error", err)
	}

	loggedIn := h.votes.loggedIn(r)
	views := make([]models.StartupView, 0, len(startups))
	for _, s := range startups {
		if !matches(s, query) {
			continue
		}
		views = append(views, models.StartupView{
			Startup:  s,
			Category: s.CategoryLabel(),
			Votes:    h.votes.view(s.StartupID, loggedIn),
		})
	}
	sortStartups(views, order)

	slog.Debug("startups listed", "total", len(startups), "shown", len(views), "query", query, "sort", order)
	middleware.JSONResponse(w, http.StatusOK, views)
}

// Get handles GET /startups/{id}
func (h *StartupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	startupID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
		return
	}

	s, err := h.client.Startup(r.Context(), startupID)
	if err != nil {
		var se *voteclient.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			middleware.ErrorResponse(w, http.StatusNotFound, "Startup not found")
			return
		}
		slog.Error("startup service failed", "startup_id", startupID, "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Failed to load startup")
		return
	}

	h.votes.ensureTally(r, startupID)
	middleware.JSONResponse(w, http.StatusOK, models.StartupView{
		Startup:  s,
		Category: s.CategoryLabel(),
		Votes:    h.votes.view(startupID, h.votes.loggedIn(r)),
	})
}
