// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/votesync"
)

// MaxTallyBatch caps the startups refreshed by one request
const MaxTallyBatch = 200

// Status texts shown under the vote buttons
const (
	StatusVotedUp   = "You voted this up"
	StatusVotedDown = "You voted this down"
	StatusLogIn     = "Log in to vote"
	StatusVote      = "Vote for this startup"
)

type VotesHandler struct {
	sync     *votesync.Synchronizer
	sessions *auth.Manager
	cfg      cliparse.Config
}

func NewVotesHandler(sync *votesync.Synchronizer, sessions *auth.Manager, cfg cliparse.Config) *VotesHandler {
	return &VotesHandler{sync: sync, sessions: sessions, cfg: cfg}
}

func voteStatus(loggedIn bool, kind models.VoteKind) string {
	switch {
	case kind == models.VoteUp:
		return StatusVotedUp
	case kind == models.VoteDown:
		return StatusVotedDown
	case !loggedIn:
		return StatusLogIn
	default:
		return StatusVote
	}
}

func (h *VotesHandler) loggedIn(r *http.Request) bool {
	_, err := h.sessions.Current(r.Context())
	return err == nil
}

func (h *VotesHandler) view(startupID int, loggedIn bool) models.VoteView {
	kind := h.sync.Vote(startupID)
	displayed, _ := h.sync.Displayed(startupID)
	return models.VoteView{
		StartupID: startupID,
		Vote:      kind.String(),
		Displayed: displayed,
		Buttons:   h.sync.RenderVoteButtons(startupID),
		Status:    voteStatus(loggedIn, kind),
	}
}

// ensureTally fetches the server tally the first time a startup is shown
func (h *VotesHandler) ensureTally(r *http.Request, startupID int) {
	if _, ok := h.sync.Displayed(startupID); ok {
		return
	}
	if err := h.sync.RefreshTallies(r.Context(), startupID); err != nil {
		slog.Warn("failed to fetch tally", "startup_id", startupID, "error", err)
	}
}

// State handles GET /votes
func (h *VotesHandler) State(w http.ResponseWriter, r *http.Request) {
	loggedIn := h.loggedIn(r)
	snapshot := h.sync.Snapshot()

	ids := make([]int, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	views := make([]models.VoteView, 0, len(ids))
	for _, id := range ids {
		views = append(views, h.view(id, loggedIn))
	}
	middleware.JSONResponse(w, http.StatusOK, models.VoteStateResponse{
		Loaded: h.sync.Loaded(),
		Votes:  views,
	})
}

// Get handles GET /startups/{id}/vote
func (h *VotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	startupID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
		return
	}
	h.ensureTally(r, startupID)
	middleware.JSONResponse(w, http.StatusOK, h.view(startupID, h.loggedIn(r)))
}

// Cast handles POST /startups/{id}/vote
func (h *VotesHandler) Cast(w http.ResponseWriter, r *http.Request) {
	startupID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !req.Direction.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, votesync.ErrInvalidDirection.Error())
		return
	}

	if h.loggedIn(r) {
		h.ensureTally(r, startupID)
	}

	_, err := h.sync.CastVote(r.Context(), startupID, req.Direction)
	switch {
	case err == nil:
		middleware.JSONResponse(w, http.StatusOK, h.view(startupID, true))
	case errors.Is(err, votesync.ErrInvalidDirection):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, votesync.ErrPersist):
		middleware.ErrorResponse(w, http.StatusBadGateway, votesync.MsgVoteFailed)
	case errors.Is(err, votesync.ErrUnauthenticated) && errors.Is(err, auth.ErrNoSession):
		middleware.LoginRequired(w, h.cfg.LoginURL, votesync.MsgLoginToVote)
	case votesync.ErrorIsAuth(err):
		middleware.LoginRequired(w, h.cfg.LoginURL, votesync.MsgSessionEnded)
	default:
		slog.Error("vote failed", "startup_id", startupID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
	}
}

// Tallies handles POST /startups/tallies
func (h *VotesHandler) Tallies(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTalliesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.StartupIDs) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "startup_ids is required")
		return
	}
	if len(req.StartupIDs) > MaxTallyBatch {
		middleware.ErrorResponse(w, http.StatusBadRequest, "too many startup_ids")
		return
	}
	for _, id := range req.StartupIDs {
		if id <= 0 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
			return
		}
	}

	if err := h.sync.RefreshTallies(r.Context(), req.StartupIDs...); err != nil {
		slog.Warn("tally refresh failed", "count", len(req.StartupIDs), "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Failed to load vote counts")
		return
	}

	loggedIn := h.loggedIn(r)
	views := make([]models.VoteView, 0, len(req.StartupIDs))
	for _, id := range req.StartupIDs {
		views = append(views, h.view(id, loggedIn))
	}
	middleware.JSONResponse(w, http.StatusOK, models.VoteStateResponse{
		Loaded: h.sync.Loaded(),
		Votes:  views,
	})
}
