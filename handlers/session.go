// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/voteclient"
	"github.com/danielhkuo/startup-votes/votesync"
)

type SessionHandler struct {
	client   *voteclient.Client
	sessions *auth.Manager
	sync     *votesync.Synchronizer
	cfg      cliparse.Config
}

func NewSessionHandler(client *voteclient.Client, sessions *auth.Manager, sync *votesync.Synchronizer, cfg cliparse.Config) *SessionHandler {
	return &SessionHandler{client: client, sessions: sessions, sync: sync, cfg: cfg}
}

// Login handles POST /session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := h.client.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, voteclient.ErrUnauthorized) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		slog.Error("login failed", "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Auth service unavailable")
		return
	}

	sess, err := h.sessions.Save(r.Context(), resp.Token, resp.User)
	if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrInvalidToken) {
		middleware.ErrorResponse(w, http.StatusBadGateway, "Auth service issued an unusable token")
		return
	}
	if err != nil {
		slog.Error("failed to store session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to store session")
		return
	}

	// Buttons render unhighlighted if this fails; the login itself stands
	if err := h.sync.LoadVotesForUser(r.Context(), sess.User.ID); err != nil {
		slog.Warn("votes not loaded after login", "user_id", sess.User.ID, "error", err)
	}

	slog.Info("user logged in", "user_id", sess.User.ID)
	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{
		Authenticated: true,
		User:          &sess.User,
	})
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sync.EndSession(r.Context(), "Logged out")
	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{
		Authenticated: false,
		LoginURL:      h.cfg.LoginURL,
	})
}

// Get handles GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Current(r.Context())
	if votesync.ErrorIsAuth(err) {
		middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{
			Authenticated: false,
			LoginURL:      h.cfg.LoginURL,
		})
		return
	}
	if err != nil {
		slog.Error("failed to read session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read session")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{
		Authenticated: true,
		User:          &sess.User,
	})
}

// pathID reads a positive integer path parameter
func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
