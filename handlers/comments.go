// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/models"
	"github.com/danielhkuo/startup-votes/voteclient"
	"github.com/danielhkuo/startup-votes/votesync"
)

type CommentsHandler struct {
	client   *voteclient.Client
	sessions *auth.Manager
	sync     *votesync.Synchronizer
	cfg      cliparse.Config
	now      func() time.Time
}

func NewCommentsHandler(client *voteclient.Client, sessions *auth.Manager, sync *votesync.Synchronizer, cfg cliparse.Config) *CommentsHandler {
	return &CommentsHandler{client: client, sessions: sessions, sync: sync, cfg: cfg, now: time.Now}
}

func (h *CommentsHandler) toView(c models.Comment, viewerID int) models.CommentView {
	return models.CommentView{
		Comment: c,
		Posted:  humanize.RelTime(c.CreatedDate, h.now(), "ago", "from now"),
		IsOwner: viewerID != 0 && c.UserID == viewerID,
	}
}

// session returns the current user or answers 401 itself
func (h *CommentsHandler) session(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := h.sessions.Current(r.Context())
	if votesync.ErrorIsAuth(err) {
		middleware.LoginRequired(w, h.cfg.LoginURL, "Please log in to comment")
		return auth.Session{}, false
	}
	if err != nil {
		slog.Error("failed to read session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read session")
		return auth.Session{}, false
	}
	return sess, true
}

// backendError maps a comment service failure to a response. A 403 means
// the comment belongs to someone else; a 401 ends the session.
func (h *CommentsHandler) backendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, voteclient.ErrForbidden):
		middleware.ErrorResponse(w, http.StatusForbidden, "You can only change your own comments")
	case errors.Is(err, voteclient.ErrUnauthorized):
		h.sync.EndSession(r.Context(), votesync.MsgSessionEnded)
		middleware.LoginRequired(w, h.cfg.LoginURL, votesync.MsgSessionEnded)
	default:
		var se *voteclient.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			middleware.ErrorResponse(w, http.StatusNotFound, "Comment not found")
			return
		}
		slog.Error("comment service failed", "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Comment service unavailable")
	}
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// List handles GET /startups/{id}/comments
func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	startupID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
		return
	}
	skip, okSkip := queryInt(r, "skip", 0)
	limit, okLimit := queryInt(r, "limit", voteclient.DefaultCommentLimit)
	if !okSkip || !okLimit || skip < 0 || limit < 1 || limit > voteclient.MaxCommentLimit {
		middleware.ErrorResponse(w, http.StatusBadRequest, "skip must be >= 0 and limit between 1 and 100")
		return
	}

	comments, err := h.client.Comments(r.Context(), startupID, skip, limit)
	if err != nil {
		h.backendError(w, r, err)
		return
	}

	viewerID := 0
	if sess, err := h.sessions.Current(r.Context()); err == nil {
		viewerID = sess.User.ID
	}
	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, h.toView(c, viewerID))
	}
	middleware.JSONResponse(w, http.StatusOK, views)
}

// Create handles POST /startups/{id}/comments
func (h *CommentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	startupID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid startup id")
		return
	}
	var req models.UpdateCommentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	c, err := h.client.CreateComment(r.Context(), sess.User.ID, startupID, content)
	if err != nil {
		h.backendError(w, r, err)
		return
	}

	slog.Info("comment posted", "comment_id", c.CommentID, "startup_id", startupID, "user_id", sess.User.ID)
	middleware.JSONResponse(w, http.StatusCreated, h.toView(c, sess.User.ID))
}

// Update handles PUT /comments/{id}
func (h *CommentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid comment id")
		return
	}
	var req models.UpdateCommentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	c, err := h.client.UpdateComment(r.Context(), sess.User.ID, commentID, content)
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, h.toView(c, sess.User.ID))
}

// Delete handles DELETE /comments/{id}
func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(r, "id")
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid comment id")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.client.DeleteComment(r.Context(), sess.User.ID, commentID); err != nil {
		h.backendError(w, r, err)
		return
	}
	slog.Info("comment deleted", "comment_id", commentID, "user_id", sess.User.ID)
	w.WriteHeader(http.StatusNoContent)
}
