// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/startup-votes/middleware"
	"github.com/danielhkuo/startup-votes/models"
)

// RecordedRequest is one call received by the fake backend
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
}

type fakeAccount struct {
	password string
	token    string
	user     models.User
}

// FakeBackend is an in-memory stand-in for the vote, comment and auth services.
// Tallies are the baseline from other users plus whatever votes were cast here.
type FakeBackend struct {
	Server *httptest.Server

	mu          sync.Mutex
	baseline    map[int]models.VoteCount
	votes       map[int]map[int]models.VoteKind // user -> startup -> kind
	startups    []models.Startup
	comments    []models.Comment
	nextComment int
	accounts    map[string]fakeAccount
	token       string
	writeStatus int
	listStatus  int
	holding     bool
	held        []chan struct{}
	requests    []RecordedRequest
}

// NewFakeBackend starts the fake services; they stop when the test ends
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		baseline:    make(map[int]models.VoteCount),
		votes:       make(map[int]map[int]models.VoteKind),
		accounts:    make(map[string]fakeAccount),
		nextComment: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /votes/count/{id}", f.count)
	mux.HandleFunc("GET /votes/user/{userId}", f.userVotes)
	mux.HandleFunc("POST /votes/{$}", f.upsertVote)
	mux.HandleFunc("DELETE /votes/{$}", f.deleteVote)
	mux.HandleFunc("GET /startups/{$}", f.listStartups)
	mux.HandleFunc("GET /startups/{id}", f.getStartup)
	mux.HandleFunc("GET /comments/{$}", f.listComments)
	mux.HandleFunc("POST /comments/{$}", f.createComment)
	mux.HandleFunc("PUT /comments/{id}", f.updateComment)
	mux.HandleFunc("DELETE /comments/{id}", f.deleteComment)
	mux.HandleFunc("POST /api/v1/auth/login", f.login)

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		f.Release()
		f.Server.Close()
	})
	return f
}

// URL is the base URL of the fake services
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// SetTally sets the votes cast by everyone else on a startup
func (f *FakeBackend) SetTally(startupID, upvotes, downvotes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseline[startupID] = models.VoteCount{StartupID: startupID, Upvotes: upvotes, Downvotes: downvotes}
}

// AddStartup lists a startup in the directory, in insertion order
func (f *FakeBackend) AddStartup(s models.Startup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startups = append(f.startups, s)
}

// SetUserVote records a vote the user cast in an earlier visit
func (f *FakeBackend) SetUserVote(userID, startupID int, kind models.VoteKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votes[userID] == nil {
		f.votes[userID] = make(map[int]models.VoteKind)
	}
	f.votes[userID][startupID] = kind
}

// UserVote returns what the server has stored for the user
func (f *FakeBackend) UserVote(userID, startupID int) models.VoteKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.votes[userID][startupID]
}

// AddAccount registers credentials accepted by the login endpoint
func (f *FakeBackend) AddAccount(email, password, token string, user models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = fakeAccount{password: password, token: token, user: user}
}

// RequireToken makes every vote and comment endpoint demand this bearer token
func (f *FakeBackend) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// FailWrites makes vote upserts and deletes answer with status (0 to stop failing)
func (f *FakeBackend) FailWrites(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeStatus = status
}

// FailUserVotes makes GET /votes/user answer with status (0 to stop failing)
func (f *FakeBackend) FailUserVotes(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listStatus = status
}

// HoldWrites blocks vote writes until they are released
func (f *FakeBackend) HoldWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holding = true
}

// Held is the number of vote writes waiting to be released
func (f *FakeBackend) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

// ReleaseNext lets the oldest held write through and keeps holding the rest
func (f *FakeBackend) ReleaseNext() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.held) == 0 {
		return false
	}
	close(f.held[0])
	f.held = f.held[1:]
	return true
}

// Release unblocks every held write and stops holding
func (f *FakeBackend) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.held {
		close(ch)
	}
	f.held = nil
	f.holding = false
}

// Requests returns a copy of every call received so far
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Count computes the tally the server would report for a startup
func (f *FakeBackend) Count(startupID int) models.VoteCount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(startupID)
}

func (f *FakeBackend) countLocked(startupID int) models.VoteCount {
	c := f.baseline[startupID]
	c.StartupID = startupID
	for _, byStartup := range f.votes {
		switch byStartup[startupID] {
		case models.VoteUp:
			c.Upvotes++
		case models.VoteDown:
			c.Downvotes++
		}
	}
	return c
}

func (f *FakeBackend) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	token := f.token
	f.mu.Unlock()
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid token")
		return false
	}
	return true
}

// writeGate waits while writes are held, then applies any injected failure
func (f *FakeBackend) writeGate(w http.ResponseWriter) bool {
	f.mu.Lock()
	var wait chan struct{}
	if f.holding {
		wait = make(chan struct{})
		f.held = append(f.held, wait)
	}
	f.mu.Unlock()
	if wait != nil {
		<-wait
	}

	f.mu.Lock()
	status := f.writeStatus
	f.mu.Unlock()
	if status != 0 {
		middleware.ErrorResponse(w, status, "injected failure")
		return false
	}
	return true
}

func (f *FakeBackend) count(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "invalid startup id")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, f.Count(id))
}

func (f *FakeBackend) userVotes(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "invalid user id")
		return
	}
	if !f.authorized(w, r) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listStatus != 0 {
		middleware.ErrorResponse(w, f.listStatus, "injected failure")
		return
	}
	records := []models.VoteRecord{}
	for startupID, kind := range f.votes[userID] {
		records = append(records, models.VoteRecord{UserID: userID, StartupID: startupID, VoteType: kind})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartupID < records[j].StartupID })
	middleware.JSONResponse(w, http.StatusOK, records)
}

func (f *FakeBackend) upsertVote(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) || !f.writeGate(w) {
		return
	}
	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "user_id required")
		return
	}
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || !req.VoteType.Valid() {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "invalid vote")
		return
	}

	f.mu.Lock()
	if f.votes[userID] == nil {
		f.votes[userID] = make(map[int]models.VoteKind)
	}
	_, existed := f.votes[userID][req.StartupID]
	f.votes[userID][req.StartupID] = req.VoteType
	f.mu.Unlock()

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	middleware.JSONResponse(w, status, models.VoteRecord{
		UserID:      userID,
		StartupID:   req.StartupID,
		VoteType:    req.VoteType,
		CreatedDate: time.Now(),
	})
}

func (f *FakeBackend) deleteVote(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) || !f.writeGate(w) {
		return
	}
	userID, err1 := strconv.Atoi(r.URL.Query().Get("user_id"))
	startupID, err2 := strconv.Atoi(r.URL.Query().Get("startup_id"))
	if err1 != nil || err2 != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "user_id and startup_id required")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.votes[userID][startupID]; !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vote not found")
		return
	}
	delete(f.votes[userID], startupID)
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeBackend) listStartups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 100
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.Startup{}, f.startups...)
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit < len(out) {
		out = out[:limit]
	}
	middleware.JSONResponse(w, http.StatusOK, out)
}

func (f *FakeBackend) getStartup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "invalid startup id")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.startups {
		if s.StartupID == id {
			middleware.JSONResponse(w, http.StatusOK, s)
			return
		}
	}
	middleware.ErrorResponse(w, http.StatusNotFound, "Startup not found")
}

func (f *FakeBackend) listComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startupID, _ := strconv.Atoi(q.Get("startup_id"))
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 50
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Comment{}
	for _, c := range f.comments {
		if startupID == 0 || c.StartupID == startupID {
			out = append(out, c)
		}
	}
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit < len(out) {
		out = out[:limit]
	}
	middleware.JSONResponse(w, http.StatusOK, out)
}

func (f *FakeBackend) createComment(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "user_id required")
		return
	}
	var req models.CreateCommentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Content == "" {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "content required")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c := models.Comment{
		CommentID:   f.nextComment,
		StartupID:   req.StartupID,
		UserID:      userID,
		UserName:    "user " + strconv.Itoa(userID),
		Content:     req.Content,
		CreatedDate: time.Now().Add(-2 * time.Hour),
	}
	f.nextComment++
	f.comments = append(f.comments, c)
	middleware.JSONResponse(w, http.StatusCreated, c)
}

func (f *FakeBackend) findComment(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	userID, err2 := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil || err2 != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "invalid ids")
		return 0, false
	}
	for i, c := range f.comments {
		if c.CommentID != id {
			continue
		}
		if c.UserID != userID {
			middleware.ErrorResponse(w, http.StatusForbidden, "not the author")
			return 0, false
		}
		return i, true
	}
	middleware.ErrorResponse(w, http.StatusNotFound, "Comment not found")
	return 0, false
}

func (f *FakeBackend) updateComment(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	var req models.UpdateCommentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Content == "" {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "content required")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.findComment(w, r)
	if !ok {
		return
	}
	now := time.Now()
	f.comments[i].Content = req.Content
	f.comments[i].ModifiedDate = &now
	middleware.JSONResponse(w, http.StatusOK, f.comments[i])
}

func (f *FakeBackend) deleteComment(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.findComment(w, r)
	if !ok {
		return
	}
	f.comments = append(f.comments[:i], f.comments[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	acct, ok := f.accounts[req.Email]
	f.mu.Unlock()
	if !ok || acct.password != req.Password {
		// Bad credentials come back as a plain-text 403
		http.Error(w, "Invalid credentials", http.StatusForbidden)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.LoginResponse{Token: acct.token, User: acct.user})
}
