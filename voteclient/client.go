// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/startup-votes/models"
)

var (
	// ErrUnauthorized is returned for 401 and 403 answers.
	ErrUnauthorized = errors.New("backend rejected credentials")
	// ErrForbidden narrows ErrUnauthorized to 403 answers.
	ErrForbidden = fmt.Errorf("%w: forbidden", ErrUnauthorized)
)

// Listing bounds accepted by the data service.
const (
	DefaultCommentLimit = 50
	MaxCommentLimit     = 100
	DefaultStartupLimit = 50
	MaxStartupLimit     = 200
)

// StatusError is any other non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the vote/comment service and the auth service.
type Client struct {
	dataURL *url.URL
	authURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

// New builds a client. tokens may be nil, in which case no Authorization
// header is sent.
func New(dataAPI, authAPI string, tokens TokenSource, timeout time.Duration) (*Client, error) {
	dataURL, err := url.Parse(strings.TrimRight(dataAPI, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid data API URL: %w", err)
	}
	authURL, err := url.Parse(strings.TrimRight(authAPI, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid auth API URL: %w", err)
	}
	for _, u := range []*url.URL{dataURL, authURL} {
		if u.Path == "" {
			u.Path = "/"
		}
	}
	return &Client{
		dataURL: dataURL,
		authURL: authURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}, nil
}

// Count handles GET /votes/count/{id}
func (c *Client) Count(ctx context.Context, startupID int) (models.VoteCount, error) {
	var out models.VoteCount
	u := c.dataURL.JoinPath("votes", "count", strconv.Itoa(startupID))
	if err := c.do(ctx, http.MethodGet, u, false, nil, &out); err != nil {
		return models.VoteCount{}, err
	}
	return out, nil
}

// UserVotes handles GET /votes/user/{userId}
func (c *Client) UserVotes(ctx context.Context, userID int) ([]models.VoteRecord, error) {
	var out []models.VoteRecord
	u := c.dataURL.JoinPath("votes", "user", strconv.Itoa(userID))
	if err := c.do(ctx, http.MethodGet, u, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertVote handles POST /votes/?user_id={id}
func (c *Client) UpsertVote(ctx context.Context, userID, startupID int, kind models.VoteKind) error {
	if !kind.Valid() {
		return fmt.Errorf("cannot upsert vote kind %q", kind)
	}
	u := withQuery(c.dataURL.JoinPath("votes/"), url.Values{"user_id": {strconv.Itoa(userID)}})
	body := models.VoteRequest{StartupID: startupID, VoteType: kind}
	return c.do(ctx, http.MethodPost, u, true, body, nil)
}

// DeleteVote handles DELETE /votes/?user_id={id}&startup_id={id}
func (c *Client) DeleteVote(ctx context.Context, userID, startupID int) error {
	u := withQuery(c.dataURL.JoinPath("votes/"), url.Values{
		"user_id":    {strconv.Itoa(userID)},
		"startup_id": {strconv.Itoa(startupID)},
	})
	return c.do(ctx, http.MethodDelete, u, true, nil, nil)
}

// Startups handles GET /startups/?skip=&limit=
func (c *Client) Startups(ctx context.Context, skip, limit int) ([]models.Startup, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultStartupLimit
	}
	if limit > MaxStartupLimit {
		limit = MaxStartupLimit
	}
	u := withQuery(c.dataURL.JoinPath("startups/"), url.Values{
		"skip":  {strconv.Itoa(skip)},
		"limit": {strconv.Itoa(limit)},
	})
	var out []models.Startup
	if err := c.do(ctx, http.MethodGet, u, false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Startup handles GET /startups/{id}
func (c *Client) Startup(ctx context.Context, startupID int) (models.Startup, error) {
	var out models.Startup
	u := c.dataURL.JoinPath("startups", strconv.Itoa(startupID))
	if err := c.do(ctx, http.MethodGet, u, false, nil, &out); err != nil {
		return models.Startup{}, err
	}
	return out, nil
}

// Comments handles GET /comments/?startup_id=&skip=&limit=
func (c *Client) Comments(ctx context.Context, startupID, skip, limit int) ([]models.Comment, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	if limit > MaxCommentLimit {
		limit = MaxCommentLimit
	}
	u := withQuery(c.dataURL.JoinPath("comments/"), url.Values{
		"startup_id": {strconv.Itoa(startupID)},
		"skip":       {strconv.Itoa(skip)},
		"limit":      {strconv.Itoa(limit)},
	})
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, u, false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment handles POST /comments/?user_id={id}
func (c *Client) CreateComment(ctx context.Context, userID, startupID int, content string) (models.Comment, error) {
	u := withQuery(c.dataURL.JoinPath("comments/"), url.Values{"user_id": {strconv.Itoa(userID)}})
	var out models.Comment
	body := models.CreateCommentRequest{Content: content, StartupID: startupID}
	if err := c.do(ctx, http.MethodPost, u, true, body, &out); err != nil {
		return models.Comment{}, err
	}
	return out, nil
}

// UpdateComment handles PUT /comments/{id}?user_id={id}
func (c *Client) UpdateComment(ctx context.Context, userID, commentID int, content string) (models.Comment, error) {
	u := withQuery(c.dataURL.JoinPath("comments", strconv.Itoa(commentID)), url.Values{"user_id": {strconv.Itoa(userID)}})
	var out models.Comment
	if err := c.do(ctx, http.MethodPut, u, true, models.UpdateCommentRequest{Content: content}, &out); err != nil {
		return models.Comment{}, err
	}
	return out, nil
}

// DeleteComment handles DELETE /comments/{id}?user_id={id}
func (c *Client) DeleteComment(ctx context.Context, userID, commentID int) error {
	u := withQuery(c.dataURL.JoinPath("comments", strconv.Itoa(commentID)), url.Values{"user_id": {strconv.Itoa(userID)}})
	return c.do(ctx, http.MethodDelete, u, true, nil, nil)
}

// Login handles POST /api/v1/auth/login on the auth service.
// Bad credentials surface as ErrUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	var raw struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	u := c.authURL.JoinPath("api", "v1", "auth", "login")
	if err := c.do(ctx, http.MethodPost, u, false, models.LoginRequest{Email: email, Password: password}, &raw); err != nil {
		return models.LoginResponse{}, err
	}
	if raw.Token == "" {
		return models.LoginResponse{}, errors.New("login response carried no token")
	}

	resp := models.LoginResponse{Token: raw.Token, User: models.User{Email: email}}
	if len(raw.User) > 0 {
		if err := json.Unmarshal(raw.User, &resp.User); err != nil {
			return models.LoginResponse{}, fmt.Errorf("failed to decode login user: %w", err)
		}
		// Some auth builds send user_id instead of id
		if resp.User.ID == 0 {
			var alt struct {
				UserID int `json:"user_id"`
			}
			if err := json.Unmarshal(raw.User, &alt); err == nil {
				resp.User.ID = alt.UserID
			}
		}
	}
	return resp, nil
}

func withQuery(u *url.URL, q url.Values) *url.URL {
	u.RawQuery = q.Encode()
	return u
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, authed bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	slog.Debug("backend request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, u.Path, ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, u.Path, ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, u.Path, err)
	}
	return nil
}
