package models

import (
	"strconv"
	"time"
)

// VoteKind is the current user's stance on a single startup.
// The zero value means no vote.
type VoteKind string

const (
	VoteNone     VoteKind = ""
	VoteUp       VoteKind = "upvote"
	VoteDown     VoteKind = "downvote"
	voteNoneText          = "none"
)

// Valid reports whether k is one of the kinds the vote service accepts.
func (k VoteKind) Valid() bool {
	return k == VoteUp || k == VoteDown
}

// String renders VoteNone as "none" for logs and API payloads.
func (k VoteKind) String() string {
	if k == VoteNone {
		return voteNoneText
	}
	return string(k)
}

// Direction is the button the user pressed.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Kind maps a direction to the vote kind it casts.
func (d Direction) Kind() VoteKind {
	if d == DirectionUp {
		return VoteUp
	}
	return VoteDown
}

func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Highlight is which vote button is shown as active.
type Highlight string

const (
	HighlightNone Highlight = "none"
	HighlightUp   Highlight = "up"
	HighlightDown Highlight = "down"
)

// Vote service types

type VoteRequest struct {
	StartupID int      `json:"startup_id"`
	VoteType  VoteKind `json:"vote_type"`
}

type VoteRecord struct {
	VoteID      int       `json:"vote_id,omitempty"`
	UserID      int       `json:"user_id,omitempty"`
	StartupID   int       `json:"startup_id"`
	VoteType    VoteKind  `json:"vote_type"`
	CreatedDate time.Time `json:"created_date,omitempty"`
}

// VoteCount is the server-owned tally for a startup.
type VoteCount struct {
	StartupID int `json:"startup_id"`
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Net is the value shown next to the vote buttons.
func (c VoteCount) Net() int {
	return c.Upvotes - c.Downvotes
}

// Startup types

type Startup struct {
	StartupID    int        `json:"startup_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Email        string     `json:"email,omitempty"`
	Website      string     `json:"website,omitempty"`
	SocialMedia  string     `json:"social_media,omitempty"`
	CategoryID   int        `json:"category_id,omitempty"`
	CategoryName string     `json:"category_name,omitempty"`
	OwnerUserID  int        `json:"owner_user_id,omitempty"`
	CreatedDate  *time.Time `json:"created_date,omitempty"`
}

// CategoryLabel is the label shown on the listing card.
func (s Startup) CategoryLabel() string {
	switch {
	case s.CategoryName != "":
		return s.CategoryName
	case s.CategoryID != 0:
		return "Category " + strconv.Itoa(s.CategoryID)
	default:
		return "General"
	}
}

// Comment types

type Comment struct {
	CommentID    int        `json:"comment_id"`
	StartupID    int        `json:"startup_id"`
	UserID       int        `json:"user_id"`
	UserName     string     `json:"user_name,omitempty"`
	Content      string     `json:"content"`
	CreatedDate  time.Time  `json:"created_date"`
	ModifiedDate *time.Time `json:"modified_date,omitempty"`
}

type CreateCommentRequest struct {
	Content   string `json:"content"`
	StartupID int    `json:"startup_id"`
}

type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// Auth service types

type User struct {
	ID               int        `json:"id"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	Email            string     `json:"email"`
	RegistrationDate *time.Time `json:"registrationDate,omitempty"`
	ProfileInfo      string     `json:"profileInfo,omitempty"`
}

// DisplayName falls back to the email when no name is on file.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Page adapter request types

type CastVoteRequest struct {
	Direction Direction `json:"direction"`
}

type RefreshTalliesRequest struct {
	StartupIDs []int `json:"startup_ids"`
}

// Page adapter response types

type VoteView struct {
	StartupID int       `json:"startup_id"`
	Vote      string    `json:"vote"`
	Displayed int       `json:"displayed"`
	Buttons   Highlight `json:"buttons"`
	Status    string    `json:"status"`
}

type StartupView struct {
	Startup
	Category string   `json:"category"`
	Votes    VoteView `json:"votes"`
}

type VoteStateResponse struct {
	Loaded bool       `json:"loaded"`
	Votes  []VoteView `json:"votes"`
}

type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	LoginURL      string `json:"login_url,omitempty"`
}

type CommentView struct {
	Comment
	Posted  string `json:"posted"`
	IsOwner bool   `json:"is_owner"`
}

// Error response

type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	LoginURL string `json:"login_url,omitempty"`
}
