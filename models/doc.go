// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the wire types shared by the vote service client,
the synchronizer, and the page adapter endpoints.

# Vote Service Types

Payloads exchanged with the external vote service:

  - VoteRequest: startup_id, vote_type (upsert body)
  - VoteRecord: one of the user's stored votes
  - VoteCount: startup_id, upvotes, downvotes

VoteCount.Net is the value displayed next to the vote buttons
(upvotes minus downvotes).

# Comment Types

  - Comment: comment_id, startup_id, user_id, content, dates
  - CreateCommentRequest: content, startup_id
  - UpdateCommentRequest: content

# Auth Types

  - LoginRequest: email, password
  - LoginResponse: token, user
  - User: id and profile fields

# Page Adapter Types

Types returned to the page script:

  - VoteView: vote, displayed count, button highlight, status text
  - VoteStateResponse: all known votes
  - SessionResponse: authentication state and login URL
  - CommentView: comment plus relative date and ownership flag
  - ErrorResponse: error, message, login_url

# Constants

Vote kinds (the zero value is no vote):

	VoteNone = ""
	VoteUp   = "upvote"
	VoteDown = "downvote"

Directions:

	DirectionUp   = "up"
	DirectionDown = "down"

Button highlights:

	HighlightNone = "none"
	HighlightUp   = "up"
	HighlightDown = "down"
*/
package models
