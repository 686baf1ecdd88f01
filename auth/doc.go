// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth keeps the logged-in user's session.

# Sessions

A session is the bearer token issued by the auth service plus the user
profile returned with it. Manager caches the stored session and writes
changes through to a Store:

	m := auth.NewManager(auth.NewSQLStore(conn, db.SQLite))
	sess, err := m.Current(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		// send the user to the login page
	}

Manager also implements the token source used by the vote client, so
every authenticated call carries "Authorization: Bearer <token>".

# Expiry

Tokens are treated as opaque. If a token happens to be a JWT with an exp
claim, TokenExpired reads it without verifying the signature, and Current
clears a session whose token has expired. Tokens without a readable exp
never expire locally; the services decide.

# Logout

Invalidate drops the session. It is called on explicit logout and when a
backend answers 401 or 403.
*/
package auth
