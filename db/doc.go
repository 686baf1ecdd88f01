// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the session database and creates its schema.

# Connecting

Open accepts the dialect (sqlite or postgres) and a DSN:

	conn, err := db.Open(db.SQLite, "startup-votes.db")

SQLite is the default and plays the role of the browser's local storage.
Postgres is supported for shared deployments of the page adapter.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS.

# Tables

  - session: the stored bearer token and user profile (JSON), keyed by
    profile id. saved_at is unix milliseconds.

Vote state is deliberately not stored here; it is rebuilt from the vote
service each time a session starts.

# Placeholders

Queries are written with ? placeholders. Rebind converts them for postgres:

	q := db.Rebind(db.Postgres, "SELECT token FROM session WHERE id = ?")
	// SELECT token FROM session WHERE id = $1
*/
package db
