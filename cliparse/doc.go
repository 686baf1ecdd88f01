// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are resolved in three layers, later layers winning:

 1. a .env file in the working directory, if present
 2. environment variables
 3. command-line flags

# Config Fields

  - Port: listen port for the page adapter (default: 3318)
  - DatabaseURL: session store location (default: startup-votes.db)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - DataAPIURL: vote and comment service (default: http://localhost:8000)
  - AuthAPIURL: auth service (default: http://localhost:8080)
  - LoginURL: redirect target when a login is required
  - CORSOrigins: allowed page origins (default: *)
  - RequestTimeout: per-request backend timeout (default: 10s)
  - VerifySync: re-read the server tally after each vote (default: true)
  - LogLevel: debug, info, warn, error

# CLI Flags and Environment Variables

	-p           PORT
	-d           DATABASE_URL
	-t           DATABASE_TYPE
	-data-api    DATA_API_URL
	-auth-api    AUTH_API_URL
	-login-url   LOGIN_URL
	-cors        CORS_ORIGINS
	-timeout     REQUEST_TIMEOUT
	-verify-sync VERIFY_SYNC
	-log-level   LOG_LEVEL

# Validation

ParseFlags returns an error when the port is out of range, the database
type is unknown, a service URL is not absolute, or the timeout is not
positive.
*/
package cliparse
