// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Every request gets an X-Request-ID (kept if the caller sent one). Start is
logged at debug level with the client IP; completion is logged with the
status and duration_ms.

# CORS Middleware

Allow the page's origins:

	handler := middleware.CORS(cfg.CORSOrigins)(mux)

"*" allows any origin. Methods GET, POST, PUT, DELETE and OPTIONS are
allowed with headers Content-Type, Authorization and X-Request-ID.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.LoginRequired(w, cfg.LoginURL, "Please log in to vote")

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
