// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/danielhkuo/startup-votes/auth"
	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/db"
	"github.com/danielhkuo/startup-votes/router"
	"github.com/danielhkuo/startup-votes/voteclient"
	"github.com/danielhkuo/startup-votes/votesync"
)

// newLogger writes text to a terminal and JSON everywhere else
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Level()))

	// Open the session store
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	sessions := auth.NewManager(auth.NewSQLStore(dbConn, cfg.DatabaseType))
	client, err := voteclient.New(cfg.DataAPIURL, cfg.AuthAPIURL, sessions, cfg.RequestTimeout)
	if err != nil {
		slog.Error("invalid service URL", "error", err)
		os.Exit(1)
	}
	sync := votesync.New(votesync.NewState(), client, sessions, votesync.Options{Reconcile: cfg.VerifySync})

	// A stored session from an earlier run gets its votes back
	startCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := sync.LoadCurrentUser(startCtx); err != nil {
		slog.Warn("could not load votes for stored session", "error", err)
	}
	cancel()

	handler := router.NewRouter(router.Deps{
		Config:   cfg,
		Client:   client,
		Sessions: sessions,
		Sync:     sync,
	})

	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	slog.Info("Listening",
		"port", cfg.Port,
		"data_api", cfg.DataAPIURL,
		"auth_api", cfg.AuthAPIURL,
		"verify_sync", cfg.VerifySync,
	)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}
