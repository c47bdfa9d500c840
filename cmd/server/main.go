/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payment schedule engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load and validate the settings document (percentage table is fatal
     when malformed)
  3. Initialize SQLite store
  4. Wire ledger, handler, reminder scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: payplan.db, ":memory:" works)
  -settings  Path to the JSON settings document (default: built-in buckets)
  -smtp-host / -smtp-port / -smtp-user / -smtp-pass / -smtp-from
             SMTP settings for reminder emails; reminders are disabled
             when -smtp-host is empty

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections, wait up to 30s for active requests
  3. Close the database connection
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openfun/payplan/api"
	"github.com/openfun/payplan/factory"
	"github.com/openfun/payplan/notify"
	"github.com/openfun/payplan/payment"
	"github.com/openfun/payplan/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "payplan.db", "SQLite database path")
	settingsPath := flag.String("settings", "", "path to JSON settings document")
	smtpHost := flag.String("smtp-host", "", "SMTP host for reminder emails")
	smtpPort := flag.String("smtp-port", "587", "SMTP port")
	smtpUser := flag.String("smtp-user", "", "SMTP username")
	smtpPass := flag.String("smtp-pass", "", "SMTP password")
	smtpFrom := flag.String("smtp-from", "noreply@example.com", "reminder sender address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Settings: a malformed percentage table must abort startup.
	settingsJSON := factory.DefaultSettingsJSON()
	if *settingsPath != "" {
		data, err := os.ReadFile(*settingsPath)
		if err != nil {
			logger.Fatalf("Failed to read settings: %v", err)
		}
		settingsJSON = data
	}
	settings, err := factory.ParseSettings(settingsJSON)
	if err != nil {
		logger.Fatalf("Failed to load settings: %v", err)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ledger := payment.NewLedger(store, store)
	handler := api.NewHandler(store, ledger, settings.Table, settings.WithdrawalCalculator(), logger)

	var sender notify.Sender = notify.NopSender{}
	if *smtpHost != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:        *smtpHost,
			Port:        *smtpPort,
			Username:    *smtpUser,
			Password:    *smtpPass,
			SenderEmail: *smtpFrom,
		}, logger)
	}
	scheduler := api.NewReminderScheduler(store, sender, settings.ReminderDaysBeforeDue, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start reminder scheduler: %v", err)
	}
	defer scheduler.Stop()

	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
