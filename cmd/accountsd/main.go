// Command accountsd serves the account and authentication API for the
// meeting assistant frontend.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
	authbroker "github.com/sunilsingh2019/meeting-assistant-accounts/oauth2"
	"github.com/sunilsingh2019/meeting-assistant-accounts/stores"
	gormstore "github.com/sunilsingh2019/meeting-assistant-accounts/stores/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	addr := envOr("ACCOUNTS_ADDR", ":8000")

	svc, err := buildService()
	if err != nil {
		log.Fatalf("service setup failed: %v", err)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      svc.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("accounts server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildService() (*accounts.Service, error) {
	var (
		users     accounts.CredentialStore
		prefs     accounts.PreferencesStore
		opaque    accounts.OpaqueTokenStore
		blacklist accounts.TokenBlacklist
	)

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		users = gormstore.NewCredentialStore(db)
		prefs = gormstore.NewPreferencesStore(db)
		opaque = gormstore.NewOpaqueTokenStore(db)
		bl := gormstore.NewTokenBlacklist(db)
		blacklist = bl
		go purgeLoop(bl)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory stores")
		users = stores.NewMemCredentialStore()
		prefs = stores.NewMemPreferencesStore()
		opaque = stores.NewMemOpaqueTokenStore()
		blacklist = stores.NewMemTokenBlacklist()
	}

	var sender accounts.EmailSender
	if smtpAddr := os.Getenv("SMTP_ADDR"); smtpAddr != "" {
		sender = &accounts.SMTPEmailSender{
			Addr:     smtpAddr,
			From:     envOr("SMTP_FROM", "noreply@localhost"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		}
	} else {
		sender = &accounts.ConsoleEmailSender{}
	}

	svc := accounts.NewService(users, prefs, opaque, blacklist, sender)
	svc.Google = authbroker.NewGoogleBroker("", "", "")
	svc.Microsoft = authbroker.NewMicrosoftBroker("", "", "", "")
	svc.EnsureDefaults()
	return svc, nil
}

func purgeLoop(bl *gormstore.TokenBlacklist) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := bl.PurgeExpired(context.Background()); err != nil {
			slog.Error("blacklist purge failed", "err", err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
