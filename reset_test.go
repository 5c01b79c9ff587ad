package accounts_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
	"github.com/sunilsingh2019/meeting-assistant-accounts/stores"
)

// stallingCredentialStore holds the first lookup of a single-use token
// between its read and the caller's write, so a test can interleave a
// second full confirmation into that window.
type stallingCredentialStore struct {
	*stores.MemCredentialStore
	release chan struct{}
	stalled chan struct{}
	lookups atomic.Int32
}

func newStallingCredentialStore() *stallingCredentialStore {
	return &stallingCredentialStore{
		MemCredentialStore: stores.NewMemCredentialStore(),
		release:            make(chan struct{}),
		stalled:            make(chan struct{}),
	}
}

func (s *stallingCredentialStore) stallOnce() {
	if s.lookups.Add(1) == 1 {
		close(s.stalled)
		<-s.release
	}
}

func (s *stallingCredentialStore) GetByResetDigest(ctx context.Context, digest string) (*accounts.User, error) {
	user, err := s.MemCredentialStore.GetByResetDigest(ctx, digest)
	s.stallOnce()
	return user, err
}

func (s *stallingCredentialStore) GetByVerificationToken(ctx context.Context, token string) (*accounts.User, error) {
	user, err := s.MemCredentialStore.GetByVerificationToken(ctx, token)
	s.stallOnce()
	return user, err
}

func TestConfirmLosesRaceToCompletedReset(t *testing.T) {
	store := newStallingCredentialStore()
	ctx := context.Background()
	user, err := store.Create(ctx, accounts.NewUserFields{
		Email:    "raced@example.com",
		Username: "raced",
		Password: "original-pass",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resets := &accounts.ResetManager{Users: store}
	_, secret, err := resets.Request(ctx, user.Email)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	slowErr := make(chan error, 1)
	go func() {
		_, err := resets.Confirm(ctx, secret, "slow-pass")
		slowErr <- err
	}()

	// The slow caller has its user snapshot and is held before its write.
	<-store.stalled
	if _, err := resets.Confirm(ctx, secret, "fast-pass"); err != nil {
		t.Fatalf("fast Confirm: %v", err)
	}
	close(store.release)

	if err := <-slowErr; !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("slow Confirm should lose with ErrInvalidToken, got %v", err)
	}

	user, err = store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !store.VerifyPassword(user, "fast-pass") {
		t.Error("winning confirmation's password should authenticate")
	}
	if store.VerifyPassword(user, "slow-pass") {
		t.Error("losing confirmation must not overwrite the winner's password")
	}
}

func TestConsumeLosesRaceToCompletedVerification(t *testing.T) {
	store := newStallingCredentialStore()
	ctx := context.Background()
	user, err := store.Create(ctx, accounts.NewUserFields{
		Email:    "raced-verify@example.com",
		Username: "racedverify",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	verifier := &accounts.VerificationManager{Users: store}
	token, err := verifier.Generate(ctx, user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	slowErr := make(chan error, 1)
	go func() {
		_, err := verifier.Consume(ctx, token)
		slowErr <- err
	}()

	<-store.stalled
	if _, err := verifier.Consume(ctx, token); err != nil {
		t.Fatalf("fast Consume: %v", err)
	}
	close(store.release)

	if err := <-slowErr; !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("slow Consume should lose with ErrInvalidToken, got %v", err)
	}
}
