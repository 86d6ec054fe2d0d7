package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradechat-go/internal/clock"
	"tradechat-go/internal/database"
	"tradechat-go/internal/failure"
	"tradechat-go/internal/models"
	"tradechat-go/internal/store"
)

var epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeExchanger struct {
	mutex    sync.Mutex
	calls    []string
	err      error
	sessions map[string]*models.BrokerSession
}

func (f *fakeExchanger) LoginURL(state string) string {
	return "https://kite.example/connect/login?v=3&api_key=k&state=" + state
}

func (f *fakeExchanger) ExchangeToken(ctx context.Context, requestToken string) (*models.BrokerSession, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, requestToken)
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.sessions[requestToken]; ok {
		return s, nil
	}
	return &models.BrokerSession{AccessToken: "access-" + requestToken, BrokerUserId: "AB1234"}, nil
}

func setupHandshake(t *testing.T) (*Handshake, *database.Service, *fakeExchanger, *clock.Fake) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFake(epoch)
	exchanger := &fakeExchanger{}
	registry := NewTokenRegistry(TokenRegistryConfig{Clock: clk})
	h := NewHandshake(HandshakeConfig{
		Store:    db,
		Broker:   exchanger,
		Registry: registry,
		Clock:    clk,
	})
	return h, db, exchanger, clk
}

func TestTokenRegistry_ClaimOnce(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := NewTokenRegistry(TokenRegistryConfig{Clock: clk})

	if !r.Ingest("tok-1") {
		t.Fatal("Expected first ingest to be accepted")
	}
	if r.Ingest("tok-1") {
		t.Error("Expected duplicate ingest to be ignored")
	}

	token, ok := r.ClaimUnused()
	if !ok || token != "tok-1" {
		t.Fatalf("ClaimUnused() = %q, %v", token, ok)
	}
	if _, ok := r.ClaimUnused(); ok {
		t.Error("Expected a used token not to be claimable again")
	}

	// A replayed callback must not re-arm the token.
	r.Ingest("tok-1")
	if _, ok := r.ClaimUnused(); ok {
		t.Error("Expected replayed token to stay used")
	}
}

func TestTokenRegistry_ClaimsOldestFirst(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := NewTokenRegistry(TokenRegistryConfig{Clock: clk})

	r.Ingest("first")
	clk.Advance(10 * time.Second)
	r.Ingest("second")

	for _, want := range []string{"first", "second"} {
		got, ok := r.ClaimUnused()
		if !ok || got != want {
			t.Errorf("ClaimUnused() = %q, %v, want %q", got, ok, want)
		}
	}
}

func TestTokenRegistry_ExpiredTokenNeverClaimed(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := NewTokenRegistry(TokenRegistryConfig{Clock: clk})

	r.Ingest("stale")
	clk.Advance(301 * time.Second)

	if token, ok := r.ClaimUnused(); ok {
		t.Errorf("Expected no claimable token, got %q", token)
	}

	r.Cleanup()
	if r.Len() != 0 {
		t.Errorf("Expected expired token to be evicted, %d remain", r.Len())
	}
}

func TestTokenRegistry_BoundaryIsExclusive(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := NewTokenRegistry(TokenRegistryConfig{Clock: clk})

	r.Ingest("edge")
	clk.Advance(DefaultTokenTTL)
	if _, ok := r.ClaimUnused(); ok {
		t.Error("Expected token aged exactly TTL to be unclaimable")
	}
}

func TestTokenRegistry_EvictsOldestWhenFull(t *testing.T) {
	clk := clock.NewFake(epoch)
	r := NewTokenRegistry(TokenRegistryConfig{Clock: clk, MaxEntries: 2})

	r.Ingest("a")
	clk.Advance(time.Second)
	r.Ingest("b")
	clk.Advance(time.Second)
	r.Ingest("c")

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got, _ := r.ClaimUnused(); got != "b" {
		t.Errorf("Expected oldest surviving token b, got %q", got)
	}
}

func TestTokenRegistry_StartStop(t *testing.T) {
	r := NewTokenRegistry(TokenRegistryConfig{CleanupInterval: 10 * time.Millisecond})
	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()

	idle := NewTokenRegistry(TokenRegistryConfig{})
	idle.Stop()
}

func TestCompleteHandshake_SingleTokenConcurrentCallers(t *testing.T) {
	h, db, exchanger, _ := setupHandshake(t)
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, id := range users {
		if _, err := db.GetOrCreateUser(ctx, id); err != nil {
			t.Fatalf("GetOrCreateUser(%s): %v", id, err)
		}
	}
	h.IngestToken(models.LoginCallback{RequestToken: "only-token", Status: "success"})

	var (
		wg        sync.WaitGroup
		mutex     sync.Mutex
		successes int
		noLogin   int
	)
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.CompleteHandshake(ctx, id)
			mutex.Lock()
			defer mutex.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNoRecentLogin):
				noLogin++
			default:
				t.Errorf("Unexpected error for %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly one success, got %d", successes)
	}
	if noLogin != len(users)-1 {
		t.Errorf("Expected %d no-recent-login failures, got %d", len(users)-1, noLogin)
	}
	if len(exchanger.calls) != 1 {
		t.Errorf("Expected one exchange call, got %d", len(exchanger.calls))
	}
}

func TestCompleteHandshake_StaleTokenIsRejected(t *testing.T) {
	h, db, exchanger, clk := setupHandshake(t)
	ctx := context.Background()
	db.GetOrCreateUser(ctx, "u1")

	h.IngestToken(models.LoginCallback{RequestToken: "old-token"})
	clk.Advance(301 * time.Second)

	_, err := h.CompleteHandshake(ctx, "u1")
	if !errors.Is(err, ErrNoRecentLogin) {
		t.Fatalf("Expected ErrNoRecentLogin, got %v", err)
	}
	if !failure.IsTerminal(err) {
		t.Error("Expected no-recent-login to be terminal")
	}
	if len(exchanger.calls) != 0 {
		t.Error("Expected no exchange call for a stale token")
	}
}

func TestCompleteHandshake_StoresCredential(t *testing.T) {
	h, db, _, clk := setupHandshake(t)
	ctx := context.Background()
	db.GetOrCreateUser(ctx, "u1")

	h.IngestToken(models.LoginCallback{RequestToken: "req-1"})
	cred, err := h.CompleteHandshake(ctx, "u1")
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}
	if cred.AccessToken != "access-req-1" {
		t.Errorf("AccessToken = %q", cred.AccessToken)
	}
	if !cred.ExpiresAt.Equal(epoch.Add(DefaultCredentialTTL)) {
		t.Errorf("ExpiresAt = %v", cred.ExpiresAt)
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !user.Auth.IsAuthenticated || user.Auth.AccessToken != "access-req-1" {
		t.Errorf("Expected credential persisted, got %+v", user.Auth)
	}
	if h.RequiresAuthentication(user) {
		t.Error("Expected fresh credential to be usable")
	}

	clk.Advance(DefaultCredentialTTL + time.Second)
	if !h.RequiresAuthentication(user) {
		t.Error("Expected expired credential to require authentication")
	}
}

func TestRevokeCredential(t *testing.T) {
	h, db, _, _ := setupHandshake(t)
	ctx := context.Background()
	db.GetOrCreateUser(ctx, "u1")

	h.IngestToken(models.LoginCallback{RequestToken: "req-1"})
	if _, err := h.CompleteHandshake(ctx, "u1"); err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}

	if err := h.RevokeCredential(ctx, "u1"); err != nil {
		t.Fatalf("RevokeCredential() error = %v", err)
	}
	user, _ := db.GetUser(ctx, "u1")
	if user.Auth.HasCredential() || user.Auth.IsAuthenticated || user.Auth.BrokerUserId != "" {
		t.Errorf("Expected credential cleared, got %+v", user.Auth)
	}
	if !h.RequiresAuthentication(user) {
		t.Error("Expected revoked user to require authentication")
	}

	if err := h.RevokeCredential(ctx, "ghost"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound for unknown user, got %v", err)
	}
}

func TestCompleteHandshake_ExchangeFailureLeavesUserUntouched(t *testing.T) {
	h, db, exchanger, _ := setupHandshake(t)
	ctx := context.Background()
	before, _ := db.GetOrCreateUser(ctx, "u1")

	exchanger.err = errors.New("Token is invalid or has expired")
	h.IngestToken(models.LoginCallback{RequestToken: "bad"})

	_, err := h.CompleteHandshake(ctx, "u1")
	var exchangeErr *ExchangeFailedError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("Expected ExchangeFailedError, got %v", err)
	}
	if !errors.Is(err, ErrExchangeFailed) {
		t.Error("Expected error to match ErrExchangeFailed")
	}

	after, _ := db.GetUser(ctx, "u1")
	if after.Version != before.Version || after.Auth.HasCredential() {
		t.Errorf("Expected user unchanged, got %+v", after.Auth)
	}
}

func TestIssueChallenge_RecordsCorrelationId(t *testing.T) {
	h, db, _, _ := setupHandshake(t)
	ctx := context.Background()
	db.GetOrCreateUser(ctx, "u1")

	challenge := h.IssueChallenge(ctx, "u1")
	if challenge.CorrelationId == "" || challenge.LoginURL == "" {
		t.Fatalf("Incomplete challenge: %+v", challenge)
	}

	user, _ := db.GetUser(ctx, "u1")
	if user.Auth.SessionId != challenge.CorrelationId {
		t.Errorf("SessionId = %q, want %q", user.Auth.SessionId, challenge.CorrelationId)
	}
}

func TestIssueChallenge_UnknownUserStillReturnsChallenge(t *testing.T) {
	h, _, _, _ := setupHandshake(t)
	if c := h.IssueChallenge(context.Background(), "ghost"); c == nil || c.LoginURL == "" {
		t.Error("Expected a challenge even when the user cannot be updated")
	}
}

func TestIngestToken_RequiresToken(t *testing.T) {
	h, _, _, _ := setupHandshake(t)
	if h.IngestToken(models.LoginCallback{State: "s", Status: "success"}) {
		t.Error("Expected callback without token to be rejected")
	}
}

func TestRequiresAuthentication_NoCredential(t *testing.T) {
	h, _, _, _ := setupHandshake(t)
	if !h.RequiresAuthentication(&models.User{Id: "u1"}) {
		t.Error("Expected user without credential to require authentication")
	}
	if !h.RequiresAuthentication(nil) {
		t.Error("Expected nil user to require authentication")
	}
}
