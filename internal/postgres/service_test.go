package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Requires a running Postgres; set POSTGRES_TEST_DSN to enable.
func setupTestDB(t *testing.T) *Service {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	service, err := NewService(context.Background(), models.PostgresConfig{
		DSN:          dsn,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

// newTestUser creates a user with a unique id so runs against a shared
// database do not collide.
func newTestUser(t *testing.T, service *Service) string {
	t.Helper()
	userId := "test-" + uuid.New().String()
	if _, err := service.GetOrCreateUser(context.Background(), userId); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	return userId
}

func TestNewService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.PostgresConfig
	}{
		{"empty dsn", models.PostgresConfig{MaxOpenConns: 1, PingTimeout: time.Second}},
		{"zero conns", models.PostgresConfig{DSN: "postgres://localhost/db", PingTimeout: time.Second}},
		{"zero ping timeout", models.PostgresConfig{DSN: "postgres://localhost/db", MaxOpenConns: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(context.Background(), tt.cfg); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestUserRow_AbsentTimesStayNull(t *testing.T) {
	user := &models.User{
		Id:    "u1",
		Usage: models.UsageState{Tier: models.TierFree},
	}

	row := toUserRow(user)
	if row.ExpiresAt.Valid || row.AuthenticatedAt.Valid || row.DailyQueryResetAt.Valid || row.LastMessageAt.Valid {
		t.Errorf("Expected zero times to map to NULL, got %+v", row)
	}

	back := row.toModel()
	if !back.Auth.ExpiresAt.IsZero() {
		t.Errorf("Expected zero expiry, got %v", back.Auth.ExpiresAt)
	}
	if back.Auth.HasCredential() {
		t.Error("Expected no credential")
	}
}

func TestTurnRow_NilEntitiesEncodeAsEmptyList(t *testing.T) {
	row, err := toTurnRow(models.ConversationTurn{Id: "t1", UserId: "u1"})
	if err != nil {
		t.Fatalf("toTurnRow failed: %v", err)
	}
	if string(row.Entities) != "[]" {
		t.Errorf("Expected [] for nil entities, got %s", row.Entities)
	}
}

func TestUpdateUser_PersistsAndBumpsVersion(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	userId := newTestUser(t, service)

	issued := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	updated, err := service.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Auth.SetCredential(models.Credential{
			AccessToken:  "access-123",
			BrokerUserId: "AB1234",
			IssuedAt:     issued,
			ExpiresAt:    issued.Add(24 * time.Hour),
		})
		u.Usage.Tier = models.TierPro
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2, got %d", updated.Version)
	}

	loaded, err := service.GetUser(ctx, userId)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if loaded.Auth.AccessToken != "access-123" || !loaded.Auth.IsAuthenticated {
		t.Errorf("Expected credential persisted, got %+v", loaded.Auth)
	}
	if !loaded.Auth.ExpiresAt.Equal(issued.Add(24 * time.Hour)) {
		t.Errorf("Expected expiry %v, got %v", issued.Add(24*time.Hour), loaded.Auth.ExpiresAt)
	}
	if loaded.Usage.Tier != models.TierPro {
		t.Errorf("Expected pro tier, got %q", loaded.Usage.Tier)
	}
}

func TestUpdateUser_MutationErrorLeavesRecordIntact(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	userId := newTestUser(t, service)

	boom := errors.New("exchange blew up")
	_, err := service.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Auth.AccessToken = "half-written"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected mutation error, got %v", err)
	}

	loaded, err := service.GetUser(ctx, userId)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if loaded.Auth.AccessToken != "" || loaded.Version != 1 {
		t.Errorf("Expected untouched record, got token %q version %d", loaded.Auth.AccessToken, loaded.Version)
	}
}

func TestUpdateUser_UnknownUser(t *testing.T) {
	service := setupTestDB(t)

	_, err := service.UpdateUser(context.Background(), "missing-"+uuid.New().String(), func(u *models.User) error {
		return nil
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestRecentTurns_MostRecentFirst(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	userId := newTestUser(t, service)

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third", "fourth"} {
		err := service.AppendTurn(ctx, models.ConversationTurn{
			UserId:       userId,
			UserMessage:  text,
			ResponseText: "reply to " + text,
			Intent:       "other",
			Confidence:   0.5,
			Entities:     []models.Entity{{Type: "stock", Value: "TCS"}},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	turns, err := service.RecentTurns(ctx, userId, 3)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	want := []string{"fourth", "third", "second"}
	if len(turns) != len(want) {
		t.Fatalf("Expected %d turns, got %d", len(want), len(turns))
	}
	for i, turn := range turns {
		if turn.UserMessage != want[i] {
			t.Errorf("Turn %d: expected %q, got %q", i, want[i], turn.UserMessage)
		}
	}
	if len(turns[0].Entities) != 1 || turns[0].Entities[0].Value != "TCS" {
		t.Errorf("Expected entities to round-trip, got %+v", turns[0].Entities)
	}

	count, err := service.CountTurns(ctx, userId)
	if err != nil {
		t.Fatalf("CountTurns failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 turns, got %d", count)
	}
}

func TestUpsertTrade_Idempotent(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	userId := newTestUser(t, service)

	trade := models.Trade{
		TradeId:       "T-" + uuid.New().String(),
		OrderId:       "O-1",
		UserId:        userId,
		TradingSymbol: "TCS",
		Exchange:      "NSE",
		Product:       "CNC",
		Side:          "BUY",
		Quantity:      decimal.NewFromInt(5),
		Price:         decimal.RequireFromString("3500.50"),
		TradedAt:      time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := service.UpsertTrade(ctx, trade); err != nil {
		t.Fatalf("First UpsertTrade failed: %v", err)
	}
	first, err := service.ListTrades(ctx, userId)
	if err != nil || len(first) != 1 {
		t.Fatalf("ListTrades after insert = %v, %v", first, err)
	}

	trade.Price = decimal.RequireFromString("3501.25")
	if err := service.UpsertTrade(ctx, trade); err != nil {
		t.Fatalf("Second UpsertTrade failed: %v", err)
	}

	trades, err := service.ListTrades(ctx, userId)
	if err != nil {
		t.Fatalf("ListTrades failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected exactly 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(decimal.RequireFromString("3501.25")) {
		t.Errorf("Expected latest price 3501.25, got %s", trades[0].Price)
	}
	if trades[0].Id != first[0].Id {
		t.Errorf("Expected row id %s to be kept, got %s", first[0].Id, trades[0].Id)
	}
	if !trades[0].TradedAt.Equal(trade.TradedAt) {
		t.Errorf("Expected traded at %v, got %v", trade.TradedAt, trades[0].TradedAt)
	}
}
