package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

// Service is the Postgres-backed store.
type Service struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewService(ctx context.Context, cfg models.PostgresConfig) (*Service, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Connected to PostgreSQL")
	return &Service{db: db, now: time.Now}, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close postgres connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) GetOrCreateUser(ctx context.Context, userId string) (*models.User, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx, queryInsertUser, userId, string(models.TierFree), s.now().UTC()); err != nil {
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}
	return s.GetUser(ctx, userId)
}

func (s *Service) GetUser(ctx context.Context, userId string) (*models.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, queryGetUser, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return row.toModel(), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, queryListUsers); err != nil {
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toModel())
	}
	return users, nil
}

func (s *Service) UpdateUser(ctx context.Context, userId string, mutate store.UserMutation) (*models.User, error) {
	return store.RetryOnConflict(ctx, func() (*models.User, error) {
		return s.updateUserOnce(ctx, userId, mutate)
	})
}

func (s *Service) updateUserOnce(ctx context.Context, userId string, mutate store.UserMutation) (*models.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to rollback transaction", zap.Error(err))
		}
	}()

	var row userRow
	if err := tx.GetContext(ctx, &row, queryGetUserForUpdate, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("unable to load user for update: %w", err)
	}

	user := row.toModel()
	expectedVersion := user.Version
	if err := mutate(user); err != nil {
		return nil, err
	}
	user.Id = userId
	user.Version = expectedVersion + 1
	user.UpdatedAt = s.now().UTC()

	result, err := tx.NamedExecContext(ctx, queryUpdateUser, userUpdate{
		userRow:         toUserRow(user),
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, store.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit user update: %w", err)
	}
	return user, nil
}

func (s *Service) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	if turn.Id == "" {
		turn.Id = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	row, err := toTurnRow(turn)
	if err != nil {
		return fmt.Errorf("unable to encode entities: %w", err)
	}
	if _, err := s.db.NamedExecContext(ctx, queryInsertTurn, row); err != nil {
		return fmt.Errorf("unable to insert conversation turn: %w", err)
	}
	return nil
}

func (s *Service) RecentTurns(ctx context.Context, userId string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []turnRow
	if err := s.db.SelectContext(ctx, &rows, queryRecentTurns, userId, limit); err != nil {
		return nil, fmt.Errorf("unable to query conversation turns: %w", err)
	}
	turns := make([]models.ConversationTurn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, row.toModel())
	}
	return turns, nil
}

func (s *Service) CountTurns(ctx context.Context, userId string) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, queryCountTurns, userId); err != nil {
		return 0, fmt.Errorf("unable to count conversation turns: %w", err)
	}
	return count, nil
}

func (s *Service) UpsertTrade(ctx context.Context, trade models.Trade) error {
	if trade.TradeId == "" {
		return fmt.Errorf("trade id cannot be empty")
	}
	now := s.now().UTC()
	row := tradeRow{
		Id:            uuid.New().String(),
		TradeId:       trade.TradeId,
		OrderId:       trade.OrderId,
		UserId:        trade.UserId,
		TradingSymbol: trade.TradingSymbol,
		Exchange:      trade.Exchange,
		Product:       trade.Product,
		Side:          trade.Side,
		Quantity:      trade.Quantity,
		Price:         trade.Price,
		TradedAt:      trade.TradedAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NamedExecContext(ctx, queryUpsertTrade, row); err != nil {
		return fmt.Errorf("unable to upsert trade: %w", err)
	}
	return nil
}

func (s *Service) ListTrades(ctx context.Context, userId string) ([]models.Trade, error) {
	var rows []tradeRow
	if err := s.db.SelectContext(ctx, &rows, queryListTrades, userId); err != nil {
		return nil, fmt.Errorf("unable to query trades: %w", err)
	}
	trades := make([]models.Trade, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, row.toModel())
	}
	return trades, nil
}
