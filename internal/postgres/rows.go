package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"tradechat-go/internal/models"

	"github.com/shopspring/decimal"
)

type userRow struct {
	Id                string       `db:"id"`
	AccessToken       string       `db:"access_token"`
	BrokerUserId      string       `db:"broker_user_id"`
	SessionId         string       `db:"session_id"`
	IsAuthenticated   bool         `db:"is_authenticated"`
	AuthenticatedAt   sql.NullTime `db:"authenticated_at"`
	ExpiresAt         sql.NullTime `db:"expires_at"`
	TotalQueries      int64        `db:"total_queries"`
	DailyQueryCount   int          `db:"daily_query_count"`
	DailyQueryResetAt sql.NullTime `db:"daily_query_reset_at"`
	SubscriptionTier  string       `db:"subscription_tier"`
	CurrentTopic      string       `db:"current_topic"`
	MessageCount      int64        `db:"message_count"`
	LastMessageAt     sql.NullTime `db:"last_message_at"`
	Version           int64        `db:"version"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

type userUpdate struct {
	userRow
	ExpectedVersion int64 `db:"expected_version"`
}

type turnRow struct {
	Id             string    `db:"id"`
	UserId         string    `db:"user_id"`
	UserMessage    string    `db:"user_message"`
	NormalizedText string    `db:"normalized_text"`
	ResponseText   string    `db:"response_text"`
	Intent         string    `db:"intent"`
	Confidence     float64   `db:"confidence"`
	Entities       []byte    `db:"entities"`
	IsFollowUp     bool      `db:"is_follow_up"`
	TokensUsed     int       `db:"tokens_used"`
	ResponseTimeMs int64     `db:"response_time_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

type tradeRow struct {
	Id            string          `db:"id"`
	TradeId       string          `db:"trade_id"`
	OrderId       string          `db:"order_id"`
	UserId        string          `db:"user_id"`
	TradingSymbol string          `db:"tradingsymbol"`
	Exchange      string          `db:"exchange"`
	Product       string          `db:"product"`
	Side          string          `db:"side"`
	Quantity      decimal.Decimal `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	TradedAt      time.Time       `db:"traded_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

func toUserRow(u *models.User) userRow {
	return userRow{
		Id:                u.Id,
		AccessToken:       u.Auth.AccessToken,
		BrokerUserId:      u.Auth.BrokerUserId,
		SessionId:         u.Auth.SessionId,
		IsAuthenticated:   u.Auth.IsAuthenticated,
		AuthenticatedAt:   nullTime(u.Auth.AuthenticatedAt),
		ExpiresAt:         nullTime(u.Auth.ExpiresAt),
		TotalQueries:      u.Usage.TotalQueries,
		DailyQueryCount:   u.Usage.DailyQueryCount,
		DailyQueryResetAt: nullTime(u.Usage.DailyQueryResetAt),
		SubscriptionTier:  string(u.Usage.Tier),
		CurrentTopic:      u.Dialogue.CurrentTopic,
		MessageCount:      u.Dialogue.MessageCount,
		LastMessageAt:     nullTime(u.Dialogue.LastMessageAt),
		Version:           u.Version,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (r userRow) toModel() *models.User {
	return &models.User{
		Id: r.Id,
		Auth: models.AuthState{
			AccessToken:     r.AccessToken,
			BrokerUserId:    r.BrokerUserId,
			SessionId:       r.SessionId,
			IsAuthenticated: r.IsAuthenticated,
			AuthenticatedAt: fromNullTime(r.AuthenticatedAt),
			ExpiresAt:       fromNullTime(r.ExpiresAt),
		},
		Usage: models.UsageState{
			TotalQueries:      r.TotalQueries,
			DailyQueryCount:   r.DailyQueryCount,
			DailyQueryResetAt: fromNullTime(r.DailyQueryResetAt),
			Tier:              models.SubscriptionTier(r.SubscriptionTier),
		},
		Dialogue: models.DialogueState{
			CurrentTopic:  r.CurrentTopic,
			MessageCount:  r.MessageCount,
			LastMessageAt: fromNullTime(r.LastMessageAt),
		},
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toTurnRow(t models.ConversationTurn) (turnRow, error) {
	entities := t.Entities
	if entities == nil {
		entities = []models.Entity{}
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return turnRow{}, err
	}
	return turnRow{
		Id:             t.Id,
		UserId:         t.UserId,
		UserMessage:    t.UserMessage,
		NormalizedText: t.NormalizedText,
		ResponseText:   t.ResponseText,
		Intent:         t.Intent,
		Confidence:     t.Confidence,
		Entities:       raw,
		IsFollowUp:     t.IsFollowUp,
		TokensUsed:     t.TokensUsed,
		ResponseTimeMs: t.ResponseTimeMs,
		CreatedAt:      t.CreatedAt.UTC(),
	}, nil
}

func (r turnRow) toModel() models.ConversationTurn {
	turn := models.ConversationTurn{
		Id:             r.Id,
		UserId:         r.UserId,
		UserMessage:    r.UserMessage,
		NormalizedText: r.NormalizedText,
		ResponseText:   r.ResponseText,
		Intent:         r.Intent,
		Confidence:     r.Confidence,
		IsFollowUp:     r.IsFollowUp,
		TokensUsed:     r.TokensUsed,
		ResponseTimeMs: r.ResponseTimeMs,
		CreatedAt:      r.CreatedAt,
	}
	if err := json.Unmarshal(r.Entities, &turn.Entities); err != nil {
		turn.Entities = nil
	}
	return turn
}

func (r tradeRow) toModel() models.Trade {
	return models.Trade{
		Id:            r.Id,
		TradeId:       r.TradeId,
		OrderId:       r.OrderId,
		UserId:        r.UserId,
		TradingSymbol: r.TradingSymbol,
		Exchange:      r.Exchange,
		Product:       r.Product,
		Side:          r.Side,
		Quantity:      r.Quantity,
		Price:         r.Price,
		TradedAt:      r.TradedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
