package models

import "time"

// InboundMessage is a text received from the messaging channel
type InboundMessage struct {
	MessageId string
	SenderId  string
	Text      string
}

// OutboundMessage is a text to deliver on the messaging channel
type OutboundMessage struct {
	RecipientId string
	Text        string
}

// Delivery is the messaging provider's acknowledgement of a send
type Delivery struct {
	MessageId string
}

// LoginCallback is the payload of the brokerage login redirect
type LoginCallback struct {
	RequestToken string
	State        string
	Status       string
}

// Generation is the text generator's answer with usage accounting
type Generation struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

func (g *Generation) TokensUsed() int {
	return g.InputTokens + g.OutputTokens
}

type ReplyOutcome string

const (
	OutcomeAnswered               ReplyOutcome = "answered"
	OutcomeAuthenticationRequired ReplyOutcome = "authentication_required"
	OutcomeQuotaExceeded          ReplyOutcome = "quota_exceeded"
	OutcomeHandshakeFailed        ReplyOutcome = "handshake_failed"
	OutcomeDuplicate              ReplyOutcome = "duplicate"
)

// Reply is the assistant's answer to one inbound message
type Reply struct {
	RecipientId string       `json:"recipientId"`
	Text        string       `json:"text"`
	Intent      string       `json:"intent"`
	Outcome     ReplyOutcome `json:"outcome"`
}

// UserStats summarises a user's activity
type UserStats struct {
	UserId            string           `json:"userId"`
	Tier              SubscriptionTier `json:"tier"`
	IsAuthenticated   bool             `json:"isAuthenticated"`
	MessageCount      int64            `json:"messageCount"`
	TotalQueries      int64            `json:"totalQueries"`
	DailyQueryCount   int              `json:"dailyQueryCount"`
	ConversationCount int64            `json:"conversationCount"`
	TradeCount        int              `json:"tradeCount"`
	LastMessageAt     *time.Time       `json:"lastMessageAt,omitempty"`
	MemberSince       time.Time        `json:"memberSince"`
}
