/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradechat-go/internal/auth"
	"tradechat-go/internal/broker"
	"tradechat-go/internal/clock"
	"tradechat-go/internal/dialogue"
	"tradechat-go/internal/failure"
	"tradechat-go/internal/intent"
	"tradechat-go/internal/llm"
	"tradechat-go/internal/models"
	"tradechat-go/internal/portfolio"
	"tradechat-go/internal/quota"
	"tradechat-go/internal/store"
	"tradechat-go/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBrokerFetchTimeout = 15 * time.Second

var ErrEmptySender = errors.New("inbound message has no sender")

// Config contains the collaborators an Assistant is built from
type Config struct {
	Store      store.Store
	Broker     broker.Client
	Generator  llm.Generator
	Handshake  *auth.Handshake
	Quota      *quota.Tracker
	Normalizer *dialogue.Normalizer
	Classifier *intent.Classifier
	Metrics    *telemetry.Metrics
	Clock      clock.Clock

	HistoryWindow      int
	FollowUpWindow     time.Duration
	BrokerFetchTimeout time.Duration
}

// Assistant turns one inbound chat message into one reply.
type Assistant struct {
	store      store.Store
	broker     broker.Client
	generator  llm.Generator
	handshake  *auth.Handshake
	quota      *quota.Tracker
	normalizer *dialogue.Normalizer
	classifier *intent.Classifier
	metrics    *telemetry.Metrics
	clock      clock.Clock

	historyWindow      int
	followUpWindow     time.Duration
	brokerFetchTimeout time.Duration
}

func New(cfg Config) *Assistant {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = dialogue.NewNormalizer(dialogue.DefaultTypos())
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier(cfg.Generator)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = dialogue.DefaultWindowSize
	}
	if cfg.FollowUpWindow <= 0 {
		cfg.FollowUpWindow = dialogue.DefaultFollowUpWindow
	}
	if cfg.BrokerFetchTimeout <= 0 {
		cfg.BrokerFetchTimeout = DefaultBrokerFetchTimeout
	}
	return &Assistant{
		store:              cfg.Store,
		broker:             cfg.Broker,
		generator:          cfg.Generator,
		handshake:          cfg.Handshake,
		quota:              cfg.Quota,
		normalizer:         cfg.Normalizer,
		classifier:         cfg.Classifier,
		metrics:            cfg.Metrics,
		clock:              cfg.Clock,
		historyWindow:      cfg.HistoryWindow,
		followUpWindow:     cfg.FollowUpWindow,
		brokerFetchTimeout: cfg.BrokerFetchTimeout,
	}
}

// turnState accumulates what one message produced.
type turnState struct {
	user       *models.User
	message    dialogue.Message
	window     dialogue.Window
	followUp   bool
	result     intent.Result
	text       string
	outcome    models.ReplyOutcome
	tokensUsed int
}

// Process runs one message through normalize, history, classify, quota,
// route and compose. A quota denial returns a normal reply and records
// nothing. Bookkeeping after the reply is composed is logged, not returned.
func (a *Assistant) Process(ctx context.Context, msg models.InboundMessage) (*models.Reply, error) {
	if msg.SenderId == "" {
		return nil, ErrEmptySender
	}
	start := a.clock.Now()

	fields := []zap.Field{zap.String("user_id", msg.SenderId)}
	if rc := models.GetRequestContext(ctx); rc != nil {
		fields = append(fields,
			zap.String("request_id", rc.RequestId),
			zap.String("message_id", rc.MessageId),
			zap.String("channel", rc.Channel))
	}
	zap.L().Debug("Processing inbound message", fields...)

	user, err := a.store.GetOrCreateUser(ctx, msg.SenderId)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	st := &turnState{
		user:    user,
		message: a.normalizer.Message(strings.TrimSpace(msg.Text)),
		outcome: models.OutcomeAnswered,
	}

	st.window, err = dialogue.LoadWindow(ctx, a.store, user.Id, a.historyWindow)
	if err != nil {
		zap.L().Warn("Failed to load conversation history, continuing without it",
			zap.String("user_id", user.Id),
			zap.Error(err))
		st.window = dialogue.NewWindow(a.historyWindow, nil)
	}
	last := st.window.Latest()
	st.followUp = dialogue.IsFollowUp(st.message.Normalized, last, start, a.followUpWindow)

	st.result = a.classify(ctx, st.message, last, st.followUp)

	status, err := a.quota.CheckLimit(ctx, user.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !status.Allowed {
		a.metrics.QuotaDenied(string(status.Tier))
		zap.L().Info("Daily quota exceeded",
			zap.String("user_id", user.Id),
			zap.Int("limit", status.Limit))
		return &models.Reply{
			RecipientId: msg.SenderId,
			Text:        quotaExceededText(status),
			Intent:      string(st.result.Intent),
			Outcome:     models.OutcomeQuotaExceeded,
		}, nil
	}

	a.route(ctx, st)
	a.record(ctx, st, start)

	a.metrics.MessageProcessed(string(st.result.Intent))
	return &models.Reply{
		RecipientId: msg.SenderId,
		Text:        st.text,
		Intent:      string(st.result.Intent),
		Outcome:     st.outcome,
	}, nil
}

func (a *Assistant) classify(ctx context.Context, msg dialogue.Message, last *models.ConversationTurn, followUp bool) intent.Result {
	if result, ok := intent.MatchCommand(msg.Normalized); ok {
		return result
	}

	var prior *models.ConversationTurn
	if followUp {
		prior = last
	}
	result := a.classifier.Classify(ctx, msg.Raw, msg.Normalized, prior)
	if result.Fallback {
		a.metrics.ClassifierFallback()
	}
	return result
}

func (a *Assistant) route(ctx context.Context, st *turnState) {
	authenticated := !a.handshake.RequiresAuthentication(st.user)

	switch st.result.Intent {
	case intent.Authentication:
		if authenticated && st.result.Command == "" {
			st.text = alreadyConnectedText()
			return
		}
		challenge := a.handshake.IssueChallenge(ctx, st.user.Id)
		st.text = loginPromptText(challenge)
		return
	case intent.LoginDone:
		a.completeHandshake(ctx, st)
		return
	case intent.Help:
		st.text = helpText(authenticated)
		return
	}

	needsData := st.result.Intent.RequiresPortfolioData() ||
		(st.result.Fallback && intent.MentionsPortfolio(st.message.Normalized))
	if !needsData {
		a.generate(ctx, st, authenticated, nil)
		return
	}

	if !authenticated {
		challenge := a.handshake.IssueChallenge(ctx, st.user.Id)
		st.text = authRequiredText(challenge)
		st.outcome = models.OutcomeAuthenticationRequired
		return
	}

	snapshot := a.fetchSnapshot(ctx, st.user.Id, st.user.Auth.AccessToken)
	if snapshot.SessionRejected {
		a.reauthenticate(ctx, st)
		return
	}
	metrics := portfolio.Compute(snapshot.Snapshot)

	switch st.result.Command {
	case intent.CommandPortfolio:
		st.text = portfolioSummaryText(metrics)
	case intent.CommandPnL:
		st.text = pnlSummaryText(metrics)
	default:
		if !a.generate(ctx, st, authenticated, &metrics) {
			st.text = portfolioSummaryText(metrics)
		}
	}
	if !snapshot.Complete() {
		st.text += partialDataNote()
	}
}

func (a *Assistant) completeHandshake(ctx context.Context, st *turnState) {
	credential, err := a.handshake.CompleteHandshake(ctx, st.user.Id)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, auth.ErrNoRecentLogin):
			outcome = "no_recent_login"
		case errors.Is(err, auth.ErrExchangeFailed):
			outcome = "exchange_failed"
		case failure.IsTransient(err):
			outcome = "transient"
		}
		a.metrics.Handshake(outcome)
		zap.L().Info("Handshake not completed",
			zap.String("user_id", st.user.Id),
			zap.String("outcome", outcome),
			zap.Error(err))
		if failure.IsTransient(err) {
			st.text = handshakeRetryText()
		} else {
			st.text = handshakeFailedText()
		}
		st.outcome = models.OutcomeHandshakeFailed
		return
	}
	a.metrics.Handshake("success")

	snapshot := a.fetchSnapshot(ctx, st.user.Id, credential.AccessToken)
	st.text = welcomeText(len(snapshot.Holdings), !snapshot.Complete())
}

// reauthenticate handles a credential the brokerage no longer accepts: it is
// cleared and the user gets a fresh login link.
func (a *Assistant) reauthenticate(ctx context.Context, st *turnState) {
	a.metrics.Handshake("session_rejected")
	if err := a.handshake.RevokeCredential(ctx, st.user.Id); err != nil {
		zap.L().Error("Failed to clear rejected credential",
			zap.String("user_id", st.user.Id),
			zap.Error(err))
	}

	challenge := a.handshake.IssueChallenge(ctx, st.user.Id)
	st.text = sessionExpiredText(challenge)
	st.outcome = models.OutcomeAuthenticationRequired
}

// fetchSnapshot loads broker data under a timeout and stores the trades it
// returned. Failed sub-fetches come back empty.
func (a *Assistant) fetchSnapshot(ctx context.Context, userId, accessToken string) *models.BrokerSnapshot {
	fetchCtx, cancel := context.WithTimeout(ctx, a.brokerFetchTimeout)
	defer cancel()

	snapshot := broker.FetchSnapshot(fetchCtx, a.broker, accessToken, a.clock.Now())
	for _, resource := range snapshot.Failed {
		a.metrics.BrokerFetchFailed(resource)
	}

	if len(snapshot.Trades) > 0 {
		stored, err := portfolio.IngestTrades(ctx, a.store, userId, snapshot.Trades)
		if err != nil {
			zap.L().Warn("Trade sync incomplete",
				zap.String("user_id", userId),
				zap.Int("stored", stored),
				zap.Error(err))
		}
	}
	return snapshot
}

// generate asks the text generator for a reply. It reports false, leaving
// a fallback text in place, when generation fails.
func (a *Assistant) generate(ctx context.Context, st *turnState, authenticated bool, metrics *portfolio.Metrics) bool {
	dctx := dialogue.Assemble(st.user, authenticated, st.message, st.window, st.result, st.followUp, metrics)

	gen, err := a.generator.Generate(ctx, systemPrompt, generationPrompt(dctx, a.clock.Now()))
	if err != nil || gen == nil || strings.TrimSpace(gen.Text) == "" {
		zap.L().Warn("Response generation failed",
			zap.String("user_id", st.user.Id),
			zap.String("intent", string(st.result.Intent)),
			zap.Error(err))
		if st.result.Intent == intent.Greeting {
			st.text = helpText(authenticated)
		} else {
			st.text = unavailableText()
		}
		return false
	}

	st.text = strings.TrimSpace(gen.Text)
	st.tokensUsed = gen.TokensUsed()
	return true
}

// record appends the turn, counts usage and updates dialogue state.
func (a *Assistant) record(ctx context.Context, st *turnState, start time.Time) {
	now := a.clock.Now()
	userId := st.user.Id

	turn := models.ConversationTurn{
		Id:             uuid.New().String(),
		UserId:         userId,
		UserMessage:    st.message.Raw,
		NormalizedText: st.message.Normalized,
		ResponseText:   st.text,
		Intent:         string(st.result.Intent),
		Confidence:     st.result.Confidence,
		Entities:       st.result.Entities,
		IsFollowUp:     st.followUp || st.result.IsFollowUp,
		TokensUsed:     st.tokensUsed,
		ResponseTimeMs: now.Sub(start).Milliseconds(),
		CreatedAt:      now,
	}
	if err := a.store.AppendTurn(ctx, turn); err != nil {
		zap.L().Error("Failed to store conversation turn",
			zap.String("user_id", userId),
			zap.Error(err))
	}

	if _, err := a.quota.RecordUsage(ctx, userId); err != nil {
		zap.L().Error("Failed to record usage",
			zap.String("user_id", userId),
			zap.Error(err))
	}

	_, err := a.store.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Dialogue.CurrentTopic = string(st.result.Intent)
		u.Dialogue.MessageCount++
		u.Dialogue.LastMessageAt = now
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to update dialogue state",
			zap.String("user_id", userId),
			zap.Error(err))
	}
}
