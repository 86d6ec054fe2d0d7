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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradechat-go/internal/api"
	"tradechat-go/internal/dedupe"
	"tradechat-go/internal/messaging"
	"tradechat-go/internal/models"
	"tradechat-go/internal/store"
	"tradechat-go/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxFormBytes = 64 << 10

// Processor answers one inbound message.
type Processor interface {
	Process(ctx context.Context, msg models.InboundMessage) (*models.Reply, error)
}

// TokenIngester accepts login callbacks.
type TokenIngester interface {
	IngestToken(cb models.LoginCallback) bool
}

// Config contains the handlers' collaborators
type Config struct {
	Assistant Processor
	Sender    messaging.Sender
	Logins    TokenIngester
	Accounts  *api.AccountService
	Dedupe    dedupe.Guard
	Metrics   *telemetry.Metrics
}

type Server struct {
	assistant Processor
	sender    messaging.Sender
	logins    TokenIngester
	accounts  *api.AccountService
	dedupe    dedupe.Guard
	metrics   *telemetry.Metrics
}

func New(cfg Config) *Server {
	if cfg.Dedupe == nil {
		cfg.Dedupe = dedupe.NewMemoryGuard(nil, dedupe.DefaultTTL)
	}
	return &Server{
		assistant: cfg.Assistant,
		sender:    cfg.Sender,
		logins:    cfg.Logins,
		accounts:  cfg.Accounts,
		dedupe:    cfg.Dedupe,
		metrics:   cfg.Metrics,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Post("/webhook", s.handleWebhook)
	r.Get("/auth/callback", s.handleLoginCallback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		r.Get("/users/{id}/stats", s.handleUserStats)
		r.Get("/users/{id}/trades", s.handleUserTrades)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook receives a chat message, answers it and sends the reply.
// Quota denials are still a 200; only a failed delivery is a 502.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	msg := models.InboundMessage{
		MessageId: r.PostForm.Get("MessageSid"),
		SenderId:  strings.TrimPrefix(r.PostForm.Get("From"), "whatsapp:"),
		Text:      r.PostForm.Get("Body"),
	}
	if msg.SenderId == "" {
		writeError(w, http.StatusBadRequest, "missing sender")
		return
	}

	ctx := models.WithRequestContext(r.Context(), &models.RequestContext{
		RequestId:  chiMiddleware.GetReqID(r.Context()),
		MessageId:  msg.MessageId,
		SenderId:   msg.SenderId,
		Channel:    "whatsapp",
		ReceivedAt: time.Now(),
	})

	first, err := s.dedupe.FirstDelivery(ctx, msg.MessageId)
	if err != nil {
		zap.L().Warn("Delivery dedupe unavailable, processing anyway",
			zap.String("message_id", msg.MessageId),
			zap.Error(err))
		first = true
	}
	if !first {
		s.metrics.DuplicateDelivery()
		zap.L().Info("Skipping redelivered message", zap.String("message_id", msg.MessageId))
		writeJSON(w, http.StatusOK, map[string]string{"status": string(models.OutcomeDuplicate)})
		return
	}

	reply, err := s.assistant.Process(ctx, msg)
	if err != nil {
		zap.L().Error("Failed to process message",
			zap.String("sender", msg.SenderId),
			zap.Error(err))
		s.releaseDelivery(ctx, msg.MessageId)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	delivery, err := s.sender.Send(ctx, models.OutboundMessage{RecipientId: reply.RecipientId, Text: reply.Text})
	if err != nil {
		s.metrics.DeliveryFailed()
		zap.L().Error("Failed to deliver reply",
			zap.String("recipient", reply.RecipientId),
			zap.String("outcome", string(reply.Outcome)),
			zap.Error(err))
		s.releaseDelivery(ctx, msg.MessageId)
		writeError(w, http.StatusBadGateway, "delivery failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    string(reply.Outcome),
		"messageId": delivery.MessageId,
	})
}

// releaseDelivery forgets a message id whose handling failed so the
// provider's retry is answered instead of skipped.
func (s *Server) releaseDelivery(ctx context.Context, messageId string) {
	if err := s.dedupe.Release(context.WithoutCancel(ctx), messageId); err != nil {
		zap.L().Warn("Failed to release delivery id",
			zap.String("message_id", messageId),
			zap.Error(err))
	}
}

const loginReceivedPage = "Login received. Go back to the chat and reply \"done\" to finish connecting your account."

func (s *Server) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := models.LoginCallback{
		RequestToken: q.Get("request_token"),
		State:        q.Get("state"),
		Status:       q.Get("status"),
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if cb.RequestToken == "" || (cb.Status != "" && cb.Status != "success") {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Login was not completed. Go back to the chat and send \"login\" to try again."))
		return
	}

	s.logins.IngestToken(cb)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(loginReceivedPage))
}

type messageRequest struct {
	SenderId string `json:"senderId"`
	Text     string `json:"text"`
}

// handleMessage runs the assistant without sending, for local testing.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SenderId == "" {
		writeError(w, http.StatusBadRequest, "senderId is required")
		return
	}

	ctx := models.WithRequestContext(r.Context(), &models.RequestContext{
		RequestId:  chiMiddleware.GetReqID(r.Context()),
		SenderId:   req.SenderId,
		Channel:    "api",
		ReceivedAt: time.Now(),
	})
	reply, err := s.assistant.Process(ctx, models.InboundMessage{SenderId: req.SenderId, Text: req.Text})
	if err != nil {
		zap.L().Error("Failed to process message", zap.String("sender", req.SenderId), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.accounts.GetUserStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserTrades(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	trades, err := s.accounts.GetTradeHistory(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, api.ErrUserIdRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
