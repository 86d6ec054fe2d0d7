package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradechat-go/internal/failure"
	"tradechat-go/internal/messaging"
	"tradechat-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy messaging.Sender.
var _ messaging.Sender = (*Service)(nil)

// MaxBodyLength is the Cloud API limit for a text message body.
const MaxBodyLength = 4096

type Service struct {
	client        *http.Client
	accessToken   string
	phoneNumberId string
	baseURL       string
	dryRun        bool
}

func NewService(cfg models.WhatsAppConfig) (*Service, error) {
	if !cfg.DryRun && (cfg.AccessToken == "" || cfg.PhoneNumberId == "") {
		return nil, fmt.Errorf("whatsapp access token and phone number id are required unless dry-run is enabled")
	}

	return &Service{
		client:        &http.Client{Timeout: 30 * time.Second},
		accessToken:   cfg.AccessToken,
		phoneNumberId: cfg.PhoneNumberId,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		dryRun:        cfg.DryRun,
	}, nil
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		Id string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (s *Service) Send(ctx context.Context, msg models.OutboundMessage) (*models.Delivery, error) {
	if msg.RecipientId == "" {
		return nil, failure.Terminal("send message", fmt.Errorf("recipient is required"))
	}
	text := truncate(msg.Text, MaxBodyLength)

	if s.dryRun {
		id := "dryrun-" + uuid.New().String()
		zap.L().Info("Dry-run outbound message",
			zap.String("recipient", msg.RecipientId),
			zap.String("message_id", id),
			zap.String("text", text))
		return &models.Delivery{MessageId: id}, nil
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               msg.RecipientId,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, failure.Transient("send message", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Transient("send message", fmt.Errorf("unable to read response: %w", err))
	}

	var decoded sendResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil {
			reason = fmt.Sprintf("%s (code %d)", decoded.Error.Message, decoded.Error.Code)
		}
		return nil, failure.FromStatus("send message", resp.StatusCode, fmt.Errorf("whatsapp returned status %d: %s", resp.StatusCode, reason))
	}
	if decodeErr != nil {
		return nil, failure.Terminal("send message", fmt.Errorf("unable to decode response: %w", decodeErr))
	}
	if len(decoded.Messages) == 0 {
		return nil, failure.Terminal("send message", fmt.Errorf("whatsapp returned no message id"))
	}

	zap.L().Debug("Message delivered",
		zap.String("recipient", msg.RecipientId),
		zap.String("message_id", decoded.Messages[0].Id))
	return &models.Delivery{MessageId: decoded.Messages[0].Id}, nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
