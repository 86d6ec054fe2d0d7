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

package anthropic

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
	"tradechat-go/internal/llm"
	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

const (
	apiVersion       = "2023-06-01"
	DefaultMaxTokens = 1024
	classifyTokens   = 300
)

// Compile-time check: *Service must satisfy llm.Generator.
var _ llm.Generator = (*Service)(nil)

type Service struct {
	client    *http.Client
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
}

func NewService(cfg models.AnthropicConfig) (*Service, error) {
	if cfg.ApiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Service{
		client:    &http.Client{Timeout: timeout},
		apiKey:    cfg.ApiKey,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens: maxTokens,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the text.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	gen, err := s.send(ctx, "classify", messagesRequest{
		Model:     s.model,
		MaxTokens: classifyTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return gen.Text, nil
}

func (s *Service) Generate(ctx context.Context, system, prompt string) (*models.Generation, error) {
	return s.send(ctx, "generate", messagesRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
}

func (s *Service) send(ctx context.Context, op string, payload messagesRequest) (*models.Generation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, failure.Transient(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Transient(op, fmt.Errorf("unable to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Type + ": " + apiErr.Error.Message
		}
		return nil, failure.FromStatus(op, resp.StatusCode, fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, msg))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, failure.Terminal(op, fmt.Errorf("unable to decode response: %w", err))
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	gen := &models.Generation{
		Text:         text.String(),
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
		Model:        decoded.Model,
	}

	zap.L().Debug("Anthropic request completed",
		zap.String("op", op),
		zap.String("model", gen.Model),
		zap.Int("input_tokens", gen.InputTokens),
		zap.Int("output_tokens", gen.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))
	return gen, nil
}
