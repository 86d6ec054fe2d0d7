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

package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradechat-go/internal/broker"
	"tradechat-go/internal/failure"
	"tradechat-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	apiVersion     = "3"
	tokenException = "TokenException"
)

// Compile-time check: *Service must satisfy broker.Client.
var _ broker.Client = (*Service)(nil)

// APIError is an error envelope returned by Kite Connect.
type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite %s (%d): %s", e.ErrorType, e.StatusCode, e.Message)
}

// Is lets a TokenException match broker.ErrSessionRejected.
func (e *APIError) Is(target error) bool {
	return target == broker.ErrSessionRejected && e.ErrorType == tokenException
}

type Service struct {
	client    http.Client
	apiKey    string
	apiSecret string
	baseURL   string
	loginURL  string
}

func NewService(cfg models.KiteConfig) (*Service, error) {
	if cfg.ApiKey == "" || cfg.ApiSecret == "" {
		return nil, fmt.Errorf("kite api key and secret are required")
	}

	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return newServiceWithClient(cfg, httpClient), nil
}

func newServiceWithClient(cfg models.KiteConfig, httpClient http.Client) *Service {
	return &Service{
		client:    httpClient,
		apiKey:    cfg.ApiKey,
		apiSecret: cfg.ApiSecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		loginURL:  cfg.LoginURL,
	}
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   2 * timeout,
	}, nil
}

// LoginURL returns the Kite login page. state comes back on the redirect.
func (s *Service) LoginURL(state string) string {
	params := url.Values{}
	params.Set("v", apiVersion)
	params.Set("api_key", s.apiKey)
	params.Set("redirect_params", "state="+state)
	return s.loginURL + "?" + params.Encode()
}

func (s *Service) checksum(requestToken string) string {
	sum := sha256.Sum256([]byte(s.apiKey + requestToken + s.apiSecret))
	return hex.EncodeToString(sum[:])
}

func (s *Service) ExchangeToken(ctx context.Context, requestToken string) (*models.BrokerSession, error) {
	form := url.Values{}
	form.Set("api_key", s.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", s.checksum(requestToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var session sessionData
	if err := s.do(req, "exchange token", &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, failure.Terminal("exchange token", fmt.Errorf("kite returned no access token"))
	}

	zap.L().Info("Kite session created",
		zap.String("broker_user_id", session.UserId),
		zap.String("user_name", session.UserName))

	return &models.BrokerSession{
		AccessToken:  session.AccessToken,
		BrokerUserId: session.UserId,
		UserName:     session.UserName,
	}, nil
}

func (s *Service) Holdings(ctx context.Context, accessToken string) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := s.get(ctx, accessToken, "/portfolio/holdings", "fetch holdings", &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

func (s *Service) Positions(ctx context.Context, accessToken string) (*models.Positions, error) {
	var positions models.Positions
	if err := s.get(ctx, accessToken, "/portfolio/positions", "fetch positions", &positions); err != nil {
		return nil, err
	}
	return &positions, nil
}

func (s *Service) Margins(ctx context.Context, accessToken string) (*models.Margins, error) {
	var margins models.Margins
	if err := s.get(ctx, accessToken, "/user/margins", "fetch margins", &margins); err != nil {
		return nil, err
	}
	return &margins, nil
}

func (s *Service) Orders(ctx context.Context, accessToken string) ([]models.Order, error) {
	var raw []orderData
	if err := s.get(ctx, accessToken, "/orders", "fetch orders", &raw); err != nil {
		return nil, err
	}

	orders := make([]models.Order, len(raw))
	for i, o := range raw {
		orders[i] = models.Order{
			OrderId:        o.OrderId,
			TradingSymbol:  o.TradingSymbol,
			Exchange:       o.Exchange,
			Status:         o.Status,
			Side:           o.TransactionType,
			Quantity:       o.Quantity,
			Price:          o.Price,
			AveragePrice:   o.AveragePrice,
			OrderTimestamp: o.OrderTimestamp.Time,
		}
	}
	return orders, nil
}

// Trades returns today's fills. TradedAt is the fill time, falling back to
// the order time when the exchange did not report one.
func (s *Service) Trades(ctx context.Context, accessToken string) ([]models.Trade, error) {
	var raw []tradeData
	if err := s.get(ctx, accessToken, "/trades", "fetch trades", &raw); err != nil {
		return nil, err
	}

	trades := make([]models.Trade, len(raw))
	for i, t := range raw {
		tradedAt := t.FillTimestamp.Time
		if tradedAt.IsZero() {
			tradedAt = t.OrderTimestamp.Time
		}
		trades[i] = models.Trade{
			TradeId:       t.TradeId,
			OrderId:       t.OrderId,
			TradingSymbol: t.TradingSymbol,
			Exchange:      t.Exchange,
			Product:       t.Product,
			Side:          t.TransactionType,
			Quantity:      t.Quantity,
			Price:         t.AveragePrice,
			TradedAt:      tradedAt,
		}
	}
	return trades, nil
}

func (s *Service) get(ctx context.Context, accessToken, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("unable to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", s.apiKey, accessToken))
	return s.do(req, op, out)
}

// do sends req and decodes the envelope's data into out. Network failures,
// 429 and 5xx are transient; token errors and other 4xx are terminal.
func (s *Service) do(req *http.Request, op string, out any) error {
	req.Header.Set("X-Kite-Version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return failure.Transient(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.Transient(op, fmt.Errorf("unable to read response: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return failure.FromStatus(op, resp.StatusCode, fmt.Errorf("unable to decode response (status %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
		if IsTokenError(apiErr) {
			return failure.Terminal(op, apiErr)
		}
		return failure.FromStatus(op, resp.StatusCode, apiErr)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return failure.Terminal(op, fmt.Errorf("unable to decode %s data: %w", op, err))
	}
	return nil
}

// IsTokenError reports whether err is Kite rejecting the access or request token.
func IsTokenError(err error) bool {
	return errors.Is(err, broker.ErrSessionRejected)
}
