package kite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradechat-go/internal/broker"
	"tradechat-go/internal/failure"
	"tradechat-go/internal/models"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return newServiceWithClient(models.KiteConfig{
		ApiKey:    "key",
		ApiSecret: "secret",
		BaseURL:   server.URL,
		LoginURL:  "https://kite.zerodha.com/connect/login",
	}, http.Client{Timeout: 5 * time.Second})
}

func TestNewService_RequiresCredentials(t *testing.T) {
	if _, err := NewService(models.KiteConfig{ApiKey: "key"}); err == nil {
		t.Error("Expected error without api secret")
	}
}

func TestLoginURL(t *testing.T) {
	s := newServiceWithClient(models.KiteConfig{
		ApiKey:   "key",
		LoginURL: "https://kite.zerodha.com/connect/login",
	}, http.Client{})

	got := s.LoginURL("session_abc")
	for _, want := range []string{"v=3", "api_key=key", "redirect_params=state%3Dsession_abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("LoginURL() = %q, missing %q", got, want)
		}
	}
}

func TestExchangeToken(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/token" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Kite-Version") != "3" {
			t.Error("Missing X-Kite-Version header")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		// sha256("key" + "req" + "secret")
		if r.PostForm.Get("checksum") != (&Service{apiKey: "key", apiSecret: "secret"}).checksum("req") {
			t.Error("Unexpected checksum")
		}
		w.Write([]byte(`{"status":"success","data":{"user_id":"AB1234","user_name":"Test User","access_token":"acc"}}`))
	})

	session, err := s.ExchangeToken(context.Background(), "req")
	if err != nil {
		t.Fatalf("ExchangeToken() error = %v", err)
	}
	if session.AccessToken != "acc" || session.BrokerUserId != "AB1234" {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestExchangeToken_TokenExceptionIsTerminal(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"error","message":"Token is invalid or has expired.","error_type":"TokenException"}`))
	})

	_, err := s.ExchangeToken(context.Background(), "req")
	if err == nil {
		t.Fatal("Expected error")
	}
	if !failure.IsTerminal(err) || !IsTokenError(err) {
		t.Errorf("Expected terminal token error, got %v", err)
	}
}

func TestDataCall_RejectedSessionMatchesBrokerError(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"error","message":"Incorrect api_key or access_token.","error_type":"TokenException"}`))
	})

	_, err := s.Holdings(context.Background(), "revoked")
	if !errors.Is(err, broker.ErrSessionRejected) || !failure.IsTerminal(err) {
		t.Fatalf("Expected terminal session rejection, got %v", err)
	}

	snapshot := broker.FetchSnapshot(context.Background(), s, "revoked", time.Now())
	if !snapshot.SessionRejected || len(snapshot.Failed) != 5 {
		t.Errorf("Expected rejected snapshot with 5 failures, got rejected=%t failed=%v", snapshot.SessionRejected, snapshot.Failed)
	}
}

func TestDataCall_OtherErrorsAreNotSessionRejections(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"status":"error","message":"upstream","error_type":"NetworkException"}`))
	})

	_, err := s.Holdings(context.Background(), "acc")
	if errors.Is(err, broker.ErrSessionRejected) || IsTokenError(err) {
		t.Errorf("Expected non-token error, got %v", err)
	}
	if !failure.IsTransient(err) {
		t.Errorf("Expected 502 to be transient, got %v", err)
	}
}

func TestHoldings(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token key:acc" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"status":"success","data":[
			{"tradingsymbol":"TCS","exchange":"NSE","quantity":10,"average_price":3200.5,"last_price":3400,"close_price":3390}
		]}`))
	})

	holdings, err := s.Holdings(context.Background(), "acc")
	if err != nil {
		t.Fatalf("Holdings() error = %v", err)
	}
	if len(holdings) != 1 || holdings[0].TradingSymbol != "TCS" {
		t.Fatalf("Unexpected holdings: %+v", holdings)
	}
	if holdings[0].AveragePrice.String() != "3200.5" || holdings[0].Quantity.IntPart() != 10 {
		t.Errorf("Unexpected holding values: %+v", holdings[0])
	}
}

func TestPositionsAndMargins(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/portfolio/positions":
			w.Write([]byte(`{"status":"success","data":{"net":[{"tradingsymbol":"INFY","quantity":5,"pnl":120.5}],"day":[]}}`))
		case "/user/margins":
			w.Write([]byte(`{"status":"success","data":{"equity":{"enabled":true,"net":99000,"available":{"cash":100000,"live_balance":99000}}}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	positions, err := s.Positions(ctx, "acc")
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	if len(positions.Net) != 1 || positions.Net[0].PnL.String() != "120.5" {
		t.Errorf("Unexpected positions: %+v", positions)
	}

	margins, err := s.Margins(ctx, "acc")
	if err != nil {
		t.Fatalf("Margins() error = %v", err)
	}
	if margins.Equity == nil || margins.Equity.Available.Cash.IntPart() != 100000 {
		t.Errorf("Unexpected margins: %+v", margins)
	}
	if margins.Commodity != nil {
		t.Error("Expected missing commodity segment to stay nil")
	}
}

func TestTrades_TimestampFallback(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"trade_id":"T1","order_id":"O1","tradingsymbol":"TCS","exchange":"NSE","product":"CNC","transaction_type":"BUY","quantity":1,"average_price":3400,"fill_timestamp":"2025-03-10 10:15:00","order_timestamp":"2025-03-10 10:14:58"},
			{"trade_id":"T2","order_id":"O2","tradingsymbol":"INFY","exchange":"NSE","product":"MIS","transaction_type":"SELL","quantity":3,"average_price":1500,"fill_timestamp":null,"order_timestamp":"2025-03-10 11:00:00"}
		]}`))
	})

	trades, err := s.Trades(context.Background(), "acc")
	if err != nil {
		t.Fatalf("Trades() error = %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(trades))
	}

	wantFill := time.Date(2025, 3, 10, 4, 45, 0, 0, time.UTC)
	if !trades[0].TradedAt.Equal(wantFill) {
		t.Errorf("TradedAt = %v, want %v", trades[0].TradedAt, wantFill)
	}
	wantOrder := time.Date(2025, 3, 10, 5, 30, 0, 0, time.UTC)
	if !trades[1].TradedAt.Equal(wantOrder) {
		t.Errorf("Expected order timestamp fallback %v, got %v", wantOrder, trades[1].TradedAt)
	}
	if trades[1].Side != "SELL" || trades[1].Price.IntPart() != 1500 {
		t.Errorf("Unexpected trade: %+v", trades[1])
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"server error", http.StatusBadGateway, `{"status":"error","message":"upstream","error_type":"NetworkException"}`, true},
		{"rate limited", http.StatusTooManyRequests, `{"status":"error","message":"slow down","error_type":"NetworkException"}`, true},
		{"bad input", http.StatusBadRequest, `{"status":"error","message":"bad","error_type":"InputException"}`, false},
		{"non json", http.StatusServiceUnavailable, `<html>down</html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := s.Orders(context.Background(), "acc")
			if err == nil {
				t.Fatal("Expected error")
			}
			if failure.IsTransient(err) != tt.transient {
				t.Errorf("IsTransient() = %v, want %v (%v)", failure.IsTransient(err), tt.transient, err)
			}
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	s := newServiceWithClient(models.KiteConfig{ApiKey: "key", BaseURL: server.URL}, http.Client{Timeout: time.Second})
	_, err := s.Holdings(context.Background(), "acc")

	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Kind != failure.KindTransient {
		t.Errorf("Expected transient failure, got %v", err)
	}
}
