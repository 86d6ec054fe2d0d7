package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tradechat-go/internal/models"
)

type stubCompleter struct {
	output string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.output, s.err
}

func assertFallback(t *testing.T, result Result) {
	t.Helper()
	if result.Intent != Other {
		t.Errorf("Expected fallback intent other, got %s", result.Intent)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Expected fallback confidence 0.5, got %v", result.Confidence)
	}
	if len(result.Entities) != 0 {
		t.Errorf("Expected no entities, got %v", result.Entities)
	}
	if result.IsFollowUp {
		t.Error("Expected fallback isFollowUp=false")
	}
	if !result.Fallback {
		t.Error("Expected Fallback flag")
	}
}

func TestClassify_ValidOutput(t *testing.T) {
	completer := &stubCompleter{
		output: `Sure! {"intent": "stock_specific", "confidence": 0.92, "entities": [{"type": "stock", "value": "TCS"}, {"type": "", "value": "x"}], "isFollowUp": true, "contextNote": "asks about TCS"}`,
	}
	prior := &models.ConversationTurn{UserMessage: "how is my portfolio", Intent: "portfolio_overview", CreatedAt: time.Now()}

	result := NewClassifier(completer).Classify(context.Background(), "what about TCS", "what about TCS", prior)

	if result.Intent != StockSpecific {
		t.Errorf("Expected stock_specific, got %s", result.Intent)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Expected confidence 0.92, got %v", result.Confidence)
	}
	if len(result.Entities) != 1 || result.Entities[0].Value != "TCS" {
		t.Errorf("Expected single TCS entity, got %+v", result.Entities)
	}
	if !result.IsFollowUp {
		t.Error("Expected follow-up to be kept when a prior turn was given")
	}
	if result.Fallback {
		t.Error("Expected non-fallback result")
	}
	if !strings.Contains(completer.prompt, "how is my portfolio") {
		t.Error("Expected prompt to include the prior question")
	}
}

func TestClassify_PromptIncludesBothForms(t *testing.T) {
	completer := &stubCompleter{output: `{"intent": "pnl_query", "confidence": 0.8}`}

	NewClassifier(completer).Classify(context.Background(), "shwo my profitt", "show my profit", nil)

	if !strings.Contains(completer.prompt, "shwo my profitt") {
		t.Error("Expected prompt to include original text")
	}
	if !strings.Contains(completer.prompt, "show my profit") {
		t.Error("Expected prompt to include normalized text")
	}
	if strings.Contains(completer.prompt, "Previous question") {
		t.Error("Expected no prior question without a follow-up")
	}
}

func TestClassify_FollowUpClearedWithoutPrior(t *testing.T) {
	completer := &stubCompleter{output: `{"intent": "cash_query", "confidence": 0.7, "isFollowUp": true}`}

	result := NewClassifier(completer).Classify(context.Background(), "cash?", "cash?", nil)

	if result.Intent != Cash {
		t.Errorf("Expected cash_query, got %s", result.Intent)
	}
	if result.IsFollowUp {
		t.Error("Expected isFollowUp=false without a prior turn")
	}
}

func TestClassify_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{"collaborator error", "", errors.New("timeout")},
		{"not json", "I think this is about stocks", nil},
		{"broken json", `{"intent": "pnl_query", "confidence": }`, nil},
		{"unknown intent", `{"intent": "buy_now", "confidence": 0.9}`, nil},
		{"confidence too high", `{"intent": "pnl_query", "confidence": 1.7}`, nil},
		{"missing confidence", `{"intent": "pnl_query"}`, nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &stubCompleter{output: tt.output, err: tt.err}
			result := NewClassifier(completer).Classify(context.Background(), "hello", "hello", nil)
			assertFallback(t, result)
		})
	}
}

func TestParse_Aliases(t *testing.T) {
	tests := []struct {
		tag  string
		want Intent
		ok   bool
	}{
		{"portfolio_overview", PortfolioOverview, true},
		{"  PNL_QUERY ", ProfitLoss, true},
		{"portfolio_query", PortfolioOverview, true},
		{"stock_quote", StockSpecific, true},
		{"other", Other, true},
		{"sell_everything", "", false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.tag)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Parse(%q) = (%s, %v), want (%s, %v)", tt.tag, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequiresPortfolioData(t *testing.T) {
	needs := map[Intent]bool{
		PortfolioOverview: true,
		ProfitLoss:        true,
		StockSpecific:     true,
		Performance:       true,
		Cash:              true,
		InvestmentAdvice:  true,
		Clarification:     true,
		Greeting:          false,
		Authentication:    false,
		LoginDone:         false,
		Help:              false,
		Other:             false,
	}

	for in, want := range needs {
		if got := in.RequiresPortfolioData(); got != want {
			t.Errorf("%s.RequiresPortfolioData() = %v, want %v", in, got, want)
		}
	}
	if len(needs) != len(All) {
		t.Errorf("Expected every intent covered, have %d of %d", len(needs), len(All))
	}
}

func TestMatchCommand(t *testing.T) {
	tests := []struct {
		text    string
		command string
		intent  Intent
	}{
		{"login", CommandLogin, Authentication},
		{" Connect ", CommandLogin, Authentication},
		{"DONE", CommandDone, LoginDone},
		{"p", CommandPortfolio, PortfolioOverview},
		{"profit", CommandPnL, ProfitLoss},
		{"help", CommandHelp, Help},
	}

	for _, tt := range tests {
		result, ok := MatchCommand(tt.text)
		if !ok {
			t.Errorf("Expected %q to match a command", tt.text)
			continue
		}
		if result.Command != tt.command || result.Intent != tt.intent {
			t.Errorf("MatchCommand(%q) = (%s, %s), want (%s, %s)", tt.text, result.Command, result.Intent, tt.command, tt.intent)
		}
		if result.Confidence != 1.0 {
			t.Errorf("Expected confidence 1.0 for command %q", tt.text)
		}
	}

	if _, ok := MatchCommand("show my portfolio"); ok {
		t.Error("Expected multi-word text not to match a command")
	}
}

func TestMentionsPortfolio(t *testing.T) {
	if !MentionsPortfolio("How much CASH do I have?") {
		t.Error("Expected cash to count as a portfolio keyword")
	}
	if MentionsPortfolio("good morning") {
		t.Error("Expected greeting not to mention the portfolio")
	}
}
