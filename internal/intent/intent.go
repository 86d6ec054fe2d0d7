package intent

import (
	"strings"

	"tradechat-go/internal/models"
)

// Intent is the closed set of things a user message can ask for.
type Intent string

const (
	Greeting          Intent = "greeting"
	Authentication    Intent = "authentication"
	LoginDone         Intent = "done"
	Help              Intent = "help"
	PortfolioOverview Intent = "portfolio_overview"
	ProfitLoss        Intent = "pnl_query"
	StockSpecific     Intent = "stock_specific"
	Performance       Intent = "performance"
	Cash              Intent = "cash_query"
	InvestmentAdvice  Intent = "investment_advice"
	Clarification     Intent = "clarification"
	Other             Intent = "other"
)

// All lists every intent in prompt order.
var All = []Intent{
	Greeting, Authentication, LoginDone, Help,
	PortfolioOverview, ProfitLoss, StockSpecific, Performance,
	Cash, InvestmentAdvice, Clarification, Other,
}

// aliases accepts the older or looser tags a model may still emit.
var aliases = map[string]Intent{
	"portfolio_query": PortfolioOverview,
	"portfolio":       PortfolioOverview,
	"overview":        PortfolioOverview,
	"pnl":             ProfitLoss,
	"profit_loss":     ProfitLoss,
	"stock_quote":     StockSpecific,
	"stock":           StockSpecific,
	"cash":            Cash,
	"advice":          InvestmentAdvice,
	"follow_up":       Clarification,
	"login":           Authentication,
}

// Parse maps a tag to a known Intent. Unknown tags report false.
func Parse(tag string) (Intent, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, known := range All {
		if tag == string(known) {
			return known, true
		}
	}
	if alias, ok := aliases[tag]; ok {
		return alias, true
	}
	return "", false
}

func (i Intent) String() string {
	return string(i)
}

// RequiresPortfolioData reports whether answering needs a fresh snapshot.
// Clarification is included since follow-ups may reference portfolio facts.
func (i Intent) RequiresPortfolioData() bool {
	switch i {
	case PortfolioOverview, ProfitLoss, StockSpecific, Performance, Cash, InvestmentAdvice, Clarification:
		return true
	}
	return false
}

// Result is a classified message.
type Result struct {
	Intent      Intent
	Confidence  float64
	Entities    []models.Entity
	IsFollowUp  bool
	ContextNote string
	// Command is set when the message matched a fixed command word.
	Command string
	// Fallback is set when the classifier output could not be used.
	Fallback bool
}

// FallbackResult is the safe default for unusable classifier output.
func FallbackResult() Result {
	return Result{
		Intent:     Other,
		Confidence: 0.5,
		Entities:   []models.Entity{},
		IsFollowUp: false,
		Fallback:   true,
	}
}

const (
	CommandLogin     = "login"
	CommandDone      = "done"
	CommandPortfolio = "portfolio"
	CommandPnL       = "pnl"
	CommandHelp      = "help"
)

var commands = map[string]struct {
	name   string
	intent Intent
}{
	"login":     {CommandLogin, Authentication},
	"connect":   {CommandLogin, Authentication},
	"done":      {CommandDone, LoginDone},
	"portfolio": {CommandPortfolio, PortfolioOverview},
	"p":         {CommandPortfolio, PortfolioOverview},
	"pnl":       {CommandPnL, ProfitLoss},
	"profit":    {CommandPnL, ProfitLoss},
	"help":      {CommandHelp, Help},
}

// MatchCommand recognises the fixed single-word commands.
func MatchCommand(text string) (Result, bool) {
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return Result{}, false
	}
	return Result{
		Intent:     cmd.intent,
		Confidence: 1.0,
		Entities:   []models.Entity{},
		Command:    cmd.name,
	}, true
}

var portfolioKeywords = []string{
	"portfolio", "holdings", "stocks", "pnl", "profit", "loss",
	"performance", "investment", "value", "cash", "margin",
}

// MentionsPortfolio reports whether text contains a portfolio keyword.
func MentionsPortfolio(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range portfolioKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
