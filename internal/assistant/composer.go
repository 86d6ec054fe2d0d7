package assistant

import (
	"fmt"
	"strings"
	"time"

	"tradechat-go/internal/auth"
	"tradechat-go/internal/dialogue"
	"tradechat-go/internal/intent"
	"tradechat-go/internal/models"
	"tradechat-go/internal/portfolio"
	"tradechat-go/internal/quota"
)

// overviewHoldings bounds the "top holdings" list in the overview.
const overviewHoldings = 3

const systemPrompt = `You are TradeChat, a concise assistant for an Indian retail investor's stock portfolio.
Answer using only the portfolio data provided. Use ₹ for amounts.
Keep replies short enough for a chat message. Do not invent prices or holdings.
When asked for advice, give balanced general observations and remind the user that this is not financial advice.`

func helpText(authenticated bool) string {
	if !authenticated {
		return strings.Join([]string{
			"👋 I can answer questions about your stock portfolio.",
			"",
			"To get started, connect your broker account:",
			"• Send *login* to get a secure login link",
			"• After logging in, reply *done*",
		}, "\n")
	}
	return strings.Join([]string{
		"Here's what you can ask me:",
		"• *portfolio* or *p*: holdings overview",
		"• *pnl*: profit and loss summary",
		"• \"How is TCS doing?\": a specific stock",
		"• \"How much cash do I have?\": available margin",
		"• *login*: reconnect your broker account",
	}, "\n")
}

func loginPromptText(challenge *auth.Challenge) string {
	return fmt.Sprintf("🔐 Connect your broker account using this link:\n%s\n\nAfter you finish logging in, reply *done*.", challenge.LoginURL)
}

func authRequiredText(challenge *auth.Challenge) string {
	return fmt.Sprintf("To see your portfolio I need access to your broker account.\n\nLog in here:\n%s\n\nThen reply *done*.", challenge.LoginURL)
}

func alreadyConnectedText() string {
	return "✅ Your broker account is already connected. Ask me about your portfolio, or send *help*."
}

func welcomeText(holdingsCount int, partial bool) string {
	text := fmt.Sprintf("✅ Connected! I can see %d holdings in your portfolio.\n\nTry *portfolio*, *pnl*, or ask about a stock.", holdingsCount)
	if partial {
		text += "\n\n(Some account data could not be loaded just now.)"
	}
	return text
}

func handshakeFailedText() string {
	return "❌ I couldn't complete the login. Please send *login* for a fresh link, finish logging in within 5 minutes, then reply *done*."
}

func handshakeRetryText() string {
	return "⚠️ Your login went through, but I couldn't save it because of a temporary problem. Please wait a moment, send *login* for a fresh link, then reply *done*."
}

func sessionExpiredText(challenge *auth.Challenge) string {
	return fmt.Sprintf("🔐 Your broker session has expired or was revoked.\n\nLog in again here:\n%s\n\nThen reply *done*.", challenge.LoginURL)
}

func quotaExceededText(status *quota.Status) string {
	text := fmt.Sprintf("⏳ You've used all %d questions for today. Your limit resets at midnight.", status.Limit)
	if status.Tier != models.TierPro {
		text += "\n\nUpgrade to Pro for a higher daily limit."
	}
	return text
}

func unavailableText() string {
	return "Sorry, I'm having trouble answering right now. Please try again in a moment."
}

func partialDataNote() string {
	return "\n\n⚠️ Some account data could not be loaded, figures may be incomplete."
}

func portfolioSummaryText(m portfolio.Metrics) string {
	if m.Holdings.Count == 0 {
		return "📊 You don't have any holdings yet.\n\nAvailable cash: " + formatINR(m.Overall.AvailableCash)
	}

	var b strings.Builder
	b.WriteString("📊 *Portfolio Overview*\n\n")
	fmt.Fprintf(&b, "Current value: %s\n", formatINR(m.Holdings.TotalValue))
	fmt.Fprintf(&b, "Invested: %s\n", formatINR(m.Holdings.TotalInvestment))
	fmt.Fprintf(&b, "%s Total P&L: %s (%s)\n", pnlMarker(m.Holdings.TotalPnL), formatSignedINR(m.Holdings.TotalPnL), formatPercent(m.Holdings.TotalPnLPercent))
	fmt.Fprintf(&b, "Holdings: %d\n", m.Holdings.Count)
	fmt.Fprintf(&b, "Available cash: %s\n", formatINR(m.Overall.AvailableCash))

	b.WriteString("\n*Top holdings*\n")
	for _, h := range m.Holdings.LargestByValue(overviewHoldings) {
		fmt.Fprintf(&b, "• %s: %s (%s)\n", h.Symbol, formatINR(h.CurrentValue), formatPercent(h.PnLPercent))
	}
	return strings.TrimRight(b.String(), "\n")
}

func pnlSummaryText(m portfolio.Metrics) string {
	var b strings.Builder
	b.WriteString("💰 *Profit & Loss*\n\n")
	fmt.Fprintf(&b, "%s Holdings P&L: %s (%s)\n", pnlMarker(m.Holdings.TotalPnL), formatSignedINR(m.Holdings.TotalPnL), formatPercent(m.Holdings.TotalPnLPercent))
	if m.Positions.OpenCount > 0 {
		fmt.Fprintf(&b, "%s Open positions (%d): %s\n", pnlMarker(m.Positions.TotalPnL), m.Positions.OpenCount, formatSignedINR(m.Positions.TotalPnL))
	}
	if !m.Positions.DayPnL.IsZero() {
		fmt.Fprintf(&b, "Today's trading P&L: %s\n", formatSignedINR(m.Positions.DayPnL))
	}

	if len(m.Holdings.TopGainers) > 0 {
		b.WriteString("\n*Top gainers*\n")
		for _, h := range m.Holdings.TopGainers {
			fmt.Fprintf(&b, "• %s %s\n", h.Symbol, formatPercent(h.PnLPercent))
		}
	}
	if len(m.Holdings.TopLosers) > 0 {
		b.WriteString("\n*Top losers*\n")
		for _, h := range m.Holdings.TopLosers {
			fmt.Fprintf(&b, "• %s %s\n", h.Symbol, formatPercent(h.PnLPercent))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// generationPrompt renders the assembled context for the text generator.
func generationPrompt(c dialogue.Context, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", now.Format("2 Jan 2006"))
	fmt.Fprintf(&b, "Subscription: %s\n", c.Tier)
	fmt.Fprintf(&b, "Broker connected: %t\n", c.IsAuthenticated)
	fmt.Fprintf(&b, "Detected intent: %s (confidence %.2f)\n", c.Result.Intent, c.Result.Confidence)
	if c.Result.ContextNote != "" {
		fmt.Fprintf(&b, "Context note: %s\n", c.Result.ContextNote)
	}

	if turns := c.History.Turns(); len(turns) > 0 {
		b.WriteString("\nRecent conversation (most recent first):\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.UserMessage, t.ResponseText)
		}
	}

	if c.Metrics != nil {
		writeMetrics(&b, *c.Metrics, c.Result)
	}

	if c.IsFollowUp {
		b.WriteString("\nThe message is likely a follow-up to the previous exchange.\n")
	}
	fmt.Fprintf(&b, "\nUser message: %s\n", c.Message.Raw)
	if c.Message.Normalized != c.Message.Raw {
		fmt.Fprintf(&b, "(normalized: %s)\n", c.Message.Normalized)
	}
	return b.String()
}

func writeMetrics(b *strings.Builder, m portfolio.Metrics, result intent.Result) {
	b.WriteString("\nPortfolio data:\n")
	fmt.Fprintf(b, "- Holdings value %s, invested %s, P&L %s (%s), %d holdings\n",
		formatINR(m.Holdings.TotalValue), formatINR(m.Holdings.TotalInvestment),
		formatSignedINR(m.Holdings.TotalPnL), formatPercent(m.Holdings.TotalPnLPercent), m.Holdings.Count)
	fmt.Fprintf(b, "- Open positions %d, positions P&L %s, day P&L %s\n",
		m.Positions.OpenCount, formatSignedINR(m.Positions.TotalPnL), formatSignedINR(m.Positions.DayPnL))
	fmt.Fprintf(b, "- Available cash %s, total capital %s, utilization %s\n",
		formatINR(m.Overall.AvailableCash), formatINR(m.Overall.TotalCapital), m.Overall.UtilizationPercent.StringFixed(2)+"%")

	for _, h := range m.Holdings.TopGainers {
		fmt.Fprintf(b, "- Gainer %s %s\n", h.Symbol, formatPercent(h.PnLPercent))
	}
	for _, h := range m.Holdings.TopLosers {
		fmt.Fprintf(b, "- Loser %s %s\n", h.Symbol, formatPercent(h.PnLPercent))
	}

	for _, e := range result.Entities {
		if e.Type != "stock" {
			continue
		}
		h, ok := m.Holdings.Find(e.Value)
		if !ok {
			fmt.Fprintf(b, "- %s is not in the portfolio\n", e.Value)
			continue
		}
		fmt.Fprintf(b, "- %s: qty %s, avg %s, last %s, value %s, P&L %s (%s), day change %s\n",
			h.Symbol, h.Quantity.String(), formatINR(h.AveragePrice), formatINR(h.LastPrice),
			formatINR(h.CurrentValue), formatSignedINR(h.PnL), formatPercent(h.PnLPercent), formatPercent(h.DayChangePercent))
	}
}
