package dialogue

import (
	"strings"
	"time"

	"tradechat-go/internal/models"
)

// DefaultFollowUpWindow is how recent the prior turn must be for a message to
// continue it.
const DefaultFollowUpWindow = 5 * time.Minute

// shortMessageTokens is the word count at or below which a recent message is
// taken as a continuation.
const shortMessageTokens = 5

var continuationWords = map[string]bool{
	"also":    true,
	"and":     true,
	"more":    true,
	"that":    true,
	"those":   true,
	"them":    true,
	"it":      true,
	"same":    true,
	"else":    true,
	"too":     true,
	"again":   true,
	"instead": true,
	"about":   true,
}

// IsFollowUp guesses whether text continues lastTurn. This is a heuristic:
// a short or continuation-worded message sent within window of the prior turn
// counts, nothing more. It is never authoritative.
func IsFollowUp(text string, lastTurn *models.ConversationTurn, now time.Time, window time.Duration) bool {
	if lastTurn == nil {
		return false
	}

	elapsed := now.Sub(lastTurn.CreatedAt)
	if elapsed < 0 || elapsed > window {
		return false
	}

	tokens := strings.Fields(text)
	if len(tokens) <= shortMessageTokens {
		return true
	}
	for _, token := range tokens {
		if continuationWords[strings.ToLower(strings.Trim(token, ".,!?;:'\""))] {
			return true
		}
	}
	return false
}
