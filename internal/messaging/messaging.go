package messaging

import (
	"context"

	"tradechat-go/internal/models"
)

// Sender delivers an outbound reply to the user's chat channel.
type Sender interface {
	Send(ctx context.Context, msg models.OutboundMessage) (*models.Delivery, error)
}
