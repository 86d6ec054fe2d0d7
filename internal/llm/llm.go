package llm

import (
	"context"

	"tradechat-go/internal/models"
)

// Generator is the text-generation collaborator. Complete returns raw text
// for the intent classifier; Generate produces a reply with token counts.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Generate(ctx context.Context, system, prompt string) (*models.Generation, error)
}
