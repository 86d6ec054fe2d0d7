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

package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

// Completer is the text-generation call used for classification.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var ErrMalformedOutput = errors.New("malformed classifier output")

// Classifier turns free text into a Result. It never returns an error:
// any failure degrades to FallbackResult.
type Classifier struct {
	completer Completer
}

func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify asks the model for a structured intent. prior is the previous
// turn when the message is suspected to be a follow-up, nil otherwise.
func (c *Classifier) Classify(ctx context.Context, original, normalized string, prior *models.ConversationTurn) Result {
	raw, err := c.completer.Complete(ctx, BuildPrompt(original, normalized, prior))
	if err != nil {
		zap.L().Warn("Intent classification failed, using fallback", zap.Error(err))
		return FallbackResult()
	}

	result, err := ParseOutput(raw)
	if err != nil {
		zap.L().Warn("Unusable classifier output, using fallback",
			zap.Error(err),
			zap.Int("raw_length", len(raw)))
		return FallbackResult()
	}
	if prior == nil {
		result.IsFollowUp = false
	}
	return result
}

func BuildPrompt(original, normalized string, prior *models.ConversationTurn) string {
	tags := make([]string, len(All))
	for i, in := range All {
		tags[i] = string(in)
	}

	var b strings.Builder
	b.WriteString("Classify the user's message for a stock portfolio assistant.\n\n")
	fmt.Fprintf(&b, "Original message: %q\n", original)
	fmt.Fprintf(&b, "Normalized message: %q\n", normalized)
	if prior != nil {
		fmt.Fprintf(&b, "Previous question (this may be a follow-up): %q\n", prior.UserMessage)
		if prior.Intent != "" {
			fmt.Fprintf(&b, "Previous intent: %s\n", prior.Intent)
		}
	}
	fmt.Fprintf(&b, "\nAllowed intents: %s\n", strings.Join(tags, ", "))
	b.WriteString(`
Respond with only a JSON object of this shape:
{"intent": "<one allowed intent>", "confidence": <0.0-1.0>, "entities": [{"type": "stock", "value": "TCS"}], "isFollowUp": <true|false>, "contextNote": "<short note>"}`)
	return b.String()
}

type wireResult struct {
	Intent      string          `json:"intent"`
	Confidence  *float64        `json:"confidence"`
	Entities    []models.Entity `json:"entities"`
	IsFollowUp  bool            `json:"isFollowUp"`
	ContextNote string          `json:"contextNote"`
}

// ParseOutput extracts the JSON object from raw model text and validates it.
// Unknown intent tags and out-of-range confidences are rejected.
func ParseOutput(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("%w: no JSON object", ErrMalformedOutput)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	in, ok := Parse(wire.Intent)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown intent %q", ErrMalformedOutput, wire.Intent)
	}
	if wire.Confidence == nil {
		return Result{}, fmt.Errorf("%w: missing confidence", ErrMalformedOutput)
	}
	confidence := *wire.Confidence
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedOutput, confidence)
	}

	entities := make([]models.Entity, 0, len(wire.Entities))
	for _, e := range wire.Entities {
		e.Type = strings.TrimSpace(e.Type)
		e.Value = strings.TrimSpace(e.Value)
		if e.Type == "" || e.Value == "" {
			continue
		}
		entities = append(entities, e)
	}

	return Result{
		Intent:      in,
		Confidence:  confidence,
		Entities:    entities,
		IsFollowUp:  wire.IsFollowUp,
		ContextNote: wire.ContextNote,
	}, nil
}
