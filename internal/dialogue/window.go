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

package dialogue

import (
	"context"
	"fmt"

	"tradechat-go/internal/models"
)

// DefaultWindowSize is the number of prior turns kept as context.
const DefaultWindowSize = 5

// TurnReader is the slice of the store the window needs.
type TurnReader interface {
	RecentTurns(ctx context.Context, userId string, limit int) ([]models.ConversationTurn, error)
}

// Window is a read-only, most-recent-first view of at most Size turns.
type Window struct {
	size  int
	turns []models.ConversationTurn
}

func NewWindow(size int, turns []models.ConversationTurn) Window {
	if size < 0 {
		size = 0
	}
	if len(turns) > size {
		turns = turns[:size]
	}
	kept := make([]models.ConversationTurn, len(turns))
	copy(kept, turns)
	return Window{size: size, turns: kept}
}

// LoadWindow reads the latest size turns for userId.
func LoadWindow(ctx context.Context, reader TurnReader, userId string, size int) (Window, error) {
	turns, err := reader.RecentTurns(ctx, userId, size)
	if err != nil {
		return NewWindow(size, nil), fmt.Errorf("unable to load conversation history: %w", err)
	}
	return NewWindow(size, turns), nil
}

func (w Window) Size() int {
	return w.size
}

func (w Window) Len() int {
	return len(w.turns)
}

// Turns returns a copy, most recent first.
func (w Window) Turns() []models.ConversationTurn {
	out := make([]models.ConversationTurn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Latest returns the most recent turn, or nil for an empty window.
func (w Window) Latest() *models.ConversationTurn {
	if len(w.turns) == 0 {
		return nil
	}
	latest := w.turns[0]
	return &latest
}
