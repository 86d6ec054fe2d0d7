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

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"tradechat-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppendTurn records one processed message. Turns are never updated.
func (s *Service) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	if turn.Id == "" {
		turn.Id = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	entities := turn.Entities
	if entities == nil {
		entities = []models.Entity{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("unable to encode entities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertTurn,
		turn.Id, turn.UserId, turn.UserMessage, turn.NormalizedText, turn.ResponseText,
		turn.Intent, turn.Confidence, string(entitiesJSON), turn.IsFollowUp,
		turn.TokensUsed, turn.ResponseTimeMs, turn.CreatedAt.UTC())
	if err != nil {
		zap.L().Error("Failed to insert conversation turn",
			zap.String("user_id", turn.UserId),
			zap.Error(err))
		return fmt.Errorf("unable to insert conversation turn: %w", err)
	}

	zap.L().Debug("Conversation turn recorded",
		zap.String("user_id", turn.UserId),
		zap.String("intent", turn.Intent),
		zap.Bool("follow_up", turn.IsFollowUp))
	return nil
}

func (s *Service) RecentTurns(ctx context.Context, userId string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, queryRecentTurns, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query conversation turns: %w", err)
	}
	defer closeRows(rows)

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var entitiesJSON string
		err := rows.Scan(&turn.Id, &turn.UserId, &turn.UserMessage, &turn.NormalizedText, &turn.ResponseText,
			&turn.Intent, &turn.Confidence, &entitiesJSON, &turn.IsFollowUp,
			&turn.TokensUsed, &turn.ResponseTimeMs, &turn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan conversation turn: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &turn.Entities); err != nil {
			zap.L().Warn("Discarding unreadable entities",
				zap.String("turn_id", turn.Id),
				zap.Error(err))
			turn.Entities = nil
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation turns: %w", err)
	}
	return turns, nil
}

func (s *Service) CountTurns(ctx context.Context, userId string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, queryCountTurns, userId).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count conversation turns: %w", err)
	}
	return count, nil
}
