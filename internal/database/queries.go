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

const userColumns = `
		id, access_token, broker_user_id, session_id, is_authenticated,
		authenticated_at, expires_at,
		total_queries, daily_query_count, daily_query_reset_at, subscription_tier,
		current_topic, message_count, last_message_at,
		version, created_at, updated_at`

const (
	// User queries
	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, subscription_tier, created_at, updated_at)
		VALUES (?, ?, ?, ?)`

	queryGetUserById = `
		SELECT` + userColumns + `
		FROM users
		WHERE id = ?`

	queryListUsers = `
		SELECT` + userColumns + `
		FROM users
		ORDER BY created_at`

	queryUpdateUser = `
		UPDATE users SET
			access_token = ?, broker_user_id = ?, session_id = ?, is_authenticated = ?,
			authenticated_at = ?, expires_at = ?,
			total_queries = ?, daily_query_count = ?, daily_query_reset_at = ?, subscription_tier = ?,
			current_topic = ?, message_count = ?, last_message_at = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?`

	// Conversation queries
	queryInsertTurn = `
		INSERT INTO conversation_turns (
			id, user_id, user_message, normalized_text, response_text,
			intent, confidence, entities, is_follow_up,
			tokens_used, response_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryRecentTurns = `
		SELECT id, user_id, user_message, normalized_text, response_text,
		       intent, confidence, entities, is_follow_up,
		       tokens_used, response_time_ms, created_at
		FROM conversation_turns
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	queryCountTurns = `
		SELECT COUNT(*) FROM conversation_turns WHERE user_id = ?`

	// Trade queries
	queryUpsertTrade = `
		INSERT INTO trades (
			id, trade_id, order_id, user_id, tradingsymbol, exchange, product,
			side, quantity, price, traded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO UPDATE SET
			order_id = excluded.order_id,
			tradingsymbol = excluded.tradingsymbol,
			exchange = excluded.exchange,
			product = excluded.product,
			side = excluded.side,
			quantity = excluded.quantity,
			price = excluded.price,
			traded_at = excluded.traded_at,
			updated_at = excluded.updated_at`

	queryListTrades = `
		SELECT id, trade_id, order_id, user_id, tradingsymbol, exchange, product,
		       side, quantity, price, traded_at, created_at, updated_at
		FROM trades
		WHERE user_id = ?
		ORDER BY traded_at DESC, trade_id`
)
