package postgres

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	access_token TEXT NOT NULL DEFAULT '',
	broker_user_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	is_authenticated BOOLEAN NOT NULL DEFAULT FALSE,
	authenticated_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ,
	total_queries BIGINT NOT NULL DEFAULT 0,
	daily_query_count INTEGER NOT NULL DEFAULT 0,
	daily_query_reset_at TIMESTAMPTZ,
	subscription_tier TEXT NOT NULL DEFAULT 'free' CHECK (subscription_tier IN ('free', 'pro')),
	current_topic TEXT NOT NULL DEFAULT '',
	message_count BIGINT NOT NULL DEFAULT 0,
	last_message_at TIMESTAMPTZ,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK ((access_token = '') = (expires_at IS NULL))
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	user_message TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	response_text TEXT NOT NULL,
	intent TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	entities JSONB NOT NULL DEFAULT '[]',
	is_follow_up BOOLEAN NOT NULL DEFAULT FALSE,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	response_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_user_created ON conversation_turns(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS trades (
	id UUID PRIMARY KEY,
	trade_id TEXT NOT NULL UNIQUE,
	order_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	tradingsymbol TEXT NOT NULL,
	exchange TEXT NOT NULL,
	product TEXT NOT NULL DEFAULT '',
	side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	traded_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user_traded ON trades(user_id, traded_at DESC);
`

const userColumns = `id, access_token, broker_user_id, session_id, is_authenticated,
	authenticated_at, expires_at, total_queries, daily_query_count, daily_query_reset_at,
	subscription_tier, current_topic, message_count, last_message_at,
	version, created_at, updated_at`

const (
	queryInsertUser = `
		INSERT INTO users (id, subscription_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING`

	queryGetUser = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	queryGetUserForUpdate = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	queryListUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	queryUpdateUser = `
		UPDATE users SET
			access_token = :access_token,
			broker_user_id = :broker_user_id,
			session_id = :session_id,
			is_authenticated = :is_authenticated,
			authenticated_at = :authenticated_at,
			expires_at = :expires_at,
			total_queries = :total_queries,
			daily_query_count = :daily_query_count,
			daily_query_reset_at = :daily_query_reset_at,
			subscription_tier = :subscription_tier,
			current_topic = :current_topic,
			message_count = :message_count,
			last_message_at = :last_message_at,
			version = :version,
			updated_at = :updated_at
		WHERE id = :id AND version = :expected_version`

	queryInsertTurn = `
		INSERT INTO conversation_turns (
			id, user_id, user_message, normalized_text, response_text, intent,
			confidence, entities, is_follow_up, tokens_used, response_time_ms, created_at
		) VALUES (
			:id, :user_id, :user_message, :normalized_text, :response_text, :intent,
			:confidence, :entities, :is_follow_up, :tokens_used, :response_time_ms, :created_at
		)`

	queryRecentTurns = `
		SELECT id, user_id, user_message, normalized_text, response_text, intent,
		       confidence, entities, is_follow_up, tokens_used, response_time_ms, created_at
		FROM conversation_turns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryCountTurns = `SELECT COUNT(*) FROM conversation_turns WHERE user_id = $1`

	queryUpsertTrade = `
		INSERT INTO trades (
			id, trade_id, order_id, user_id, tradingsymbol, exchange, product,
			side, quantity, price, traded_at, created_at, updated_at
		) VALUES (
			:id, :trade_id, :order_id, :user_id, :tradingsymbol, :exchange, :product,
			:side, :quantity, :price, :traded_at, :created_at, :updated_at
		)
		ON CONFLICT (trade_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			tradingsymbol = EXCLUDED.tradingsymbol,
			exchange = EXCLUDED.exchange,
			product = EXCLUDED.product,
			side = EXCLUDED.side,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			traded_at = EXCLUDED.traded_at,
			updated_at = EXCLUDED.updated_at`

	queryListTrades = `
		SELECT id, trade_id, order_id, user_id, tradingsymbol, exchange, product,
		       side, quantity, price, traded_at, created_at, updated_at
		FROM trades
		WHERE user_id = $1
		ORDER BY traded_at DESC, trade_id`
)
