package store

// schemaStatements mirrors the teacher's pg_schema.go approach of a
// fixed, ordered list of DDL strings applied at startup, but uses
// CREATE TABLE IF NOT EXISTS so repeated calls are idempotent rather
// than relying on a pg_dump snapshot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS requests (
		id             text PRIMARY KEY,
		cid            text NOT NULL UNIQUE,
		stream_id      text NOT NULL,
		status         text NOT NULL,
		message        text NOT NULL DEFAULT '',
		pinned         boolean NOT NULL DEFAULT false,
		attempt_count  integer NOT NULL DEFAULT 0,
		created_at     timestamptz NOT NULL,
		updated_at     timestamptz NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS requests_status_created_at ON requests (status, created_at, id);`,
	`CREATE INDEX IF NOT EXISTS requests_stream_id ON requests (stream_id);`,
	`CREATE INDEX IF NOT EXISTS requests_status_updated_at ON requests (status, updated_at);`,

	`CREATE TABLE IF NOT EXISTS anchors (
		request_id  text PRIMARY KEY,
		proof_cid   text NOT NULL,
		path        text NOT NULL,
		cid         text NOT NULL,
		created_at  timestamptz NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		chain_id        text NOT NULL,
		tx_hash         text PRIMARY KEY,
		block_number    bigint NOT NULL,
		block_timestamp timestamptz NOT NULL,
		created_at      timestamptz NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS transactions_created_at ON transactions (created_at);`,
}
