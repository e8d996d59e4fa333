package sqldriver

import (
	"entgo.io/ent/dialect"
)

// schema returns the idempotent DDL statements for the given dialect.
func schema(d string) []string {
	if d == dialect.Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id BIGSERIAL PRIMARY KEY,
				owner_id TEXT NOT NULL,
				title TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS conversations_owner_updated ON conversations (owner_id, updated_at)`,
			`CREATE TABLE IF NOT EXISTS turns (
				id BIGSERIAL PRIMARY KEY,
				conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				owner_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS turns_conversation ON turns (conversation_id, id)`,
			`CREATE TABLE IF NOT EXISTS credentials (
				id BIGSERIAL PRIMARY KEY,
				owner_id TEXT NULL,
				provider TEXT NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				secret TEXT NOT NULL,
				config TEXT NOT NULL DEFAULT '',
				shared BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS credentials_provider ON credentials (provider, created_at)`,
		}
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_owner_updated ON conversations (owner_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			owner_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS turns_conversation ON turns (conversation_id, id)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NULL,
			provider TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			secret TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '',
			shared BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS credentials_provider ON credentials (provider, created_at)`,
	}
}
