package memstore

// Schema creates the memstore tables. Applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL DEFAULT '',
	answer      TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	confidence  REAL NOT NULL DEFAULT 0.5,
	source      TEXT NOT NULL DEFAULT 'manual',
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	last_used   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);

CREATE TABLE IF NOT EXISTS settings (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	provider             TEXT NOT NULL DEFAULT 'openai',
	auto_fill_enabled    INTEGER NOT NULL DEFAULT 1,
	confidence_threshold REAL NOT NULL DEFAULT 0.75,
	updated_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_keys (
	provider   TEXT PRIMARY KEY,
	ciphertext BLOB NOT NULL,
	salt       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`
