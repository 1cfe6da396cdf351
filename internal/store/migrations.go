package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS retrievals (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL CHECK(mode IN ('poll', 'list')),
	email       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	match_count INTEGER NOT NULL DEFAULT 0,
	rounds      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_retrievals_started_at ON retrievals(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_retrievals_email_started
	ON retrievals(email, started_at);

CREATE INDEX IF NOT EXISTS idx_retrievals_outcome
	ON retrievals(outcome);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
