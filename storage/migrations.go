package storage

type migration struct {
	version int
	sql     string
}

// migrations must be numbered sequentially from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
	id          TEXT PRIMARY KEY,
	seq         INTEGER NOT NULL,
	recipient   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	code        INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	queued_at   DATETIME NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_finished ON deliveries(finished_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
