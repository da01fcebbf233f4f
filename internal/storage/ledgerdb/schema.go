package ledgerdb

// Decimal columns are stored as TEXT so quantities survive round-trips without
// float drift. The balance table holds exactly one row guarded by a version
// counter for optimistic concurrency.
const schema = `
CREATE TABLE IF NOT EXISTS balance (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	base_qty TEXT NOT NULL,
	quote_qty TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts DATETIME NOT NULL,
	side TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
	base_qty TEXT NOT NULL,
	price TEXT NOT NULL,
	fee TEXT NOT NULL,
	quote_qty TEXT NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	market_context TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);

CREATE TABLE IF NOT EXISTS snapshots (
	ts DATETIME NOT NULL,
	base_qty TEXT NOT NULL,
	quote_qty TEXT NOT NULL,
	price TEXT NOT NULL,
	total_value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);

CREATE TABLE IF NOT EXISTS price_points (
	ts DATETIME NOT NULL,
	price TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_points_ts ON price_points(ts);
`
