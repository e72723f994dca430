package database

// session_record holds the single persisted upstream session. The token
// is stored AES-GCM encrypted; the id is fixed so there is always at
// most one row.
const migrationSessionRecord = `
CREATE TABLE IF NOT EXISTS session_record (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token_ciphertext BLOB NOT NULL,
	token_nonce BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL
);
`

const migrationEquityTicks = `
CREATE TABLE IF NOT EXISTS equity_ticks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	total REAL NOT NULL,
	currency TEXT NOT NULL
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_equity_ticks_ts ON equity_ticks(ts);
`
