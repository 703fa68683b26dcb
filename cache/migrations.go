package cache

// Migrations are idempotent.

const migrationEvents = `
CREATE TABLE IF NOT EXISTS events (
    event_id INTEGER PRIMARY KEY,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    ticker TEXT,
    data TEXT NOT NULL,
    reason TEXT,
    notes TEXT,
    tags TEXT,
    affects_cash INTEGER NOT NULL DEFAULT 0,
    cash_delta TEXT NOT NULL DEFAULT '0',
    is_deleted INTEGER NOT NULL DEFAULT 0
);
`

const migrationSyncs = `
CREATE TABLE IF NOT EXISTS syncs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    synced_at TEXT NOT NULL,
    event_count INTEGER NOT NULL
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_events_ticker ON events(ticker);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
`
