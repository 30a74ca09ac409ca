package coretier

// Schema creates the three tables the core tier owns: records (renamed
// from the original's tasks table — "record" is this implementation's
// name for a memory), and the windows/review_logs satellite tables, whose
// record_id columns reference records(id). No code in this package reads
// or writes the two satellite tables.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	content        TEXT NOT NULL,
	tags           TEXT NOT NULL, -- JSON array
	context_path   TEXT,
	tier           TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	recalled_count INTEGER NOT NULL DEFAULT 0,
	updated_at     TEXT
);

CREATE TABLE IF NOT EXISTS windows (
	window_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id  TEXT NOT NULL,
	pid        INTEGER,
	state      TEXT DEFAULT 'OPEN',
	created_at TEXT NOT NULL,
	FOREIGN KEY (record_id) REFERENCES records (id)
);

CREATE TABLE IF NOT EXISTS review_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id  TEXT NOT NULL,
	agent      TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	score      REAL NOT NULL,
	comments   TEXT,
	ts         TEXT NOT NULL,
	FOREIGN KEY (record_id) REFERENCES records (id)
);

CREATE INDEX IF NOT EXISTS idx_records_tier ON records(tier);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
CREATE INDEX IF NOT EXISTS idx_windows_record_id ON windows(record_id);
CREATE INDEX IF NOT EXISTS idx_review_logs_record_id ON review_logs(record_id);
`
