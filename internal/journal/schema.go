package journal

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    series      TEXT NOT NULL,
    policy      TEXT NOT NULL,
    triggered_by TEXT NOT NULL,
    dry_run     INTEGER NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    matched     INTEGER NOT NULL,
    kept        INTEGER NOT NULL,
    deleted     INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_series_started ON runs(series, started_at);

CREATE TABLE IF NOT EXISTS decisions (
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    record_id  TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at TEXT NOT NULL,
    action     TEXT NOT NULL,
    reason     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
`
