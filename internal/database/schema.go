package database

// Schema is the engine's logical schema. It sticks to the common
// dialect subset (TEXT, BIGINT, integer booleans, epoch-millisecond
// timestamps) so the same DDL runs on both Postgres and SQLite. The
// versioned migrations under migrations/ carry the identical shape for
// deployments managed by the migrate tool.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id            TEXT PRIMARY KEY,
    timestamp     BIGINT NOT NULL,
    session_id    TEXT NOT NULL,
    action_type   TEXT NOT NULL,
    action_name   TEXT NOT NULL,
    target_type   TEXT NOT NULL,
    target_id     TEXT,
    target_path   TEXT,
    old_value     TEXT,
    new_value     TEXT,
    is_undoable   INTEGER NOT NULL DEFAULT 0,
    undo_group_id TEXT,
    duration_ms   BIGINT,
    source        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_action_type ON audit_log(action_type);
CREATE INDEX IF NOT EXISTS idx_audit_target_path ON audit_log(target_path);
CREATE INDEX IF NOT EXISTS idx_audit_undoable ON audit_log(is_undoable);

CREATE TABLE IF NOT EXISTS undo_stack (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL,
    stack_position BIGINT NOT NULL,
    audit_log_id   TEXT NOT NULL,
    target_type    TEXT NOT NULL,
    target_id      TEXT NOT NULL,
    before_state   TEXT,
    after_state    TEXT,
    is_active      INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_undo_session_position ON undo_stack(session_id, stack_position);
CREATE INDEX IF NOT EXISTS idx_undo_session_active ON undo_stack(session_id, is_active);

CREATE TABLE IF NOT EXISTS undo_metadata (
    id            TEXT PRIMARY KEY,
    undo_stack_id TEXT NOT NULL,
    key           TEXT NOT NULL,
    value         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_undo_metadata_stack ON undo_metadata(undo_stack_id);
`
