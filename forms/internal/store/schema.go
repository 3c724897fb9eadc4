package store

// Schema contains the DDL for the comment-form session tables.
const Schema = `
-- In-progress comment forms, keyed by page. The target column holds the
-- content-addressable descriptor (comment ID or section key) as JSON.
CREATE TABLE IF NOT EXISTS form_entries (
    id             TEXT PRIMARY KEY,
    page           TEXT NOT NULL,
    mode           TEXT NOT NULL,
    target         TEXT NOT NULL DEFAULT '{}',
    comment_text   TEXT NOT NULL DEFAULT '',
    headline       TEXT NOT NULL DEFAULT '',
    summary        TEXT NOT NULL DEFAULT '',
    minor          INTEGER NOT NULL DEFAULT 0,
    watch          INTEGER NOT NULL DEFAULT 0,
    omit_signature INTEGER NOT NULL DEFAULT 0,
    saved_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_form_entries_page ON form_entries(page);
CREATE INDEX IF NOT EXISTS idx_form_entries_saved ON form_entries(saved_at);
`
