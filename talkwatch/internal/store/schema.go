package store

// Schema contains the DDL for the talkwatch tables.
const Schema = `
-- Watched pages and the revision last processed for each.
CREATE TABLE IF NOT EXISTS pages (
    title        TEXT PRIMARY KEY,
    page_id      INTEGER NOT NULL DEFAULT 0,
    rev_id       INTEGER NOT NULL DEFAULT 0,
    last_checked INTEGER NOT NULL DEFAULT 0
);

-- Visit log: one row per recorded visit timestamp per page.
CREATE TABLE IF NOT EXISTS visits (
    page TEXT NOT NULL,
    ts   INTEGER NOT NULL,
    PRIMARY KEY (page, ts)
);

-- Seen set: comments the viewer has scrolled past or marked read.
CREATE TABLE IF NOT EXISTS seen (
    comment_id TEXT PRIMARY KEY,
    marked_at  INTEGER NOT NULL
);

-- Comment index: every comment observed on a watched page, with the
-- classification from its most recent parse.
CREATE TABLE IF NOT EXISTS comments (
    page       TEXT NOT NULL,
    comment_id TEXT NOT NULL,
    author     TEXT NOT NULL DEFAULT '',
    section    TEXT NOT NULL DEFAULT '',
    comment_ts INTEGER,
    is_new     INTEGER NOT NULL DEFAULT 0,
    snippet    TEXT NOT NULL DEFAULT '',
    first_seen INTEGER NOT NULL,
    PRIMARY KEY (page, comment_id)
);
CREATE INDEX IF NOT EXISTS idx_comments_new ON comments(page, is_new);
CREATE INDEX IF NOT EXISTS idx_comments_ts ON comments(page, comment_ts DESC);
`
