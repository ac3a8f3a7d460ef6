package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: groups must be created before every table that references it.
const schema = `
CREATE TABLE IF NOT EXISTS counters (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id INTEGER PRIMARY KEY,
    creator TEXT NOT NULL,
    contribution_amount INTEGER NOT NULL,
    cycle_length INTEGER NOT NULL,
    max_members INTEGER NOT NULL,
    current_cycle INTEGER NOT NULL,
    cycle_start_time INTEGER NOT NULL,
    payout_index INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    is_complete INTEGER NOT NULL DEFAULT 0,
    is_cancelled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    member TEXT NOT NULL,
    PRIMARY KEY (group_id, position),
    UNIQUE (group_id, member),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS contributions (
    group_id INTEGER NOT NULL,
    cycle INTEGER NOT NULL,
    member TEXT NOT NULL,
    amount INTEGER NOT NULL,
    contributed_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, cycle, member),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payouts (
    group_id INTEGER NOT NULL,
    recipient TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    paid_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, recipient),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS refunds (
    group_id INTEGER NOT NULL,
    member TEXT NOT NULL,
    amount INTEGER NOT NULL,
    reason TEXT NOT NULL,
    refunded_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_metadata (
    group_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    rules TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS refund_requests (
    group_id INTEGER PRIMARY KEY,
    requester TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    voting_deadline INTEGER NOT NULL,
    votes_for INTEGER NOT NULL DEFAULT 0,
    votes_against INTEGER NOT NULL DEFAULT 0,
    executed INTEGER NOT NULL DEFAULT 0,
    approved INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS refund_votes (
    group_id INTEGER NOT NULL,
    voter TEXT NOT NULL,
    in_favor INTEGER NOT NULL,
    voted_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, voter),
    FOREIGN KEY (group_id) REFERENCES refund_requests(group_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS events (
    group_id INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    id TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    payload BLOB NOT NULL,
    hash TEXT NOT NULL,
    prev_hash TEXT NOT NULL,
    chain_hash TEXT NOT NULL,
    PRIMARY KEY (group_id, seq),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contributions_group_id ON contributions(group_id);
CREATE INDEX IF NOT EXISTS idx_payouts_group_id ON payouts(group_id);
CREATE INDEX IF NOT EXISTS idx_refunds_group_id ON refunds(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
