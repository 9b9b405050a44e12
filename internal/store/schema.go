package store

import "fmt"

// schema is the full database schema, applied idempotently at boot.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'Almachsan',
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS item_groups (
    id       BIGSERIAL PRIMARY KEY,
    name     TEXT NOT NULL,
    category TEXT
);

CREATE TABLE IF NOT EXISTS items (
    id                BIGSERIAL PRIMARY KEY,
    name              TEXT NOT NULL UNIQUE,
    code              TEXT UNIQUE,
    description       TEXT,
    quantity_in_stock INTEGER NOT NULL DEFAULT 0 CHECK (quantity_in_stock >= 0),
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    group_id          BIGINT REFERENCES item_groups(id) ON DELETE SET NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS receipts (
    id                  BIGSERIAL PRIMARY KEY,
    recipient_name      TEXT NOT NULL,
    receipt_date        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_by_user_id  BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    is_cancelled        BOOLEAN NOT NULL DEFAULT FALSE,
    cancellation_reason TEXT,
    cancelled_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS receipt_items (
    id         BIGSERIAL PRIMARY KEY,
    receipt_id BIGINT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
    item_id    BIGINT NOT NULL REFERENCES items(id) ON DELETE RESTRICT,
    quantity   INTEGER NOT NULL CHECK (quantity > 0)
);

CREATE TABLE IF NOT EXISTS events (
    id                 BIGSERIAL PRIMARY KEY,
    number             TEXT NOT NULL,
    type               TEXT NOT NULL,
    source_unit        TEXT NOT NULL,
    receiver           TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'DRAFT',
    created_by_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS event_items (
    id                BIGSERIAL PRIMARY KEY,
    event_id          BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    item_id           BIGINT REFERENCES items(id) ON DELETE RESTRICT,
    item_makat        TEXT NOT NULL DEFAULT '',
    item_name         TEXT NOT NULL DEFAULT '',
    quantity          INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    inspection_status TEXT NOT NULL DEFAULT 'PENDING',
    added_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inspection_actions (
    id                   BIGSERIAL PRIMARY KEY,
    event_item_id        BIGINT NOT NULL REFERENCES event_items(id) ON DELETE CASCADE,
    decision             TEXT NOT NULL,
    disable_reason       TEXT,
    notes                TEXT,
    inspected_by_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    inspected_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reason_suggestions (
    id          BIGSERIAL PRIMARY KEY,
    item_makat  TEXT NOT NULL,
    reason      TEXT NOT NULL,
    usage_count INTEGER NOT NULL DEFAULT 1,
    last_used   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    user_id     BIGINT REFERENCES users(id) ON DELETE CASCADE,
    UNIQUE (item_makat, reason, user_id)
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    revoked_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    event_id    TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id   BIGINT NOT NULL,
    actor_id    BIGINT NOT NULL DEFAULT 0,
    detail      TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS processed_events (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_event_items_event_id ON event_items(event_id);
CREATE INDEX IF NOT EXISTS idx_inspection_actions_event_item_id ON inspection_actions(event_item_id);
CREATE INDEX IF NOT EXISTS idx_inspection_actions_inspector ON inspection_actions(inspected_by_user_id, inspected_at);
CREATE INDEX IF NOT EXISTS idx_reason_suggestions_makat ON reason_suggestions(item_makat);
CREATE INDEX IF NOT EXISTS idx_receipt_items_item_id ON receipt_items(item_id);
`

// Migrate creates all tables and indexes if they don't already exist.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
