package database

import (
	"context"
	"database/sql"
	"fmt"
)

// The hosted database already carries these tables; the schema exists so a
// local Postgres can stand in for it during development.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS fast_clients (
    phone TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT,
    birthdate DATE,
    manychat_id TEXT,
    manychat_updated_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fast_orders (
    id BIGSERIAL PRIMARY KEY,
    order_sequence INTEGER,
    order_code TEXT UNIQUE,
    client_name TEXT NOT NULL DEFAULT '',
    client_phone TEXT NOT NULL DEFAULT '',
    items JSONB NOT NULL DEFAULT '[]',
    total NUMERIC(10,2) NOT NULL DEFAULT 0,
    amount_paid NUMERIC(10,2) NOT NULL DEFAULT 0,
    payment_status TEXT NOT NULL DEFAULT 'awaiting_payment',
    payment_method TEXT,
    delivery_type TEXT NOT NULL DEFAULT 'pickup',
    scheduled_date DATE,
    scheduled_time TEXT,
    stripe_payment_id TEXT,
    manychat_id TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fast_orders_client_phone ON fast_orders(client_phone);
CREATE INDEX IF NOT EXISTS idx_fast_clients_manychat_id ON fast_clients(manychat_id);
`

func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
