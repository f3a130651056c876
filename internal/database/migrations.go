package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createAccountsTable,
		createEventsTable,
		createEventShowtimesTable,
		createEventWeeklySlotsTable,
		createSlotInventoryTable,
		createReservationHoldsTable,
		createTicketsTable,
		createPaymentOrdersTable,
		createTransfersTable,
		createTransferIntentsTable,
		createHoldsExpiryIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    full_name VARCHAR(200) NOT NULL,
    birth_prefix VARCHAR(6) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id SERIAL PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    unit_price DECIMAL(12,2) NOT NULL,
    max_purchase INTEGER NOT NULL DEFAULT 4,
    sales_open_at TIMESTAMPTZ NOT NULL,
    sales_close_at TIMESTAMPTZ NOT NULL,
    range_from DATE NOT NULL,
    range_to DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEventShowtimesTable = `
CREATE TABLE IF NOT EXISTS event_showtimes (
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    showtime TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (event_id, showtime)
);`

const createEventWeeklySlotsTable = `
CREATE TABLE IF NOT EXISTS event_weekly_slots (
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
    minute_of_day INTEGER NOT NULL CHECK (minute_of_day BETWEEN 0 AND 1439),

    PRIMARY KEY (event_id, weekday, minute_of_day)
);`

const createSlotInventoryTable = `
CREATE TABLE IF NOT EXISTS slot_inventory (
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    showtime TIMESTAMPTZ NOT NULL,
    capacity INTEGER NOT NULL CHECK (capacity >= 0),
    available INTEGER NOT NULL CHECK (available >= 0),

    PRIMARY KEY (event_id, showtime)
);`

const createReservationHoldsTable = `
CREATE TABLE IF NOT EXISTS reservation_holds (
    reservation_number VARCHAR(20) PRIMARY KEY,
    event_id INTEGER NOT NULL REFERENCES events(id),
    showtime TIMESTAMPTZ NOT NULL,
    account_id INTEGER NOT NULL REFERENCES accounts(account_id),
    ticket_count INTEGER NOT NULL CHECK (ticket_count > 0),
    phase VARCHAR(20) NOT NULL DEFAULT 'SLOT_SELECTED',
    delivery_method VARCHAR(10),
    delivery_address TEXT,
    total_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
    idempotency_key VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (phase IN ('SLOT_SELECTED', 'DELIVERY_SELECTED', 'PAYMENT_PENDING', 'ISSUED', 'EXPIRED', 'CANCELED')),
    CHECK (delivery_method IS NULL OR delivery_method IN ('DIGITAL', 'PHYSICAL'))
);
CREATE UNIQUE INDEX IF NOT EXISTS holds_one_active_per_slot_idx
ON reservation_holds (account_id, event_id, showtime)
WHERE phase NOT IN ('ISSUED', 'EXPIRED', 'CANCELED');`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY,
    reservation_number VARCHAR(20) NOT NULL REFERENCES reservation_holds(reservation_number),
    event_id INTEGER NOT NULL REFERENCES events(id),
    showtime TIMESTAMPTZ NOT NULL,
    owner_id INTEGER NOT NULL REFERENCES accounts(account_id),
    token VARCHAR(64) UNIQUE NOT NULL,
    issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createPaymentOrdersTable = `
CREATE TABLE IF NOT EXISTS payment_orders (
    payment_id VARCHAR(255) PRIMARY KEY,
    reservation_number VARCHAR(20) NOT NULL REFERENCES reservation_holds(reservation_number),
    buyer_id INTEGER NOT NULL REFERENCES accounts(account_id),
    seller_id INTEGER NOT NULL,
    amount DECIMAL(12,2) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    method VARCHAR(10) NOT NULL CHECK (method IN ('CARD', 'WALLET')),
    status VARCHAR(20) NOT NULL DEFAULT 'REQUESTED',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('REQUESTED', 'CONFIRMED', 'FAILED'))
);`

const createTransfersTable = `
CREATE TABLE IF NOT EXISTS transfers (
    transfer_id UUID PRIMARY KEY,
    sender_id INTEGER NOT NULL REFERENCES accounts(account_id),
    recipient_id INTEGER NOT NULL REFERENCES accounts(account_id),
    reservation_number VARCHAR(20) NOT NULL REFERENCES reservation_holds(reservation_number),
    relation VARCHAR(10) NOT NULL CHECK (relation IN ('FAMILY', 'FRIEND')),
    status VARCHAR(20) NOT NULL DEFAULT 'REQUESTED',
    evidence_ref TEXT,
    fee_payment_id VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ,

    CHECK (status IN ('REQUESTED', 'APPROVED', 'REJECTED'))
);`

const createTransferIntentsTable = `
CREATE TABLE IF NOT EXISTS transfer_intents (
    intent_id UUID PRIMARY KEY,
    sender_id INTEGER NOT NULL REFERENCES accounts(account_id),
    recipient_id INTEGER NOT NULL REFERENCES accounts(account_id),
    reservation_number VARCHAR(20) NOT NULL REFERENCES reservation_holds(reservation_number),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ
);`

const createHoldsExpiryIndex = `
CREATE INDEX IF NOT EXISTS holds_expiry_idx
ON reservation_holds (expires_at)
WHERE phase NOT IN ('ISSUED', 'EXPIRED', 'CANCELED');`
