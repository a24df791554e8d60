package testutil

// pharmacySchema mirrors the production DDL for the pharmacy service.
// The conditional updates in the repositories depend on the CHECK
// constraints and the partial unique index declared here.
const pharmacySchema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS pharmacy_locations (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name        TEXT NOT NULL,
	address     TEXT,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS medications (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name        TEXT NOT NULL,
	generic_name TEXT,
	form        TEXT,
	strength    TEXT,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory_lines (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	location_id      UUID NOT NULL REFERENCES pharmacy_locations(id),
	medication_id    UUID NOT NULL REFERENCES medications(id),
	batch_number     TEXT NOT NULL DEFAULT '',
	quantity         INTEGER NOT NULL DEFAULT 0,
	unit             TEXT NOT NULL,
	unit_price_cents INTEGER NOT NULL DEFAULT 0,
	expiry_date      TIMESTAMPTZ,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT inventory_lines_quantity_non_negative CHECK (quantity >= 0),
	CONSTRAINT inventory_lines_price_non_negative CHECK (unit_price_cents >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS inventory_lines_active_line_uniq
	ON inventory_lines (location_id, medication_id, batch_number)
	WHERE is_active;

CREATE TABLE IF NOT EXISTS transfers (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	from_location_id   UUID NOT NULL REFERENCES pharmacy_locations(id),
	to_location_id     UUID NOT NULL REFERENCES pharmacy_locations(id),
	medication_id      UUID NOT NULL REFERENCES medications(id),
	quantity           INTEGER NOT NULL,
	unit               TEXT NOT NULL,
	batch_number       TEXT NOT NULL DEFAULT '',
	expiry_date        TIMESTAMPTZ,
	transfer_type      TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'PENDING',
	requested_by       UUID NOT NULL,
	approved_by        UUID,
	completed_by       UUID,
	reason             TEXT NOT NULL,
	notes              TEXT,
	cancel_reason      TEXT,
	tracking_number    TEXT NOT NULL,
	requested_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	approved_at        TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ,
	cancelled_at       TIMESTAMPTZ,
	estimated_delivery TIMESTAMPTZ,
	actual_cost_cents  INTEGER,
	CONSTRAINT transfers_quantity_positive CHECK (quantity > 0),
	CONSTRAINT transfers_locations_differ CHECK (from_location_id <> to_location_id),
	CONSTRAINT transfers_tracking_number_uniq UNIQUE (tracking_number),
	CONSTRAINT transfers_status_valid CHECK (status IN ('PENDING', 'IN_TRANSIT', 'COMPLETED', 'CANCELLED')),
	CONSTRAINT transfers_type_valid CHECK (transfer_type IN ('INTER_LOCATION', 'STOCK_ADJUSTMENT', 'DONATION', 'RETURN'))
);

CREATE TABLE IF NOT EXISTS stock_takes (
	id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	location_id          UUID NOT NULL REFERENCES pharmacy_locations(id),
	stock_take_date      TIMESTAMPTZ NOT NULL,
	type                 TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'DRAFT',
	conducted_by         UUID NOT NULL,
	reviewed_by          UUID,
	total_variance       INTEGER NOT NULL DEFAULT 0,
	variance_value_cents INTEGER NOT NULL DEFAULT 0,
	reason               TEXT NOT NULL,
	notes                TEXT,
	started_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at         TIMESTAMPTZ,
	reviewed_at          TIMESTAMPTZ,
	CONSTRAINT stock_takes_status_valid CHECK (status IN ('DRAFT', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
	CONSTRAINT stock_takes_type_valid CHECK (type IN ('FULL', 'PARTIAL', 'SPOT_CHECK', 'AUDIT'))
);

CREATE TABLE IF NOT EXISTS stock_take_items (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	stock_take_id     UUID NOT NULL REFERENCES stock_takes(id) ON DELETE CASCADE,
	medication_id     UUID NOT NULL REFERENCES medications(id),
	expected_quantity INTEGER NOT NULL,
	actual_quantity   INTEGER NOT NULL,
	variance          INTEGER NOT NULL,
	unit              TEXT NOT NULL,
	batch_number      TEXT NOT NULL DEFAULT '',
	expiry_date       TIMESTAMPTZ,
	notes             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_cache (
	user_id    UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT,
	role_name  TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// truncateAll resets all pharmacy tables between tests.
const truncateAll = `
TRUNCATE stock_take_items, stock_takes, transfers, inventory_lines,
	medications, pharmacy_locations, user_cache CASCADE;
`
