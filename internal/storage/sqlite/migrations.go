package sqlite

import "database/sql"

// schema sets up the database on startup. Every statement is idempotent.
// The unique index on invoices.invoice_number is what the numbering package
// relies on to detect concurrent allocations of the same number.
const schema = `
CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    invoice_number TEXT NOT NULL,
    issue_date TEXT NOT NULL,
    due_date TEXT NOT NULL DEFAULT '',
    from_business_name TEXT NOT NULL DEFAULT '',
    from_email TEXT NOT NULL DEFAULT '',
    from_address TEXT NOT NULL DEFAULT '',
    from_phone TEXT NOT NULL DEFAULT '',
    from_gst TEXT NOT NULL DEFAULT '',
    client_name TEXT NOT NULL DEFAULT '',
    client_email TEXT NOT NULL DEFAULT '',
    client_address TEXT NOT NULL DEFAULT '',
    client_phone TEXT NOT NULL DEFAULT '',
    currency TEXT NOT NULL,
    status TEXT NOT NULL,
    tax_percent REAL NOT NULL DEFAULT 0,
    subtotal REAL NOT NULL DEFAULT 0,
    tax REAL NOT NULL DEFAULT 0,
    total REAL NOT NULL DEFAULT 0,
    logo_url TEXT NOT NULL DEFAULT '',
    stamp_url TEXT NOT NULL DEFAULT '',
    signature_url TEXT NOT NULL DEFAULT '',
    signature_name TEXT NOT NULL DEFAULT '',
    signature_title TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_items (
    invoice_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    description TEXT NOT NULL,
    quantity REAL NOT NULL,
    unit_price REAL NOT NULL,
    PRIMARY KEY (invoice_id, position),
    FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS business_profiles (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    business_name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    gst TEXT NOT NULL DEFAULT '',
    logo_url TEXT NOT NULL DEFAULT '',
    stamp_url TEXT NOT NULL DEFAULT '',
    signature_url TEXT NOT NULL DEFAULT '',
    signature_owner_name TEXT NOT NULL DEFAULT '',
    signature_owner_title TEXT NOT NULL DEFAULT '',
    default_tax_percent REAL NOT NULL DEFAULT 18,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_invoice_number ON invoices(invoice_number);
CREATE INDEX IF NOT EXISTS idx_invoices_owner_created ON invoices(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items(invoice_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_business_profiles_owner ON business_profiles(owner);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
