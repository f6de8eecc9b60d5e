package repository

// Schema definitions for the configurator database.
// Compatible with both SQLite and PostgreSQL.

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    id BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    price_incl_tax REAL NOT NULL DEFAULT 0,
    price_excl_tax REAL NOT NULL DEFAULT 0,
    tax_class TEXT,
    attributes TEXT,
    meta TEXT,
    category_ids TEXT,
    purchasable INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaConfigurators = `
CREATE TABLE IF NOT EXISTS configurators (
    id BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    slots TEXT NOT NULL,
    default_configuration TEXT,
    default_price REAL NOT NULL DEFAULT 0,
    tabs TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS compatibility_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    action TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    message TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    conditions TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_position ON compatibility_rules(position);
CREATE INDEX IF NOT EXISTS idx_rules_active ON compatibility_rules(is_active);
`

const schemaWarranty = `
CREATE TABLE IF NOT EXISTS warranty_brackets (
    position INTEGER PRIMARY KEY,
    min_price REAL NOT NULL,
    max_price REAL NOT NULL,
    cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS warranty_plans (
    id INTEGER PRIMARY KEY,
    product_ids TEXT NOT NULL,
    default_product_id BIGINT NOT NULL DEFAULT 0
);
`

const schemaOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    configurator_id BIGINT NOT NULL,
    configuration TEXT NOT NULL,
    quantities TEXT,
    lines TEXT NOT NULL,
    subtotal REAL NOT NULL,
    warranty_cost REAL NOT NULL,
    total REAL NOT NULL,
    is_default INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_configurator ON orders(configurator_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProducts,
		schemaConfigurators,
		schemaRules,
		schemaWarranty,
		schemaOrders,
	}
}
