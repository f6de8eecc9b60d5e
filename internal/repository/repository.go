// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dancrook1/w2f-config/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProduct upserts a catalog product.
func (r *SQLRepository) SaveProduct(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID <= 0 {
		return fmt.Errorf("%w: positive product id is required", ErrInvalidInput)
	}

	attributes, _ := json.Marshal(p.Attributes)
	meta, _ := json.Marshal(p.Meta)
	categories, _ := json.Marshal(p.CategoryIDs)

	purchasable := 0
	if p.Purchasable {
		purchasable = 1
	}

	query := `
		INSERT INTO products (
			id, name, price_incl_tax, price_excl_tax, tax_class,
			attributes, meta, category_ids, purchasable, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_incl_tax = excluded.price_incl_tax,
			price_excl_tax = excluded.price_excl_tax,
			tax_class = excluded.tax_class,
			attributes = excluded.attributes,
			meta = excluded.meta,
			category_ids = excluded.category_ids,
			purchasable = excluded.purchasable,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Name, p.PriceInclTax, p.PriceExclTax, p.TaxClass,
		string(attributes), string(meta), string(categories), purchasable,
		time.Now().UTC(),
	)
	return err
}

const productColumns = `id, name, price_incl_tax, price_excl_tax, tax_class,
	   attributes, meta, category_ids, purchasable`

func scanProduct(scan func(...any) error) (*domain.Product, error) {
	var p domain.Product
	var attributes, meta, categories sql.NullString
	var taxClass sql.NullString
	var purchasable int

	if err := scan(
		&p.ID, &p.Name, &p.PriceInclTax, &p.PriceExclTax, &taxClass,
		&attributes, &meta, &categories, &purchasable,
	); err != nil {
		return nil, err
	}

	p.TaxClass = taxClass.String
	p.Purchasable = purchasable == 1
	if attributes.String != "" {
		json.Unmarshal([]byte(attributes.String), &p.Attributes)
	}
	if meta.String != "" {
		json.Unmarshal([]byte(meta.String), &p.Meta)
	}
	if categories.String != "" {
		json.Unmarshal([]byte(categories.String), &p.CategoryIDs)
	}

	return &p, nil
}

// GetProduct retrieves a single product by id.
func (r *SQLRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: positive product id is required", ErrInvalidInput)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	p, err := scanProduct(r.db.QueryRowContext(ctx, r.rebind(query), id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProducts retrieves a batch of products in one query. Ids that do
// not resolve are absent from the returned map.
func (r *SQLRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product)
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	if len(args) == 0 {
		return out, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` +
		strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}

	return out, rows.Err()
}

// GetProductsInCategories returns every product belonging to any of the
// given categories. Category membership lives in a JSON column, so the
// filter runs over the scanned rows.
func (r *SQLRepository) GetProductsInCategories(ctx context.Context, categoryIDs []int64) ([]*domain.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	want := make(map[int64]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		want[id] = true
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE category_ids IS NOT NULL ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		for _, catID := range p.CategoryIDs {
			if want[catID] {
				products = append(products, p)
				break
			}
		}
	}

	return products, rows.Err()
}

// SaveConfigurator upserts a configurator definition.
func (r *SQLRepository) SaveConfigurator(ctx context.Context, c *domain.Configurator) error {
	if c == nil || c.ID <= 0 {
		return fmt.Errorf("%w: positive configurator id is required", ErrInvalidInput)
	}

	slots, _ := json.Marshal(c.Slots)
	defaults, _ := json.Marshal(c.DefaultConfiguration)
	tabs, _ := json.Marshal(c.Tabs)

	query := `
		INSERT INTO configurators (
			id, name, slots, default_configuration, default_price, tabs, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			slots = excluded.slots,
			default_configuration = excluded.default_configuration,
			default_price = excluded.default_price,
			tabs = excluded.tabs,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.Name, string(slots), string(defaults), c.DefaultPrice, string(tabs),
		time.Now().UTC(),
	)
	return err
}

// GetConfigurator retrieves a configurator definition by id.
func (r *SQLRepository) GetConfigurator(ctx context.Context, id int64) (*domain.Configurator, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: positive configurator id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, slots, default_configuration, default_price, tabs
		FROM configurators
		WHERE id = ?
	`

	var c domain.Configurator
	var slots string
	var defaults, tabs sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&c.ID, &c.Name, &slots, &defaults, &c.DefaultPrice, &tabs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(slots), &c.Slots); err != nil {
		return nil, fmt.Errorf("failed to parse configurator slots: %w", err)
	}
	if defaults.String != "" {
		json.Unmarshal([]byte(defaults.String), &c.DefaultConfiguration)
	}
	if tabs.String != "" {
		json.Unmarshal([]byte(tabs.String), &c.Tabs)
	}

	return &c, nil
}

// SaveRule upserts a compatibility rule. Conditions are stored in their
// stringly-typed map form and decoded back on load.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	conditions, _ := json.Marshal(domain.EncodeConditions(rule))

	active := 0
	if rule.Active {
		active = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO compatibility_rules (
			id, name, type, action, is_active, message, position, conditions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			action = excluded.action,
			is_active = excluded.is_active,
			message = excluded.message,
			position = excluded.position,
			conditions = excluded.conditions,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, string(rule.Type), string(rule.Action),
		active, rule.Message, rule.Position, string(conditions),
		now, now,
	)
	return err
}

func scanRule(scan func(...any) error) (*domain.Rule, error) {
	var rule domain.Rule
	var ruleType, action string
	var message, conditions sql.NullString
	var active int

	if err := scan(
		&rule.ID, &rule.Name, &ruleType, &action,
		&active, &message, &rule.Position, &conditions,
	); err != nil {
		return nil, err
	}

	rule.Type = domain.RuleType(ruleType)
	rule.Action = domain.RuleAction(action)
	rule.Active = active == 1
	rule.Message = message.String

	var raw map[string]string
	if conditions.String != "" {
		json.Unmarshal([]byte(conditions.String), &raw)
	}
	decoded, err := domain.DecodeConditions(rule.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
	}
	rule.Conditions = decoded

	return &rule, nil
}

const ruleColumns = `id, name, type, action, is_active, message, position, conditions`

// GetRule retrieves a rule by id.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `SELECT ` + ruleColumns + ` FROM compatibility_rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules in stable store order.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM compatibility_rules ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteRule removes a rule.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM compatibility_rules WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveBrackets replaces the warranty bracket list, preserving order.
func (r *SQLRepository) SaveBrackets(ctx context.Context, brackets []domain.PriceBracket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM warranty_brackets`); err != nil {
		return err
	}

	insert := r.rebind(`INSERT INTO warranty_brackets (position, min_price, max_price, cost) VALUES (?, ?, ?, ?)`)
	for i, b := range brackets {
		if b.Min >= b.Max {
			return fmt.Errorf("%w: bracket min must be below max", ErrInvalidInput)
		}
		if b.Cost < 0 {
			return fmt.Errorf("%w: bracket cost must not be negative", ErrInvalidInput)
		}
		if _, err := tx.ExecContext(ctx, insert, i, b.Min, b.Max, b.Cost); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBrackets retrieves warranty brackets in store order.
func (r *SQLRepository) ListBrackets(ctx context.Context) ([]domain.PriceBracket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT min_price, max_price, cost FROM warranty_brackets ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brackets []domain.PriceBracket
	for rows.Next() {
		var b domain.PriceBracket
		if err := rows.Scan(&b.Min, &b.Max, &b.Cost); err != nil {
			return nil, err
		}
		brackets = append(brackets, b)
	}

	return brackets, rows.Err()
}

// SaveWarrantyPlans stores the warranty slot's option products.
func (r *SQLRepository) SaveWarrantyPlans(ctx context.Context, plans *domain.WarrantyPlans) error {
	if plans == nil {
		return fmt.Errorf("%w: plans are required", ErrInvalidInput)
	}

	productIDs, _ := json.Marshal(plans.ProductIDs)

	query := `
		INSERT INTO warranty_plans (id, product_ids, default_product_id)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_ids = excluded.product_ids,
			default_product_id = excluded.default_product_id
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), string(productIDs), plans.DefaultProductID)
	return err
}

// GetWarrantyPlans retrieves the warranty slot's option products.
// Returns an empty plan set when none has been stored.
func (r *SQLRepository) GetWarrantyPlans(ctx context.Context) (*domain.WarrantyPlans, error) {
	var productIDs string
	var plans domain.WarrantyPlans

	err := r.db.QueryRowContext(ctx,
		`SELECT product_ids, default_product_id FROM warranty_plans WHERE id = 1`,
	).Scan(&productIDs, &plans.DefaultProductID)

	if errors.Is(err, sql.ErrNoRows) {
		return &domain.WarrantyPlans{}, nil
	}
	if err != nil {
		return nil, err
	}

	if productIDs != "" {
		json.Unmarshal([]byte(productIDs), &plans.ProductIDs)
	}

	return &plans, nil
}

// SaveOrder stores an accepted order.
func (r *SQLRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	configuration, _ := json.Marshal(order.Configuration)
	quantities, _ := json.Marshal(order.Quantities)
	lines, _ := json.Marshal(order.Lines)

	isDefault := 0
	if order.Default {
		isDefault = 1
	}

	query := `
		INSERT INTO orders (
			id, configurator_id, configuration, quantities, lines,
			subtotal, warranty_cost, total, is_default, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		order.ID, order.ConfiguratorID, string(configuration), string(quantities),
		string(lines), order.Subtotal, order.WarrantyCost, order.Total,
		isDefault, order.Status, order.CreatedAt,
	)
	return err
}

const orderColumns = `id, configurator_id, configuration, quantities, lines,
	   subtotal, warranty_cost, total, is_default, status, created_at`

func scanOrder(scan func(...any) error) (*domain.Order, error) {
	var order domain.Order
	var configuration, lines string
	var quantities sql.NullString
	var isDefault int

	if err := scan(
		&order.ID, &order.ConfiguratorID, &configuration, &quantities, &lines,
		&order.Subtotal, &order.WarrantyCost, &order.Total,
		&isDefault, &order.Status, &order.CreatedAt,
	); err != nil {
		return nil, err
	}

	order.Default = isDefault == 1
	json.Unmarshal([]byte(configuration), &order.Configuration)
	if quantities.String != "" {
		json.Unmarshal([]byte(quantities.String), &order.Quantities)
	}
	json.Unmarshal([]byte(lines), &order.Lines)

	return &order, nil
}

// GetOrder retrieves an order by id.
func (r *SQLRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, r.rebind(query), orderID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByConfigurator retrieves orders for a configurator since the
// given time, newest first.
func (r *SQLRepository) ListOrdersByConfigurator(ctx context.Context, configuratorID int64, since time.Time) ([]*domain.Order, error) {
	if configuratorID <= 0 {
		return nil, fmt.Errorf("%w: positive configurator id is required", ErrInvalidInput)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE configurator_id = ? AND created_at >= ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), configuratorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
