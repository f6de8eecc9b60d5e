package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence: the catalog
// store, configurator definitions, compatibility rules, warranty
// brackets, and accepted orders.
type Repository interface {
	// Catalog store
	SaveProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)
	GetProductsInCategories(ctx context.Context, categoryIDs []int64) ([]*Product, error)

	// Configurator definitions
	SaveConfigurator(ctx context.Context, c *Configurator) error
	GetConfigurator(ctx context.Context, id int64) (*Configurator, error)

	// Compatibility rules, ordered by position
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Warranty brackets and plan products
	SaveBrackets(ctx context.Context, brackets []PriceBracket) error
	ListBrackets(ctx context.Context) ([]PriceBracket, error)
	SaveWarrantyPlans(ctx context.Context, plans *WarrantyPlans) error
	GetWarrantyPlans(ctx context.Context) (*WarrantyPlans, error)

	// Accepted orders
	SaveOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrdersByConfigurator(ctx context.Context, configuratorID int64, since time.Time) ([]*Order, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `envconfig:"DB_DRIVER"`

	// SQLite specific
	SQLitePath string `envconfig:"SQLITE_PATH"`

	// PostgreSQL specific
	PostgresHost     string `envconfig:"POSTGRES_HOST"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT"`
	PostgresUser     string `envconfig:"POSTGRES_USER"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE"`

	// Connection pool settings
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME"`
}
