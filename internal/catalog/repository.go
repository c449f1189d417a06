package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

// Repository reads products and delivery options from the catalog database.
type Repository struct {
	db     *sql.DB
	driver string
}

func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// an in-memory database exists once per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+r.driver)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "catalog_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, title, image_url, retail_price
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Title, &p.ImageURL, &p.RetailPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// LookupPrice returns the product's current retail price.
func (r *Repository) LookupPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.RetailPrice, nil
}

// LookupDisplays resolves display data for every id that still exists. Ids
// with no product are left out of the result.
func (r *Repository) LookupDisplays(ctx context.Context, productIDs []string) (map[string]domain.Display, error) {
	out := make(map[string]domain.Display, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(productIDs))
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, title, image_url
		FROM products
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var d domain.Display
		if err := rows.Scan(&id, &d.Title, &d.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[id] = d
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

func (r *Repository) GetDeliveryOption(ctx context.Context, id string) (*domain.DeliveryOption, error) {
	query := `
		SELECT id, delivery_name, delivery_price, delivery_method, delivery_timeframe, order_by, is_active
		FROM delivery_options
		WHERE id = $1
	`

	o := &domain.DeliveryOption{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.Name, &o.Price, &o.Method, &o.Timeframe, &o.Order, &o.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeliveryOptionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery option: %w", err)
	}

	return o, nil
}

func (r *Repository) LookupDeliveryFee(ctx context.Context, deliveryID string) (decimal.Decimal, error) {
	o, err := r.GetDeliveryOption(ctx, deliveryID)
	if err != nil {
		return decimal.Zero, err
	}
	return o.Price, nil
}

// ListDeliveryOptions returns the active options in display order.
func (r *Repository) ListDeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error) {
	query := `
		SELECT id, delivery_name, delivery_price, delivery_method, delivery_timeframe, order_by, is_active
		FROM delivery_options
		WHERE is_active = TRUE
		ORDER BY order_by, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery options: %w", err)
	}
	defer rows.Close()

	var options []domain.DeliveryOption
	for rows.Next() {
		var o domain.DeliveryOption
		if err := rows.Scan(&o.ID, &o.Name, &o.Price, &o.Method, &o.Timeframe, &o.Order, &o.Active); err != nil {
			return nil, fmt.Errorf("failed to scan delivery option: %w", err)
		}
		options = append(options, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return options, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
