package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"net/url"
	"path/filepath"
	"time"

	// Both SQLite drivers are linked; database.driver selects one.
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"recordstore/service/pkg/config"
)

const backendSQLite = "sqlite"

// SQLiteStore implements Store on top of database/sql and SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *config.DatabaseConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens the database, applies the pragmas and creates the
// schema if it does not exist yet.
func NewSQLiteStore(ctx context.Context, cfg *config.DatabaseConfig) (*SQLiteStore, error) {
	if cfg == nil {
		return nil, errors.New("database config is nil")
	}

	logger := slog.Default().With("component", "store.sqlite")

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStorageError(backendSQLite, "create_directory", err)
			}
		}
	}

	db, err := sql.Open(cfg.Driver, dataSourceName(cfg))
	if err != nil {
		return nil, NewStorageError(backendSQLite, "open", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}

	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// dataSourceName appends the connection pragmas to the database path.
// database/sql opens connections on demand, so the pragmas must be part of
// the DSN for every pooled connection to get them. The two drivers spell
// the parameters differently.
func dataSourceName(cfg *config.DatabaseConfig) string {
	busy := cfg.BusyTimeout.Milliseconds()
	wal := cfg.WALMode && cfg.Path != ":memory:"

	params := url.Values{}
	if cfg.Driver == "sqlite3" {
		params.Set("_busy_timeout", fmt.Sprint(busy))
		params.Set("_foreign_keys", "on")
		if wal {
			params.Set("_journal_mode", "WAL")
		}
	} else {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
		params.Add("_pragma", "foreign_keys(1)")
		if wal {
			params.Add("_pragma", "journal_mode(WAL)")
		}
	}
	return cfg.Path + "?" + params.Encode()
}

// initialize creates the schema and checks its version. Connection pragmas
// are set through dataSourceName.
func (s *SQLiteStore) initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return NewStorageError(backendSQLite, "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.ExecContext(ctx, InsertSchemaVersion, SchemaVersion, s.now().UnixNano()); err != nil {
		return NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	return nil
}

// CreateProduct inserts a product.
func (s *SQLiteStore) CreateProduct(ctx context.Context, name string, price float64) (*Product, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO products (name, price) VALUES (?, ?)`, name, price)
	if err != nil {
		return nil, NewStorageError(backendSQLite, "create_product", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, NewStorageError(backendSQLite, "create_product", err)
	}
	return &Product{ID: id, Name: name, Price: price}, nil
}

// GetProduct returns the product with id.
func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `SELECT id, name, price FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError(backendSQLite, "get_product", err)
	}
	return &p, nil
}

// ListProducts returns all products.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price FROM products ORDER BY id`)
	if err != nil {
		return nil, NewStorageError(backendSQLite, "list_products", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, NewStorageError(backendSQLite, "scan_product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendSQLite, "list_products", err)
	}
	return products, nil
}

// CreateOrder inserts a pending order.
func (s *SQLiteStore) CreateOrder(ctx context.Context, productID int64, quantity int) (*Order, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (product_id, quantity, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		productID, quantity, string(StatusPending), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, NewStorageError(backendSQLite, "create_order", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, NewStorageError(backendSQLite, "create_order", err)
	}
	return &Order{
		ID:        id,
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: time.Unix(0, now.UnixNano()).UTC(),
		UpdatedAt: time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

const orderColumns = `id, product_id, quantity, status, created_at, updated_at`

// GetOrder returns the order with id.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError(backendSQLite, "get_order", err)
	}
	return o, nil
}

// ListOrders returns all orders.
func (s *SQLiteStore) ListOrders(ctx context.Context) ([]Order, error) {
	return s.queryOrders(ctx, "list_orders", `SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

// ListOrdersByStatus returns orders in status last updated before olderThan.
func (s *SQLiteStore) ListOrdersByStatus(ctx context.Context, status OrderStatus, olderThan time.Time) ([]Order, error) {
	return s.queryOrders(ctx, "list_orders_by_status",
		`SELECT `+orderColumns+` FROM orders WHERE status = ? AND updated_at < ? ORDER BY id`,
		string(status), olderThan.UnixNano(),
	)
}

// UpdateOrderStatus sets the status of an order.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC().UnixNano(), id,
	)
	if err != nil {
		return NewStorageError(backendSQLite, "update_order_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError(backendSQLite, "update_order_status", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(backendSQLite, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("SQLite store closed")
	return nil
}

func (s *SQLiteStore) queryOrders(ctx context.Context, op, query string, args ...any) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError(backendSQLite, op, err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, NewStorageError(backendSQLite, "scan_order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendSQLite, op, err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var (
		o                Order
		status           string
		created, updated int64
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &status, &created, &updated); err != nil {
		return nil, err
	}
	o.Status = OrderStatus(status)
	o.CreatedAt = time.Unix(0, created).UTC()
	o.UpdatedAt = time.Unix(0, updated).UTC()
	return &o, nil
}
