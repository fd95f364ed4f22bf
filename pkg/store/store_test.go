package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore/service/pkg/config"
)

func newSQLiteForTest(t *testing.T, driver string) *SQLiteStore {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:       driver,
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}

	s, err := NewSQLiteStore(context.Background(), cfg)
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skipf("driver %s needs cgo: %v", driver, err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every Store implementation so the same behaviour is
// checked against each of them.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory":  func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite":  func(t *testing.T) Store { return newSQLiteForTest(t, "sqlite") },
		"sqlite3": func(t *testing.T) Store { return newSQLiteForTest(t, "sqlite3") },
	}
}

func TestStore_Products(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			empty, err := s.ListProducts(ctx)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			first, err := s.CreateProduct(ctx, "Kind of Blue", 24.99)
			require.NoError(t, err)
			second, err := s.CreateProduct(ctx, "Blue Train", 19.5)
			require.NoError(t, err)
			assert.Greater(t, second.ID, first.ID)

			got, err := s.GetProduct(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, *first, *got)

			all, err := s.ListProducts(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "Kind of Blue", all[0].Name)
			assert.Equal(t, "Blue Train", all[1].Name)

			_, err = s.GetProduct(ctx, 999)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Orders(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			p, err := s.CreateProduct(ctx, "A Love Supreme", 30)
			require.NoError(t, err)

			o, err := s.CreateOrder(ctx, p.ID, 2)
			require.NoError(t, err)
			assert.Equal(t, StatusPending, o.Status)
			assert.Equal(t, p.ID, o.ProductID)
			assert.Equal(t, 2, o.Quantity)
			assert.False(t, o.CreatedAt.IsZero())

			got, err := s.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
			assert.Equal(t, StatusPending, got.Status)
			assert.True(t, o.CreatedAt.Equal(got.CreatedAt))

			require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, StatusCompleted))
			got, err = s.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

			orders, err := s.ListOrders(ctx)
			require.NoError(t, err)
			assert.Len(t, orders, 1)

			_, err = s.GetOrder(ctx, 999)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.UpdateOrderStatus(ctx, 999, StatusFailed), ErrNotFound)
		})
	}
}

func TestStore_CreateOrderUnknownProduct(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)

			_, err := s.CreateOrder(context.Background(), 42, 1)
			require.Error(t, err)

			var storageErr *StorageError
			assert.ErrorAs(t, err, &storageErr)
			assert.Equal(t, "create_order", storageErr.Operation)
		})
	}
}

func TestStore_ListOrdersByStatus(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			p, err := s.CreateProduct(ctx, "Mingus Ah Um", 22)
			require.NoError(t, err)

			stale, err := s.CreateOrder(ctx, p.ID, 1)
			require.NoError(t, err)
			done, err := s.CreateOrder(ctx, p.ID, 1)
			require.NoError(t, err)
			require.NoError(t, s.UpdateOrderStatus(ctx, done.ID, StatusCompleted))

			cutoff := time.Now().Add(time.Minute)
			pending, err := s.ListOrdersByStatus(ctx, StatusPending, cutoff)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, stale.ID, pending[0].ID)

			none, err := s.ListOrdersByStatus(ctx, StatusPending, time.Now().Add(-time.Hour))
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_PingAndClose(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(ctx))

	_, err := s.CreateProduct(ctx, "late", 1)
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, "Giant Steps", 18)
	require.NoError(t, err)
	p.Name = "mutated"

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Giant Steps", got.Name)
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateProduct(ctx, "Moanin'", 15)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 50)
	for i, p := range products {
		assert.Equal(t, int64(i+1), p.ID)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "nested", "store.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	}
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, cfg)
	require.NoError(t, err)
	p, err := s.CreateProduct(ctx, "Time Out", 21)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Time Out", got.Name)
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "modernc",
			cfg:  config.DatabaseConfig{Driver: "sqlite", Path: "data/store.db", WALMode: true, BusyTimeout: 5 * time.Second},
			want: "data/store.db?_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29&_pragma=journal_mode%28WAL%29",
		},
		{
			name: "mattn",
			cfg:  config.DatabaseConfig{Driver: "sqlite3", Path: "data/store.db", WALMode: true, BusyTimeout: time.Second},
			want: "data/store.db?_busy_timeout=1000&_foreign_keys=on&_journal_mode=WAL",
		},
		{
			name: "in-memory skips WAL",
			cfg:  config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", WALMode: true},
			want: ":memory:?_pragma=busy_timeout%280%29&_pragma=foreign_keys%281%29",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dataSourceName(&tt.cfg))
		})
	}
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	for _, driver := range []string{"sqlite", "sqlite3"} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.DatabaseConfig{
				Driver:       driver,
				Path:         filepath.Join(t.TempDir(), "pool.db"),
				MaxOpenConns: 3,
				MaxIdleConns: 3,
				WALMode:      true,
				BusyTimeout:  2 * time.Second,
			}
			ctx := context.Background()

			s, err := NewSQLiteStore(ctx, cfg)
			if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
				t.Skipf("driver %s needs cgo: %v", driver, err)
			}
			require.NoError(t, err)
			defer s.Close()

			// Hold three connections at once so each is a distinct pool member.
			var conns []*sql.Conn
			for i := 0; i < 3; i++ {
				conn, err := s.db.Conn(ctx)
				require.NoError(t, err)
				conns = append(conns, conn)

				var fk, busy int
				require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
				require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
				assert.Equal(t, 1, fk, "connection %d foreign_keys", i)
				assert.Equal(t, 2000, busy, "connection %d busy_timeout", i)
			}
			for _, conn := range conns {
				require.NoError(t, conn.Close())
			}

			_, err = s.CreateOrder(ctx, 999, 1)
			assert.Error(t, err, "orders must reference an existing product")
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), &config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(context.Background(), &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "open.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
}
