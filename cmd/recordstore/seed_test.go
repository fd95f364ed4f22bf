package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"recordstore/service/pkg/cli"
	"recordstore/service/pkg/config"
	"recordstore/service/pkg/store"
)

const testCatalog = `
products:
  - name: Kind of Blue
    price: 24.99
  - name: Blue Train
    price: 19.5
  - name: A Love Supreme
    price: 22
`

func TestReadCatalog(t *testing.T) {
	items, err := readCatalog(writeFile(t, "catalog.yaml", testCatalog))
	if err != nil {
		t.Fatalf("readCatalog() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[1].Name != "Blue Train" || items[1].Price != 19.5 {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestReadCatalogInvalid(t *testing.T) {
	tests := map[string]string{
		"missing name":   "products:\n  - price: 10\n",
		"negative price": "products:\n  - name: Bad\n    price: -1\n",
		"not yaml":       "products: [",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := readCatalog(writeFile(t, "catalog.yaml", content)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSeedSkipExisting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if _, err := st.CreateProduct(ctx, "Blue Train", 18); err != nil {
		t.Fatal(err)
	}

	items := []catalogItem{{Name: "Kind of Blue", Price: 24.99}, {Name: "Blue Train", Price: 19.5}}
	buf := &bytes.Buffer{}

	result, err := seed(ctx, st, items, true, cli.NewProgressReporter(buf, "Seeding"))
	if err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if result.Created != 1 || result.Skipped != 1 || result.Products != 2 {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(buf.String(), "(2/2)") {
		t.Errorf("progress output = %q", buf.String())
	}

	result, err = seed(ctx, st, items, false, cli.NewProgressReporter(&bytes.Buffer{}, "Seeding"))
	if err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if result.Created != 2 || result.Products != 4 {
		t.Errorf("result = %+v", result)
	}
}

func TestSeedCommandSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "seed.db")
	cfgPath := writeFile(t, "config.yaml", "database:\n  driver: sqlite\n  path: "+dbPath+"\n")
	catalogPath := writeFile(t, "catalog.yaml", testCatalog)

	out, err := execute(t, "seed", "--config", cfgPath, "--file", catalogPath)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out, "Seeded 3 products") {
		t.Errorf("unexpected output:\n%s", out)
	}

	cfg := config.Default()
	cfg.Database.Path = dbPath
	st, err := store.Open(context.Background(), &cfg.Database)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer st.Close()

	products, err := st.ListProducts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 3 || products[0].Name != "Kind of Blue" {
		t.Errorf("products = %+v", products)
	}
}

func TestSeedCommandRequiresFile(t *testing.T) {
	if _, err := execute(t, "seed", "--config", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error without --file")
	}
}
