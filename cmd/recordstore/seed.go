package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"recordstore/service/pkg/cli"
	"recordstore/service/pkg/store"
)

var seedFlags struct {
	file         string
	skipExisting bool
}

// catalog is the file format read by the seed command:
//
//	products:
//	  - name: Kind of Blue
//	    price: 24.99
type catalog struct {
	Products []catalogItem `yaml:"products" validate:"dive"`
}

type catalogItem struct {
	Name  string  `yaml:"name" validate:"required,max=200"`
	Price float64 `yaml:"price" validate:"gte=0"`
}

type seedResult struct {
	File     string `json:"file" yaml:"file"`
	Created  int    `json:"created" yaml:"created"`
	Skipped  int    `json:"skipped" yaml:"skipped"`
	Products int    `json:"products" yaml:"products"`
}

func (r seedResult) Lines() []string {
	return []string{
		fmt.Sprintf("✓ Seeded %d products from %s (%d skipped)", r.Created, r.File, r.Skipped),
		fmt.Sprintf("  Catalog now holds %d products", r.Products),
	}
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load products from a catalog file",
	Long: `Insert the products listed in a YAML catalog file into the configured
store. The whole file is validated before anything is written.

Examples:
  # Load a catalog into the configured database
  recordstore seed --file catalog.yaml

  # Re-run safely, skipping products whose name already exists
  recordstore seed --file catalog.yaml --skip-existing`,
	Args: cobra.NoArgs,
	RunE: seedCatalog,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFlags.file, "file", "f", "", "catalog file (required)")
	seedCmd.Flags().BoolVar(&seedFlags.skipExisting, "skip-existing", false, "skip products whose name already exists")
	_ = seedCmd.MarkFlagRequired("file")
}

func seedCatalog(cmd *cobra.Command, args []string) error {
	items, err := readCatalog(seedFlags.file)
	if err != nil {
		return cli.NewCommandError("seed", err)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		return cli.NewCommandError("seed", fmt.Errorf("failed to open store: %w", err))
	}
	defer st.Close()

	result, err := seed(ctx, st, items, seedFlags.skipExisting, cli.NewProgressReporter(cmd.ErrOrStderr(), "Seeding"))
	if err != nil {
		return cli.NewCommandError("seed", err)
	}
	result.File = seedFlags.file

	return writeResult(cmd, result)
}

func readCatalog(path string) ([]catalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %q: %w", path, err)
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %q: %w", path, err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid catalog %q: %w", path, err)
	}
	return c.Products, nil
}

func seed(ctx context.Context, st store.Store, items []catalogItem, skipExisting bool, progress cli.ProgressReporter) (seedResult, error) {
	var result seedResult

	existing := make(map[string]struct{})
	if skipExisting {
		products, err := st.ListProducts(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to list products: %w", err)
		}
		for _, p := range products {
			existing[p.Name] = struct{}{}
		}
	}

	progress.Start(int64(len(items)))
	for _, item := range items {
		if _, ok := existing[item.Name]; ok {
			result.Skipped++
			progress.Increment()
			continue
		}
		if _, err := st.CreateProduct(ctx, item.Name, item.Price); err != nil {
			progress.Error(err)
			return result, fmt.Errorf("failed to create product %q: %w", item.Name, err)
		}
		if skipExisting {
			existing[item.Name] = struct{}{}
		}
		result.Created++
		progress.Increment()
	}
	progress.Finish()

	products, err := st.ListProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list products: %w", err)
	}
	result.Products = len(products)
	return result, nil
}
