package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/repository/sqlite"
	"github.com/cliqshop/shop/internal/service"
)

// catalogSeed is the YAML layout accepted by `catalog import`.
type catalogSeed struct {
	Categories []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Products []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Price       string `yaml:"price"`
		ImageURL    string `yaml:"image_url"`
		Category    string `yaml:"category"`
		Stock       int    `yaml:"stock"`
	} `yaml:"products"`
}

type importResult struct {
	CategoriesCreated int
	CategoriesReused  int
	ProductsCreated   int
}

func init() {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog maintenance",
	}
	catalogCmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Seed categories, products and stock from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := migrations.Up(cmd.Context(), db); err != nil {
				return err
			}

			store := sqlite.NewStore(db)
			res, err := importCatalog(cmd.Context(), f, store,
				service.NewCategoryService(store, nil),
				service.NewProductService(service.ProductDeps{Store: store, LowThreshold: cfg.Inventory.LowStockThreshold}),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products (%d new categories, %d existing).\n",
				res.ProductsCreated, res.CategoriesCreated, res.CategoriesReused)
			return nil
		},
	})
	rootCmd.AddCommand(catalogCmd)
}

// importCatalog creates missing categories by name, then products with their initial stock.
// Products may also reference categories that already exist in the database. Unknown
// category names and bad prices abort the import before any product is written.
func importCatalog(ctx context.Context, r io.Reader, store repository.Store, categories service.CategoryService, products service.ProductService) (importResult, error) {
	var res importResult
	var seed catalogSeed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		return res, fmt.Errorf("decode catalog: %w", err)
	}

	ids := make(map[string]int64)
	for _, c := range seed.Categories {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		existing, err := store.Categories().FindByName(ctx, c.Name)
		switch {
		case err == nil:
			ids[key] = existing.ID
			res.CategoriesReused++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return res, fmt.Errorf("lookup category %q: %w", c.Name, err)
		}
		created, err := categories.Create(ctx, service.CategoryInput{Name: c.Name, Description: c.Description})
		if err != nil {
			return res, fmt.Errorf("create category %q: %w", c.Name, err)
		}
		ids[key] = created.ID
		res.CategoriesCreated++
	}

	inputs := make([]service.ProductInput, 0, len(seed.Products))
	for i, p := range seed.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
		if err != nil {
			return res, fmt.Errorf("product #%d %q: invalid price %q", i+1, p.Name, p.Price)
		}
		input := service.ProductInput{
			Name:         p.Name,
			Description:  p.Description,
			Price:        price,
			ImageURL:     p.ImageURL,
			InitialStock: p.Stock,
		}
		if name := strings.ToLower(strings.TrimSpace(p.Category)); name != "" {
			id, ok := ids[name]
			if !ok {
				existing, err := store.Categories().FindByName(ctx, p.Category)
				if err != nil {
					return res, fmt.Errorf("product #%d %q: unknown category %q: %w", i+1, p.Name, p.Category, err)
				}
				id = existing.ID
				ids[name] = id
			}
			input.CategoryID = &id
		}
		inputs = append(inputs, input)
	}

	for _, input := range inputs {
		if _, err := products.Create(ctx, input); err != nil {
			return res, fmt.Errorf("create product %q: %w", input.Name, err)
		}
		res.ProductsCreated++
	}
	return res, nil
}
