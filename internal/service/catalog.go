// 文件路径: internal/service/catalog.go
// 模块说明: 商品与分类管理，商品变更会清理缓存并通过实时通道广播。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/cache"
	"github.com/cliqshop/shop/internal/repository"
)

// Realtime actions. They match realtime.ActionCreated etc.
const (
	ProductCreated = "CREATED"
	ProductUpdated = "UPDATED"
	ProductDeleted = "DELETED"
)

const (
	productCacheTTL       = 5 * time.Minute
	productCacheNamespace = "catalog:product"
)

// CategoryInput 描述分类的创建与修改。
type CategoryInput struct {
	Name        string
	Description string
}

// CategoryService 管理商品分类。
type CategoryService interface {
	Create(ctx context.Context, input CategoryInput) (*repository.Category, error)
	Update(ctx context.Context, id int64, input CategoryInput) (*repository.Category, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*repository.Category, error)
	List(ctx context.Context) ([]*repository.Category, error)
}

// NewCategoryService 组装分类服务。cacheStore 与商品服务共用，分类改名或删除时清理其下商品的缓存；可为空。
func NewCategoryService(store repository.Store, cacheStore cache.Store) CategoryService {
	svc := &categoryService{store: store, logger: discardLogger()}
	if cacheStore != nil {
		svc.products = cacheStore.Namespace(productCacheNamespace)
	}
	return svc
}

type categoryService struct {
	store    repository.Store
	products cache.Store
	logger   *slog.Logger
}

func (s *categoryService) Create(ctx context.Context, input CategoryInput) (*repository.Category, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("category %w", errIncomplete)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidf("category name is required / 分类名称不能为空")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}
	created, err := s.store.Categories().Create(ctx, &repository.Category{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return created, nil
}

func (s *categoryService) Update(ctx context.Context, id int64, input CategoryInput) (*repository.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	renamed := false
	if name := strings.TrimSpace(input.Name); name != "" && name != category.Name {
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		category.Name = name
		renamed = true
	}
	category.Description = strings.TrimSpace(input.Description)
	if err := s.store.Categories().Update(ctx, category); err != nil {
		return nil, mapRepoErr(err)
	}
	if renamed && s.products != nil {
		ids, err := s.store.Products().IDsByCategory(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "category products not listed for cache eviction", "category_id", id, "error", err)
		}
		s.evictProducts(ctx, ids)
	}
	return category, nil
}

// Delete removes the category and leaves its products uncategorised.
func (s *categoryService) Delete(ctx context.Context, id int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("category %w", errIncomplete)
	}
	var detached []int64
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Categories().FindByID(ctx, id); err != nil {
			return err
		}
		ids, err := tx.Products().IDsByCategory(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Products().DetachCategory(ctx, id); err != nil {
			return err
		}
		if err := tx.Categories().Delete(ctx, id); err != nil {
			return err
		}
		detached = ids
		return nil
	})
	if err != nil {
		return mapRepoErr(err)
	}
	s.evictProducts(ctx, detached)
	return nil
}

// evictProducts drops cached products whose joined category fields went stale.
func (s *categoryService) evictProducts(ctx context.Context, ids []int64) {
	if s.products == nil {
		return
	}
	for _, id := range ids {
		if err := s.products.Delete(ctx, productCacheKey(id)); err != nil {
			s.logger.WarnContext(ctx, "product cache eviction failed", "product_id", id, "error", err)
		}
	}
}

func (s *categoryService) Get(ctx context.Context, id int64) (*repository.Category, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("category %w", errIncomplete)
	}
	category, err := s.store.Categories().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]*repository.Category, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("category %w", errIncomplete)
	}
	return s.store.Categories().List(ctx)
}

func (s *categoryService) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.Categories().FindByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: category %q already exists / 分类名称已存在", ErrConflict, name)
	}
	return nil
}

// ProductInput 描述商品的创建与修改。
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	CategoryID  *int64
	// InitialStock seeds the inventory row on Create.
	InitialStock int
}

// ProductMessage is the realtime payload for product changes.
type ProductMessage struct {
	ID           int64  `json:"id"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	CategoryID   *int64 `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
}

// ProductService 管理商品目录。
type ProductService interface {
	Create(ctx context.Context, input ProductInput) (*repository.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*repository.Product, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*repository.Product, error)
	List(ctx context.Context, page Page) ([]*repository.Product, error)
	ListByCategory(ctx context.Context, categoryID int64, page Page) ([]*repository.Product, error)
	Search(ctx context.Context, name string, page Page) ([]*repository.Product, error)
}

// ProductDeps 聚合商品服务依赖。
type ProductDeps struct {
	Store        repository.Store
	Cache        cache.Store
	Broadcaster  ProductBroadcaster
	LowThreshold int
	Logger       *slog.Logger
}

// NewProductService 组装商品服务。
func NewProductService(deps ProductDeps) ProductService {
	svc := &productService{
		store:        deps.Store,
		broadcaster:  deps.Broadcaster,
		lowThreshold: deps.LowThreshold,
		logger:       orDiscard(deps.Logger),
	}
	if deps.Cache != nil {
		svc.cache = deps.Cache.Namespace(productCacheNamespace)
	}
	if svc.lowThreshold < 0 {
		svc.lowThreshold = 0
	}
	return svc
}

type productService struct {
	store        repository.Store
	cache        cache.Store
	broadcaster  ProductBroadcaster
	lowThreshold int
	logger       *slog.Logger
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("product %w", errIncomplete)
	}
	product, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	if input.InitialStock < 0 {
		return nil, invalidf("initial stock cannot be negative / 初始库存不能为负数")
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if product.CategoryID != nil {
			if _, err := tx.Categories().FindByID(ctx, *product.CategoryID); err != nil {
				return err
			}
		}
		created, err := tx.Products().Create(ctx, product)
		if err != nil {
			return err
		}
		_, err = tx.Inventory().Create(ctx, &repository.Inventory{
			ProductID:         created.ID,
			Quantity:          input.InitialStock,
			LowStockThreshold: s.lowThreshold,
		})
		return err
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	// Reload for the joined category name.
	created, err := s.store.Products().FindByID(ctx, product.ID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.broadcast(ProductCreated, toProductMessage(created))
	return created, nil
}

func (s *productService) Update(ctx context.Context, id int64, input ProductInput) (*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("product %w", errIncomplete)
	}
	next, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if next.CategoryID != nil {
		if _, err := s.store.Categories().FindByID(ctx, *next.CategoryID); err != nil {
			return nil, mapRepoErr(err)
		}
	}
	current.Name = next.Name
	current.Description = next.Description
	current.Price = next.Price
	current.ImageURL = next.ImageURL
	current.CategoryID = next.CategoryID
	if err := s.store.Products().Update(ctx, current); err != nil {
		return nil, mapRepoErr(err)
	}
	s.invalidate(ctx, id)
	updated, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.broadcast(ProductUpdated, toProductMessage(updated))
	return updated, nil
}

// Delete removes the product with its inventory row and any cart lines.
func (s *productService) Delete(ctx context.Context, id int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("product %w", errIncomplete)
	}
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().FindByID(ctx, id); err != nil {
			return err
		}
		if err := tx.Inventory().DeleteByProduct(ctx, id); err != nil {
			return err
		}
		if err := tx.Carts().DeleteItemsByProduct(ctx, id); err != nil {
			return err
		}
		return tx.Products().Delete(ctx, id)
	})
	if err != nil {
		return mapRepoErr(err)
	}
	s.invalidate(ctx, id)
	s.broadcast(ProductDeleted, ProductMessage{ID: id})
	return nil
}

func (s *productService) Get(ctx context.Context, id int64) (*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("product %w", errIncomplete)
	}
	key := productCacheKey(id)
	if s.cache != nil {
		var cached repository.Product
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, product, productCacheTTL); err != nil {
			s.logger.DebugContext(ctx, "product cache write failed", "product_id", id, "error", err)
		}
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, page Page) ([]*repository.Product, error) {
	return s.list(ctx, repository.ProductFilter{Limit: page.Limit, Offset: page.Offset})
}

func (s *productService) ListByCategory(ctx context.Context, categoryID int64, page Page) ([]*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("product %w", errIncomplete)
	}
	if _, err := s.store.Categories().FindByID(ctx, categoryID); err != nil {
		return nil, mapRepoErr(err)
	}
	return s.list(ctx, repository.ProductFilter{CategoryID: &categoryID, Limit: page.Limit, Offset: page.Offset})
}

func (s *productService) Search(ctx context.Context, name string, page Page) ([]*repository.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("search term is required / 搜索关键字不能为空")
	}
	return s.list(ctx, repository.ProductFilter{Name: name, Limit: page.Limit, Offset: page.Offset})
}

func (s *productService) list(ctx context.Context, filter repository.ProductFilter) ([]*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("product %w", errIncomplete)
	}
	return s.store.Products().List(ctx, filter)
}

func (s *productService) validate(input ProductInput) (*repository.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidf("product name is required / 商品名称不能为空")
	}
	if input.Price.IsNegative() {
		return nil, invalidf("price cannot be negative / 价格不能为负数")
	}
	return &repository.Product{
		Name:        name,
		Description: sanitizeHTML(input.Description),
		Price:       roundMoney(input.Price),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		CategoryID:  input.CategoryID,
	}, nil
}

func (s *productService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, productCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed", "product_id", id, "error", err)
	}
}

func (s *productService) broadcast(action string, payload ProductMessage) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastProduct(action, payload)
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

func toProductMessage(p *repository.Product) ProductMessage {
	return ProductMessage{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price.StringFixed(2),
		ImageURL:     p.ImageURL,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
	}
}

func sanitizeHTML(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	return productHTMLPolicy().Sanitize(trimmed)
}

var productHTMLPolicy = sync.OnceValue(func() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AllowURLSchemes("http", "https")
	policy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	policy.AddSpaceWhenStrippingTag(true)
	return policy
})
