package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/logging"
	"storefront/internal/models"
)

var ErrInvalidProduct = errors.New("invalid product")

type VariantInput struct {
	Name      string  `json:"name" binding:"required"`
	SKU       string  `json:"sku"`
	Size      string  `json:"size"`
	Material  string  `json:"material"`
	Price     float64 `json:"price" binding:"gte=0"`
	Stock     int     `json:"stock" binding:"gte=0"`
	ImagePath string  `json:"imagePath"`
}

type ProductInput struct {
	Name        string         `json:"name" binding:"required"`
	Price       float64        `json:"price" binding:"required,gt=0"`
	SaleEnabled bool           `json:"saleEnabled"`
	SalePrice   float64        `json:"salePrice"`
	Category    []string       `json:"category" binding:"required,min=1"`
	Description string         `json:"description"`
	Material    string         `json:"material"`
	ImagePath   string         `json:"imagePath"`
	Images      []string       `json:"images"`
	Variants    []VariantInput `json:"variants" binding:"dive"`
	Stock       int            `json:"stock" binding:"gte=0"`
	IsFeatured  bool           `json:"isFeatured"`
}

type ProductUpdate struct {
	Name        *string   `json:"name"`
	Price       *float64  `json:"price"`
	SaleEnabled *bool     `json:"saleEnabled"`
	SalePrice   *float64  `json:"salePrice"`
	Category    *[]string `json:"category"`
	Description *string   `json:"description"`
	Material    *string   `json:"material"`
	ImagePath   *string   `json:"imagePath"`
	Stock       *int      `json:"stock"`
	IsActive    *bool     `json:"isActive"`
	IsFeatured  *bool     `json:"isFeatured"`
}

type CategoryInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logging.OrNop(logger), now: time.Now}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) Categories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	return s.repo.ListCategories(ctx, activeOnly)
}

// Resolve prices a cart item ref against the live catalog.
func (s *Service) Resolve(ctx context.Context, ref cart.ItemRef) (cart.Line, error) {
	p, err := s.repo.GetProduct(ctx, ref.ProductID)
	if err != nil {
		return cart.Line{}, err
	}
	if !p.IsActive {
		return cart.Line{}, ErrProductNotFound
	}

	if !ref.HasVariant() {
		return cart.Line{
			Name:      p.Name,
			UnitPrice: UnitPrice(p, nil),
			ImagePath: p.ImagePath,
			Stock:     p.Stock,
		}, nil
	}

	variant := findVariant(p, *ref.VariantID)
	if variant == nil || !variant.IsActive {
		return cart.Line{}, ErrVariantNotFound
	}
	image := variant.ImagePath
	if image == "" {
		image = p.ImagePath
	}
	return cart.Line{
		Name:        p.Name,
		VariantName: variant.Name,
		UnitPrice:   UnitPrice(p, variant),
		ImagePath:   image,
		Stock:       variant.Stock,
	}, nil
}

func findVariant(p models.Product, id int64) *models.Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	if err := validateSaleFields(in.Price, in.SaleEnabled, in.SalePrice, in.SalePrice > 0); err != nil {
		return models.Product{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	id, err := s.repo.NextID(ctx, "products")
	if err != nil {
		return models.Product{}, fmt.Errorf("next product id: %w", err)
	}

	variants := make([]models.Variant, 0, len(in.Variants))
	for _, v := range in.Variants {
		variantID, err := s.repo.NextID(ctx, "variants")
		if err != nil {
			return models.Product{}, fmt.Errorf("next variant id: %w", err)
		}
		variants = append(variants, models.Variant{
			ID:        variantID,
			Name:      strings.TrimSpace(v.Name),
			SKU:       strings.TrimSpace(v.SKU),
			Size:      strings.TrimSpace(v.Size),
			Material:  strings.TrimSpace(v.Material),
			Price:     v.Price,
			Stock:     v.Stock,
			ImagePath: strings.TrimSpace(v.ImagePath),
			IsActive:  true,
		})
	}

	p := models.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		SaleEnabled: in.SaleEnabled,
		SalePrice:   in.SalePrice,
		Category:    normalizeCategories(in.Category),
		Description: strings.TrimSpace(in.Description),
		Material:    strings.TrimSpace(in.Material),
		ImagePath:   strings.TrimSpace(in.ImagePath),
		Images:      in.Images,
		Variants:    variants,
		Stock:       in.Stock,
		IsActive:    true,
		IsFeatured:  in.IsFeatured,
		CreatedAt:   s.now(),
	}
	if err := s.repo.InsertProduct(ctx, &p); err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	decorate(&p)

	s.logger.Info("product created", zap.Int64("product_id", p.ID), zap.Int("variants", len(variants)))
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductUpdate) (models.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}

	sale, err := resolveSaleUpdate(existing.Price, existing.SaleEnabled, existing.SalePrice, SaleUpdateInput{
		Price:       in.Price,
		SaleEnabled: in.SaleEnabled,
		SalePrice:   in.SalePrice,
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	set := bson.M{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return models.Product{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidProduct)
		}
		set["name"] = name
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return models.Product{}, fmt.Errorf("%w: price must be greater than 0", ErrInvalidProduct)
		}
		set["price"] = sale.Price
	}
	if sale.SetSaleEnabled {
		set["saleEnabled"] = sale.SaleEnabled
	}
	if sale.SetSalePrice {
		set["salePrice"] = sale.SalePrice
	}
	if in.Category != nil {
		categories := normalizeCategories(*in.Category)
		if len(categories) == 0 {
			return models.Product{}, fmt.Errorf("%w: category required", ErrInvalidProduct)
		}
		set["category"] = categories
	}
	if in.Description != nil {
		set["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Material != nil {
		set["material"] = strings.TrimSpace(*in.Material)
	}
	if in.ImagePath != nil {
		set["imagePath"] = strings.TrimSpace(*in.ImagePath)
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return models.Product{}, fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
		}
		set["stock"] = *in.Stock
	}
	if in.IsActive != nil {
		set["isActive"] = *in.IsActive
	}
	if in.IsFeatured != nil {
		set["isFeatured"] = *in.IsFeatured
	}
	if len(set) == 0 {
		return existing, nil
	}

	if err := s.repo.UpdateProduct(ctx, id, set); err != nil {
		return models.Product{}, err
	}
	s.logger.Info("product updated", zap.Int64("product_id", id), zap.Int("fields", len(set)))
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// AddImage appends an uploaded image to the gallery. The first image also
// becomes the cover.
func (s *Service) AddImage(ctx context.Context, id int64, path string) (models.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}

	images := append(append([]string{}, existing.Images...), path)
	set := bson.M{"images": images}
	if existing.ImagePath == "" {
		set["imagePath"] = path
	}
	if err := s.repo.UpdateProduct(ctx, id, set); err != nil {
		return models.Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// RemoveImage drops an image from the gallery, moving the cover to the next
// remaining image when needed.
func (s *Service) RemoveImage(ctx context.Context, id int64, path string) (models.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}

	images := make([]string, 0, len(existing.Images))
	for _, img := range existing.Images {
		if img != path {
			images = append(images, img)
		}
	}
	set := bson.M{"images": images}
	if existing.ImagePath == path {
		cover := ""
		if len(images) > 0 {
			cover = images[0]
		}
		set["imagePath"] = cover
	}
	if err := s.repo.UpdateProduct(ctx, id, set); err != nil {
		return models.Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Category{}, fmt.Errorf("%w: name required", ErrInvalidProduct)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	c := models.Category{
		Name:        name,
		Slug:        Slugify(name),
		Description: strings.TrimSpace(in.Description),
		IsActive:    active,
		CreatedAt:   s.now(),
	}
	if err := s.repo.InsertCategory(ctx, &c); err != nil {
		return models.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id primitive.ObjectID, in CategoryInput) error {
	set := bson.M{}
	if name := strings.TrimSpace(in.Name); name != "" {
		set["name"] = name
		set["slug"] = Slugify(name)
	}
	if in.Description != "" {
		set["description"] = strings.TrimSpace(in.Description)
	}
	if in.IsActive != nil {
		set["isActive"] = *in.IsActive
	}
	if len(set) == 0 {
		return nil
	}
	return s.repo.UpdateCategory(ctx, id, set)
}

func normalizeCategories(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)

	for _, v := range values {
		slug := Slugify(v)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

var slugReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// Slugify lower-cases a category name and joins words with dashes.
func Slugify(name string) string {
	lowered := slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	dash := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
