package inventory

import (
	"context"
	"errors"
)

// RepositoryPort defines data access methods for inventory.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	AdjustStock(ctx context.Context, productID int64, delta float64, reference string, actorID int64) (*StockMovement, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error)
}

// Service handles inventory business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Register creates a product after basic validation.
func (s *Service) Register(ctx context.Context, input CreateProductInput) (*Product, error) {
	if input.SKU == "" {
		return nil, errors.New("inventory: sku required")
	}
	if input.Name == "" {
		return nil, errors.New("inventory: name required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, errors.New("inventory: unit price must be >= 0")
	}
	if input.Stock < 0 {
		return nil, errors.New("inventory: stock must be >= 0")
	}
	return s.repo.CreateProduct(ctx, input)
}

// Get returns a product by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// List returns active products.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Product, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

// Adjust applies a manual stock delta.
func (s *Service) Adjust(ctx context.Context, productID int64, delta float64, reference string, actorID int64) (*StockMovement, error) {
	if delta == 0 {
		return nil, errors.New("inventory: delta must be non-zero")
	}
	return s.repo.AdjustStock(ctx, productID, delta, reference, actorID)
}

// Movements returns recent movements for a product.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// GetProducts loads a batch of products keyed by ID.
func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return s.repo.GetProducts(ctx, ids)
}

// CheckAvailability verifies every requirement can be covered from stock.
// The first shortfall found is returned as an *InsufficientStockError.
func (s *Service) CheckAvailability(ctx context.Context, reqs []StockRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.ProductID)
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		p, ok := products[req.ProductID]
		if !ok {
			return ErrNotFound
		}
		if p.Stock < req.Quantity {
			return &InsufficientStockError{
				ProductID: p.ID,
				Product:   p.Name,
				Requested: req.Quantity,
				Available: p.Stock,
			}
		}
	}
	return nil
}
