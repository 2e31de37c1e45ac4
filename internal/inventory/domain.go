package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates stock movement types.
type MovementKind string

const (
	MovementSale       MovementKind = "SALE"
	MovementReversal   MovementKind = "REVERSAL"
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// Product is a sellable item with an on-hand quantity.
type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     float64         `json:"stock"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StockMovement records one change to a product's on-hand quantity.
type StockMovement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  float64      `json:"quantity"`
	Balance   float64      `json:"balance"`
	Reference string       `json:"reference"`
	ActorID   int64        `json:"actor_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreateProductInput for registering a product.
type CreateProductInput struct {
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	Stock     float64
}

// StockRequirement is one product quantity a sale needs on hand.
type StockRequirement struct {
	ProductID int64
	Quantity  float64
}

// ErrNotFound indicates product not found.
var ErrNotFound = errors.New("inventory: not found")

// InsufficientStockError reports a product that cannot cover a requested
// quantity. Callers surface the product name and available amount as-is.
type InsufficientStockError struct {
	ProductID int64
	Product   string
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %.2f, available %.2f", e.Product, e.Requested, e.Available)
}
