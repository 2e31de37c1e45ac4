package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates credit-order states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConverted OrderStatus = "CONVERTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a pending credit order awaiting conversion into a sale.
type Order struct {
	ID        int64           `json:"id"`
	Folio     string          `json:"folio"`
	ClientID  int64           `json:"client_id"`
	Status    OrderStatus     `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	SaleID    *int64          `json:"sale_id,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Lines     []OrderLine     `json:"lines,omitempty"`
}

// OrderLine is one product position on an order.
type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  float64         `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	LineOrder int             `json:"line_order"`
}

// CreateOrderInput for registering an order.
type CreateOrderInput struct {
	ClientID   int64
	Discount   decimal.Decimal
	TaxPercent decimal.Decimal
	Notes      *string
	CreatedBy  int64
	Lines      []CreateOrderLineInput
}

// CreateOrderLineInput is one requested line.
type CreateOrderLineInput struct {
	ProductID int64
	Quantity  float64
	UnitPrice decimal.Decimal
}

var (
	// ErrNotFound indicates order not found.
	ErrNotFound = errors.New("orders: not found")
	// ErrInvalidStatus indicates the order cannot move to the requested state.
	ErrInvalidStatus = errors.New("orders: invalid status transition")
)
