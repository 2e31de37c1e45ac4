package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/crediario-erp/crediario/internal/shared"
)

// RepositoryPort defines data access methods for orders.
type RepositoryPort interface {
	Create(ctx context.Context, order Order) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, status *OrderStatus, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) error
}

// ClientPort verifies the debtor exists before an order is taken.
type ClientPort interface {
	Exists(ctx context.Context, clientID int64) error
}

// Service handles order business logic.
type Service struct {
	repo    RepositoryPort
	clients ClientPort
	clock   shared.Clock
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, clients ClientPort, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{repo: repo, clients: clients, clock: clock}
}

// Create registers a pending order. Totals are computed from the lines with
// a flat tax percentage; the discount applies before tax.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if input.ClientID == 0 {
		return nil, errors.New("orders: client required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("orders: at least one line required")
	}
	if input.Discount.IsNegative() {
		return nil, errors.New("orders: discount must be >= 0")
	}
	if s.clients != nil {
		if err := s.clients.Exists(ctx, input.ClientID); err != nil {
			return nil, fmt.Errorf("orders: verify client: %w", err)
		}
	}

	subtotal := decimal.Zero
	lines := make([]OrderLine, 0, len(input.Lines))
	for i, lineReq := range input.Lines {
		if lineReq.Quantity <= 0 {
			return nil, errors.New("orders: line quantity must be positive")
		}
		if lineReq.UnitPrice.IsNegative() {
			return nil, errors.New("orders: line unit price must be >= 0")
		}
		lineTotal := lineReq.UnitPrice.Mul(decimal.NewFromFloat(lineReq.Quantity)).Round(2)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, OrderLine{
			ProductID: lineReq.ProductID,
			Quantity:  lineReq.Quantity,
			UnitPrice: lineReq.UnitPrice,
			LineTotal: lineTotal,
			LineOrder: i + 1,
		})
	}

	net := subtotal.Sub(input.Discount)
	if net.IsNegative() {
		return nil, errors.New("orders: discount exceeds subtotal")
	}
	tax := net.Mul(input.TaxPercent).Div(decimal.NewFromInt(100)).Round(2)
	total := net.Add(tax)

	now := s.clock.Now()
	order := Order{
		Folio:     shared.Folio("PED", now),
		ClientID:  input.ClientID,
		Status:    OrderStatusPending,
		Subtotal:  subtotal,
		Tax:       tax,
		Discount:  input.Discount,
		Total:     total,
		Notes:     input.Notes,
		CreatedBy: input.CreatedBy,
		Lines:     lines,
	}
	return s.repo.Create(ctx, order)
}

// Get returns an order with lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *OrderStatus, limit, offset int) ([]Order, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// Cancel marks a pending order cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, OrderStatusPending, OrderStatusCancelled)
}
