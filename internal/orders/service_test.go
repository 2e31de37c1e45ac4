package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crediario-erp/crediario/internal/shared"
)

type memOrderRepo struct {
	orders map[int64]Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[int64]Order{}, nextID: 1}
}

func (m *memOrderRepo) Create(_ context.Context, order Order) (*Order, error) {
	order.ID = m.nextID
	m.nextID++
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return &order, nil
}

func (m *memOrderRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memOrderRepo) List(_ context.Context, status *OrderStatus, _, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if status == nil || o.Status == *status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id int64, from, to OrderStatus) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return ErrInvalidStatus
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

type okClients struct{}

func (okClients) Exists(context.Context, int64) error { return nil }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newOrderService(repo *memOrderRepo) *Service {
	clock := shared.FixedClock{At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(repo, okClients{}, clock)
}

func TestCreateOrderComputesTotals(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:   7,
		Discount:   d("100"),
		TaxPercent: d("16"),
		CreatedBy:  1,
		Lines: []CreateOrderLineInput{
			{ProductID: 1, Quantity: 2, UnitPrice: d("250")},
			{ProductID: 2, Quantity: 1, UnitPrice: d("600")},
		},
	})
	require.NoError(t, err)

	require.Equal(t, OrderStatusPending, order.Status)
	require.True(t, order.Subtotal.Equal(d("1100")), "subtotal %s", order.Subtotal)
	// (1100 - 100) * 16% = 160
	require.True(t, order.Tax.Equal(d("160")), "tax %s", order.Tax)
	require.True(t, order.Total.Equal(d("1160")), "total %s", order.Total)
	require.Len(t, order.Lines, 2)
	require.Equal(t, 1, order.Lines[0].LineOrder)
	require.NotEmpty(t, order.Folio)
}

func TestCreateOrderRejectsExcessDiscount(t *testing.T) {
	svc := newOrderService(newMemOrderRepo())

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:   7,
		Discount:   d("2000"),
		TaxPercent: d("16"),
		Lines:      []CreateOrderLineInput{{ProductID: 1, Quantity: 1, UnitPrice: d("500")}},
	})
	require.Error(t, err)
}

func TestCreateOrderRejectsEmptyLines(t *testing.T) {
	svc := newOrderService(newMemOrderRepo())

	_, err := svc.Create(context.Background(), CreateOrderInput{ClientID: 7})
	require.Error(t, err)
}

func TestCancelOrderOnlyWhenPending(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:   7,
		TaxPercent: d("16"),
		Lines:      []CreateOrderLineInput{{ProductID: 1, Quantity: 1, UnitPrice: d("500")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), order.ID))

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusCancelled, got.Status)

	// A second cancel hits the status guard.
	err = svc.Cancel(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)
}
