package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memInventoryRepo struct {
	products  map[int64]Product
	movements []StockMovement
	nextID    int64
}

func newMemInventoryRepo() *memInventoryRepo {
	return &memInventoryRepo{products: map[int64]Product{}, nextID: 1}
}

func (m *memInventoryRepo) CreateProduct(_ context.Context, input CreateProductInput) (*Product, error) {
	p := Product{
		ID:        m.nextID,
		SKU:       input.SKU,
		Name:      input.Name,
		UnitPrice: input.UnitPrice,
		Stock:     input.Stock,
		IsActive:  true,
	}
	m.nextID++
	m.products[p.ID] = p
	return &p, nil
}

func (m *memInventoryRepo) GetProduct(_ context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memInventoryRepo) GetProducts(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := map[int64]Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memInventoryRepo) ListProducts(_ context.Context, _, _ int) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memInventoryRepo) AdjustStock(_ context.Context, productID int64, delta float64, reference string, actorID int64) (*StockMovement, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Stock += delta
	m.products[productID] = p
	mv := StockMovement{
		ID:        int64(len(m.movements) + 1),
		ProductID: productID,
		Kind:      MovementAdjustment,
		Quantity:  delta,
		Balance:   p.Stock,
		Reference: reference,
		ActorID:   actorID,
	}
	m.movements = append(m.movements, mv)
	return &mv, nil
}

func (m *memInventoryRepo) ListMovements(_ context.Context, productID int64, _ int) ([]StockMovement, error) {
	var out []StockMovement
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func price(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemInventoryRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, CreateProductInput{Name: "Stove", UnitPrice: price("100")})
	require.Error(t, err, "missing sku")

	_, err = svc.Register(ctx, CreateProductInput{SKU: "EST-1", UnitPrice: price("100")})
	require.Error(t, err, "missing name")

	_, err = svc.Register(ctx, CreateProductInput{SKU: "EST-1", Name: "Stove", UnitPrice: price("-1")})
	require.Error(t, err, "negative price")

	p, err := svc.Register(ctx, CreateProductInput{SKU: "EST-1", Name: "Stove", UnitPrice: price("100"), Stock: 4})
	require.NoError(t, err)
	require.True(t, p.IsActive)
}

func TestAdjustRecordsMovement(t *testing.T) {
	repo := newMemInventoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p, err := svc.Register(ctx, CreateProductInput{SKU: "REF-1", Name: "Fridge", UnitPrice: price("8999"), Stock: 6})
	require.NoError(t, err)

	mv, err := svc.Adjust(ctx, p.ID, -2, "damage write-off", 1)
	require.NoError(t, err)
	require.Equal(t, MovementAdjustment, mv.Kind)
	require.Equal(t, float64(4), mv.Balance)

	_, err = svc.Adjust(ctx, p.ID, 0, "noop", 1)
	require.Error(t, err)

	moves, err := svc.Movements(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)
}

func TestCheckAvailability(t *testing.T) {
	repo := newMemInventoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	stove, err := svc.Register(ctx, CreateProductInput{SKU: "EST-2", Name: "Stove", UnitPrice: price("3499"), Stock: 2})
	require.NoError(t, err)

	require.NoError(t, svc.CheckAvailability(ctx, []StockRequirement{{ProductID: stove.ID, Quantity: 2}}))

	err = svc.CheckAvailability(ctx, []StockRequirement{{ProductID: stove.ID, Quantity: 3}})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, stove.ID, insufficient.ProductID)
	require.Equal(t, float64(2), insufficient.Available)

	err = svc.CheckAvailability(ctx, []StockRequirement{{ProductID: 999, Quantity: 1}})
	require.ErrorIs(t, err, ErrNotFound)
}
