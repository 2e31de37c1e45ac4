package clients

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memClientRepo struct {
	clients map[int64]Client
	history map[int64][]CreditHistoryEntry
	nextID  int64
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{clients: map[int64]Client{}, history: map[int64][]CreditHistoryEntry{}, nextID: 1}
}

func (m *memClientRepo) Create(_ context.Context, input CreateClientInput) (*Client, error) {
	c := Client{
		ID:          m.nextID,
		Code:        input.Code,
		Name:        input.Name,
		CreditLimit: input.CreditLimit,
		IsActive:    true,
		CreatedBy:   input.CreatedBy,
	}
	m.nextID++
	m.clients[c.ID] = c
	return &c, nil
}

func (m *memClientRepo) Get(_ context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memClientRepo) List(_ context.Context, _, _ int) ([]Client, error) {
	var out []Client
	for _, c := range m.clients {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClientRepo) ListHistory(_ context.Context, clientID int64, _ int) ([]CreditHistoryEntry, error) {
	return m.history[clientID], nil
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRegisterRequiresCodeAndName(t *testing.T) {
	svc := NewService(newMemClientRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, CreateClientInput{Name: "María Torres"})
	require.Error(t, err)

	_, err = svc.Register(ctx, CreateClientInput{Code: "CLI-1"})
	require.Error(t, err)

	_, err = svc.Register(ctx, CreateClientInput{Code: "CLI-1", Name: "María Torres", CreditLimit: dec("-1")})
	require.Error(t, err)

	c, err := svc.Register(ctx, CreateClientInput{Code: "CLI-1", Name: "María Torres", CreditLimit: dec("5000")})
	require.NoError(t, err)
	require.True(t, c.IsActive)
}

func TestExistsRejectsInactive(t *testing.T) {
	repo := newMemClientRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Register(ctx, CreateClientInput{Code: "CLI-2", Name: "José Hernández"})
	require.NoError(t, err)

	require.NoError(t, svc.Exists(ctx, c.ID))

	inactive := repo.clients[c.ID]
	inactive.IsActive = false
	repo.clients[c.ID] = inactive
	require.Error(t, svc.Exists(ctx, c.ID))

	require.ErrorIs(t, svc.Exists(ctx, 999), ErrNotFound)
}

func TestAvailableCreditFloorsAtZero(t *testing.T) {
	repo := newMemClientRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Register(ctx, CreateClientInput{Code: "CLI-3", Name: "Ana Salazar", CreditLimit: dec("8000")})
	require.NoError(t, err)

	avail, err := svc.AvailableCredit(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, avail.Equal(dec("8000")))

	over := repo.clients[c.ID]
	over.CurrentBalance = dec("9500")
	repo.clients[c.ID] = over

	avail, err = svc.AvailableCredit(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, avail.IsZero())
}
