package clients

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateClientInput) (*Client, error)
	Get(ctx context.Context, id int64) (*Client, error)
	List(ctx context.Context, limit, offset int) ([]Client, error)
	ListHistory(ctx context.Context, clientID int64, limit int) ([]CreditHistoryEntry, error)
}

// Service handles client business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Register creates a client after basic validation.
func (s *Service) Register(ctx context.Context, input CreateClientInput) (*Client, error) {
	if input.Name == "" {
		return nil, errors.New("clients: name required")
	}
	if input.Code == "" {
		return nil, errors.New("clients: code required")
	}
	if input.CreditLimit.IsNegative() {
		return nil, errors.New("clients: credit limit must be >= 0")
	}
	return s.repo.Create(ctx, input)
}

// Get returns a client by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns active clients.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Client, error) {
	return s.repo.List(ctx, limit, offset)
}

// History returns the client's credit-history entries.
func (s *Service) History(ctx context.Context, clientID int64, limit int) ([]CreditHistoryEntry, error) {
	if _, err := s.repo.Get(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, clientID, limit)
}

// Exists reports whether a client exists and is active.
func (s *Service) Exists(ctx context.Context, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return errors.New("clients: inactive")
	}
	return nil
}

// AvailableCredit reports how much of the client's limit remains.
func (s *Service) AvailableCredit(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	c, err := s.repo.Get(ctx, clientID)
	if err != nil {
		return decimal.Zero, err
	}
	avail := c.CreditLimit.Sub(c.CurrentBalance)
	if avail.IsNegative() {
		return decimal.Zero, nil
	}
	return avail, nil
}
