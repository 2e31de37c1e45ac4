package clients

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the debtor side of a credit relationship.
type Client struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Phone          *string         `json:"phone,omitempty"`
	Email          *string         `json:"email,omitempty"`
	AddressLine    *string         `json:"address_line,omitempty"`
	City           *string         `json:"city,omitempty"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreditHistoryEntry records a movement on the client's running balance:
// new debt, an abono (payment), or a restructure discount.
type CreditHistoryEntry struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"client_id"`
	Kind      HistoryKind     `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Reference string          `json:"reference"`
	Note      string          `json:"note,omitempty"`
	ActorID   int64           `json:"actor_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryKind enumerates credit-history movements.
type HistoryKind string

const (
	HistoryKindCharge   HistoryKind = "CHARGE"
	HistoryKindPayment  HistoryKind = "PAYMENT"
	HistoryKindDiscount HistoryKind = "DISCOUNT"
)

// CreateClientInput for registering a client.
type CreateClientInput struct {
	Code        string
	Name        string
	Phone       *string
	Email       *string
	AddressLine *string
	City        *string
	CreditLimit decimal.Decimal
	CreatedBy   int64
}

// ErrNotFound indicates client not found.
var ErrNotFound = errors.New("clients: not found")
