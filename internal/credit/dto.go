package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

type convertOrderRequest struct {
	InitialPayment    decimal.Decimal `json:"initial_payment"`
	Periodicity       string          `json:"periodicity" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	GraceDays         *int            `json:"grace_days" validate:"omitempty,gte=0"`
	DailyRatePct      decimal.Decimal `json:"daily_rate_pct"`
	ApplyInventory    bool            `json:"apply_inventory"`
	Notes             *string         `json:"notes"`
	CreatedBy         int64           `json:"created_by" validate:"required"`
}

type directSaleLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  float64         `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type directSaleRequest struct {
	ClientID   int64                   `json:"client_id" validate:"required"`
	Lines      []directSaleLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount   decimal.Decimal         `json:"discount"`
	TaxPercent decimal.Decimal         `json:"tax_percent"`
	convertOrderRequest
}

type applyPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Reference     string          `json:"reference"`
	InterestFirst *bool           `json:"interest_first"`
	Latitude      *float64        `json:"latitude"`
	Longitude     *float64        `json:"longitude"`
	ReceivedBy    int64           `json:"received_by" validate:"required"`
}

type applyPaymentResponse struct {
	Installment   *Installment `json:"installment"`
	Payment       *Payment     `json:"payment"`
	SaleFullyPaid bool         `json:"sale_fully_paid"`
}

type recalculateRequest struct {
	AsOf *time.Time `json:"as_of"`
}

type restructureRequest struct {
	Periodicity       string          `json:"periodicity" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	InstallmentCount  int             `json:"installment_count" validate:"gte=0"`
	NextDueDate       *time.Time      `json:"next_due_date"`
	Discount          decimal.Decimal `json:"discount"`
	InterestForgiven  decimal.Decimal `json:"interest_forgiven"`
	Reason            string          `json:"reason" validate:"required"`
	AuthorizedBy      int64           `json:"authorized_by" validate:"required"`
}

type cancelSaleRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}
