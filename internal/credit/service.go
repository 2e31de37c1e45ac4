package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediario-erp/crediario/internal/inventory"
	"github.com/crediario-erp/crediario/internal/orders"
	"github.com/crediario-erp/crediario/internal/shared"
)

// Kinds recorded on the client credit history when the ledger moves a
// client's balance.
const (
	historyCharge   = "CHARGE"
	historyPayment  = "PAYMENT"
	historyDiscount = "DISCOUNT"
)

// RepositoryPort defines data access methods for the credit ledger.
type RepositoryPort interface {
	GetSale(ctx context.Context, id int64) (*Sale, error)
	GetInstallment(ctx context.Context, id int64) (*Installment, error)
	// ListAccruable returns installments eligible for interest accrual as of
	// the given date: unpaid, rate above zero, due date in the past.
	ListAccruable(ctx context.Context, asOf time.Time) ([]Installment, error)
	// SaveAccrual persists one installment's recalculated interest outside
	// any batch transaction; batch failures stay per-item.
	SaveAccrual(ctx context.Context, inst Installment) error
	GetActiveRestructure(ctx context.Context, saleID int64) (*RestructureRecord, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository exposes the mutations available inside one ledger
// transaction.
type TxRepository interface {
	CreateSale(ctx context.Context, sale *Sale) error
	CreateInstallments(ctx context.Context, installments []Installment) ([]Installment, error)
	CreatePayment(ctx context.Context, payment *Payment) error
	UpdateInstallmentAllocation(ctx context.Context, inst Installment) error
	ListSaleInstallments(ctx context.Context, saleID int64) ([]Installment, error)
	CancelUnpaidInstallments(ctx context.Context, saleID int64) (int64, error)
	UpdateSaleProgress(ctx context.Context, saleID int64, outstanding decimal.Decimal, nextDue *time.Time, status *SaleStatus) error
	UpdateSaleTerms(ctx context.Context, saleID int64, terms SaleTerms) error
	MarkOrderConverted(ctx context.Context, orderID, saleID int64) error
	// DecrementStock applies a guarded stock decrement and records the
	// movement. Returns ErrNotFound when the guard finds no coverable row.
	DecrementStock(ctx context.Context, productID int64, qty float64, reference string, actorID int64) error
	RestoreStock(ctx context.Context, productID int64, qty float64, reference string, actorID int64) error
	AdjustClientBalance(ctx context.Context, clientID int64, delta decimal.Decimal, kind, reference, note string, actorID int64) error
	DeactivateRestructures(ctx context.Context, saleID int64) error
	CreateRestructure(ctx context.Context, record *RestructureRecord) error
}

// SaleTerms are the aggregate schedule fields rewritten by a restructure.
type SaleTerms struct {
	OutstandingBalance decimal.Decimal
	Periodicity        Periodicity
	InstallmentAmount  decimal.Decimal
	InstallmentCount   int
	NextDueDate        time.Time
}

// OrdersPort reads pending orders for conversion.
type OrdersPort interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
}

// ClientsPort verifies debtors exist before taking on their debt.
type ClientsPort interface {
	Exists(ctx context.Context, clientID int64) error
}

// InventoryPort prechecks stock coverage before the conversion transaction.
type InventoryPort interface {
	CheckAvailability(ctx context.Context, reqs []inventory.StockRequirement) error
	GetProducts(ctx context.Context, ids []int64) (map[int64]inventory.Product, error)
}

// MetricsPort records ledger counters. Implementations must be safe for
// concurrent use.
type MetricsPort interface {
	PaymentApplied()
	InterestAccrued(amount float64)
	InstallmentsRecalculated(count int)
}

// AuditPort records who did what to which record.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards retried submissions behind caller-supplied keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "credit"

// ConversionOptions drive schedule generation when an order becomes a sale
// or a direct sale is created.
type ConversionOptions struct {
	InitialPayment    decimal.Decimal
	Periodicity       Periodicity
	InstallmentAmount decimal.Decimal
	// GraceDays shifts the first due date. Nil falls back to the service
	// default; an explicit zero disables grace.
	GraceDays *int
	// DailyRatePct is the moratory rate as percent of outstanding principal
	// per day (0.05 means 0.05%/day). Zero falls back to the service
	// default.
	DailyRatePct   decimal.Decimal
	ApplyInventory bool
	Notes          *string
	CreatedBy      int64
	IdempotencyKey string
}

// DirectSaleLine is one product position on a direct sale request.
type DirectSaleLine struct {
	ProductID int64
	Quantity  float64
	UnitPrice decimal.Decimal
}

// DirectSaleInput creates a sale without an originating order.
type DirectSaleInput struct {
	ClientID   int64
	Lines      []DirectSaleLine
	Discount   decimal.Decimal
	TaxPercent decimal.Decimal
	Options    ConversionOptions
}

// PaymentOptions accompany a payment submission.
type PaymentOptions struct {
	Reference      string
	InterestFirst  bool
	Latitude       *float64
	Longitude      *float64
	ReceivedBy     int64
	IdempotencyKey string
}

// PaymentResult is what applying a payment returns to the caller.
type PaymentResult struct {
	Installment   *Installment
	Payment       *Payment
	SaleFullyPaid bool
}

// InterestPreview is one row of the read-only accrual preview.
type InterestPreview struct {
	InstallmentID    int64           `json:"installment_id"`
	SaleID           int64           `json:"sale_id"`
	Sequence         int             `json:"sequence"`
	DueDate          time.Time       `json:"due_date"`
	DaysOverdue      int             `json:"days_overdue"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	CurrentAccrued   decimal.Decimal `json:"current_accrued"`
	ProjectedAccrued decimal.Decimal `json:"projected_accrued"`
}

// RecalcResult summarizes one batch interest recalculation.
type RecalcResult struct {
	Touched          int             `json:"touched"`
	Failed           int             `json:"failed"`
	TotalNewInterest decimal.Decimal `json:"total_new_interest"`
}

// RestructureInput carries the renegotiated terms.
type RestructureInput struct {
	Periodicity       Periodicity
	InstallmentAmount decimal.Decimal
	InstallmentCount  int
	NextDueDate       *time.Time
	Discount          decimal.Decimal
	InterestForgiven  decimal.Decimal
	Reason            string
	AuthorizedBy      int64
}

// Service orchestrates the installment-credit ledger.
type Service struct {
	repo      RepositoryPort
	orders    OrdersPort
	clients   ClientsPort
	inventory InventoryPort
	audit     AuditPort
	idem      IdempotencyPort
	metrics   MetricsPort
	clock     shared.Clock
	log       *slog.Logger

	defaultRatePct   decimal.Decimal
	defaultGraceDays int
}

// ServiceConfig carries ledger defaults taken from configuration.
type ServiceConfig struct {
	DefaultDailyRatePct decimal.Decimal
	DefaultGraceDays    int
}

// NewService builds the orchestrator.
func NewService(
	repo RepositoryPort,
	ordersPort OrdersPort,
	clientsPort ClientsPort,
	inventoryPort InventoryPort,
	audit AuditPort,
	idem IdempotencyPort,
	metrics MetricsPort,
	clock shared.Clock,
	log *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:             repo,
		orders:           ordersPort,
		clients:          clientsPort,
		inventory:        inventoryPort,
		audit:            audit,
		idem:             idem,
		metrics:          metrics,
		clock:            clock,
		log:              log,
		defaultRatePct:   cfg.DefaultDailyRatePct,
		defaultGraceDays: cfg.DefaultGraceDays,
	}
}

// checkIdempotency claims the caller-supplied key before mutating. An empty
// key skips the guard.
func (s *Service) checkIdempotency(ctx context.Context, key string) error {
	if key == "" || s.idem == nil {
		return nil
	}
	return s.idem.CheckAndInsert(ctx, key, idempotencyModule)
}

// releaseIdempotency rolls a key back after a failed mutation so the caller
// can retry.
func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.log.WarnContext(ctx, "release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprint(entityID),
		Meta:     meta,
		At:       s.clock.Now(),
	})
	if err != nil {
		s.log.WarnContext(ctx, "audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// GetSale returns a sale with its lines, installments, payments, and the
// active restructure when one exists.
func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.GetActiveRestructure(ctx, id)
	switch {
	case err == nil:
		sale.ActiveRestructure = record
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return sale, nil
}

// ConvertOrderToSale turns a pending order into a confirmed sale with a
// generated installment schedule, optionally decrementing inventory. All
// mutations happen in one transaction; the stock precheck runs over every
// line before anything is written.
func (s *Service) ConvertOrderToSale(ctx context.Context, orderID int64, opts ConversionOptions) (*Sale, error) {
	if err := s.validateOptions(&opts); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.Status != orders.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
	}

	lines := make([]SaleLine, 0, len(order.Lines))
	for i, l := range order.Lines {
		lines = append(lines, SaleLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			LineOrder: i + 1,
		})
	}

	sale := &Sale{
		ClientID: order.ClientID,
		OrderID:  &order.ID,
		Subtotal: order.Subtotal,
		Tax:      order.Tax,
		Discount: order.Discount,
		Total:    order.Total,
		Notes:    opts.Notes,
		Lines:    lines,
	}
	return s.createSale(ctx, sale, opts, &order.ID)
}

// CreateDirectSale creates a sale with no originating order. Totals are
// computed from the lines with the flat tax percentage.
func (s *Service) CreateDirectSale(ctx context.Context, input DirectSaleInput) (*Sale, error) {
	if err := s.validateOptions(&input.Options); err != nil {
		return nil, err
	}
	if input.ClientID == 0 {
		return nil, fmt.Errorf("%w: client required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	if err := s.clients.Exists(ctx, input.ClientID); err != nil {
		return nil, fmt.Errorf("%w: client %d", ErrNotFound, input.ClientID)
	}

	subtotal := decimal.Zero
	lines := make([]SaleLine, 0, len(input.Lines))
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line quantity must be positive", ErrValidation)
		}
		lineTotal := l.UnitPrice.Mul(decimal.NewFromFloat(l.Quantity)).Round(2)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, SaleLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: lineTotal,
			LineOrder: i + 1,
		})
	}
	net := subtotal.Sub(input.Discount)
	if net.IsNegative() {
		return nil, fmt.Errorf("%w: discount exceeds subtotal", ErrValidation)
	}
	tax := net.Mul(input.TaxPercent).Div(hundred).Round(2)

	sale := &Sale{
		ClientID: input.ClientID,
		Subtotal: subtotal,
		Tax:      tax,
		Discount: input.Discount,
		Total:    net.Add(tax),
		Notes:    input.Options.Notes,
		Lines:    lines,
	}
	return s.createSale(ctx, sale, input.Options, nil)
}

// createSale runs the shared conversion transaction: sale + schedule +
// optional inventory decrement + client charge, and the order link when the
// sale came from an order.
func (s *Service) createSale(ctx context.Context, sale *Sale, opts ConversionOptions, orderID *int64) (*Sale, error) {
	if opts.InitialPayment.GreaterThan(sale.Total) {
		return nil, fmt.Errorf("%w: initial payment exceeds total", ErrValidation)
	}

	var products map[int64]inventory.Product
	if opts.ApplyInventory {
		reqs := make([]inventory.StockRequirement, 0, len(sale.Lines))
		ids := make([]int64, 0, len(sale.Lines))
		for _, l := range sale.Lines {
			reqs = append(reqs, inventory.StockRequirement{ProductID: l.ProductID, Quantity: l.Quantity})
			ids = append(ids, l.ProductID)
		}
		if err := s.inventory.CheckAvailability(ctx, reqs); err != nil {
			return nil, err
		}
		var err error
		products, err = s.inventory.GetProducts(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	rate := opts.DailyRatePct
	if rate.Sign() <= 0 {
		rate = s.defaultRatePct
	}

	specs := BuildSchedule(ScheduleParams{
		Total:             sale.Total,
		InitialPayment:    opts.InitialPayment,
		Periodicity:       opts.Periodicity,
		InstallmentAmount: opts.InstallmentAmount,
		GraceDays:         *opts.GraceDays,
	}, now)

	outstanding := sale.Total.Sub(opts.InitialPayment)
	sale.Folio = shared.Folio("VTA", now)
	sale.Status = SaleStatusConfirmed
	sale.InitialPayment = opts.InitialPayment
	sale.OutstandingBalance = outstanding
	sale.InstallmentAmount = opts.InstallmentAmount
	sale.InstallmentCount = len(specs)
	sale.GracePeriodDays = *opts.GraceDays
	sale.Periodicity = opts.Periodicity
	sale.CreatedBy = opts.CreatedBy
	if len(specs) > 0 {
		due := specs[0].DueDate
		sale.NextDueDate = &due
	}
	if opts.ApplyInventory {
		sale.InventoryApplied = true
		at := now
		sale.InventoryAppliedAt = &at
	}

	if err := s.checkIdempotency(ctx, opts.IdempotencyKey); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("credit: create sale: %w", err)
		}

		installments := make([]Installment, 0, len(specs))
		for _, spec := range specs {
			installments = append(installments, Installment{
				SaleID:         sale.ID,
				Sequence:       spec.Sequence,
				OriginalAmount: spec.Amount,
				AmountPaid:     decimal.Zero,
				DueDate:        spec.DueDate,
				DailyRatePct:   rate,
				Status:         InstallmentPending,
			})
		}
		created, err := tx.CreateInstallments(ctx, installments)
		if err != nil {
			return fmt.Errorf("credit: create installments: %w", err)
		}
		sale.Installments = created

		if opts.ApplyInventory {
			for _, l := range sale.Lines {
				if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity, sale.Folio, opts.CreatedBy); err != nil {
					if errors.Is(err, ErrNotFound) {
						p := products[l.ProductID]
						return &inventory.InsufficientStockError{
							ProductID: l.ProductID,
							Product:   p.Name,
							Requested: l.Quantity,
							Available: p.Stock,
						}
					}
					return fmt.Errorf("credit: decrement stock: %w", err)
				}
			}
		}

		if orderID != nil {
			if err := tx.MarkOrderConverted(ctx, *orderID, sale.ID); err != nil {
				return fmt.Errorf("credit: mark order converted: %w", err)
			}
		}

		if outstanding.Sign() > 0 {
			err := tx.AdjustClientBalance(ctx, sale.ClientID, outstanding, historyCharge, sale.Folio, "credit sale", opts.CreatedBy)
			if err != nil {
				return fmt.Errorf("credit: charge client balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.releaseIdempotency(ctx, opts.IdempotencyKey)
		return nil, err
	}

	s.recordAudit(ctx, opts.CreatedBy, "credit.sale.create", "sale", sale.ID, map[string]any{
		"folio":        sale.Folio,
		"total":        sale.Total.StringFixed(2),
		"installments": sale.InstallmentCount,
	})
	s.log.InfoContext(ctx, "sale created",
		slog.Int64("sale_id", sale.ID),
		slog.String("folio", sale.Folio),
		slog.Int("installments", sale.InstallmentCount),
		slog.String("outstanding", outstanding.StringFixed(2)),
	)
	return sale, nil
}

// ApplyPayment records a payment against one installment, settling accrued
// interest before principal. Interest is recalculated as of now before
// allocating so the split never runs against stale accrual.
func (s *Service) ApplyPayment(ctx context.Context, installmentID int64, amount decimal.Decimal, opts PaymentOptions) (*PaymentResult, error) {
	// Allocation halves are rounded to cents, so a sub-cent amount would
	// never reconcile with its own split.
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount cannot carry sub-cent precision", ErrValidation)
	}

	inst, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status == InstallmentPaid || inst.Status == InstallmentCancelled {
		return nil, fmt.Errorf("%w: installment is %s", ErrInvalidState, inst.Status)
	}

	now := s.clock.Now()
	res := RecalculateInterest(*inst, now)
	inst.DaysOverdue = res.DaysOverdue
	inst.InterestAccrued = res.InterestAccrued

	alloc, err := Allocate(amount, *inst, opts.InterestFirst)
	if err != nil {
		return nil, err
	}

	inst.AmountPaid = inst.AmountPaid.Add(alloc.ToPrincipal)
	inst.InterestPaid = inst.InterestPaid.Add(alloc.ToInterest)
	inst.Status = alloc.ResultingStatus
	if inst.Status != InstallmentPaid && inst.DaysOverdue > 0 {
		inst.Status = InstallmentOverdue
	}
	at := now
	inst.LastRecalculatedAt = &at

	reference := opts.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	payment := &Payment{
		SaleID:        inst.SaleID,
		InstallmentID: &inst.ID,
		Folio:         shared.Folio("ABO", now),
		Reference:     reference,
		TotalAmount:   amount,
		ToPrincipal:   alloc.ToPrincipal,
		ToInterest:    alloc.ToInterest,
		PaidAt:        now,
		Latitude:      opts.Latitude,
		Longitude:     opts.Longitude,
		ReceivedBy:    opts.ReceivedBy,
	}

	sale, err := s.repo.GetSale(ctx, inst.SaleID)
	if err != nil {
		return nil, err
	}

	if err := s.checkIdempotency(ctx, opts.IdempotencyKey); err != nil {
		return nil, err
	}

	var fullyPaid bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("credit: create payment: %w", err)
		}
		if err := tx.UpdateInstallmentAllocation(ctx, *inst); err != nil {
			return fmt.Errorf("credit: update installment: %w", err)
		}

		all, err := tx.ListSaleInstallments(ctx, inst.SaleID)
		if err != nil {
			return fmt.Errorf("credit: list installments: %w", err)
		}
		fullyPaid = saleFullyPaid(all)

		outstanding := sale.OutstandingBalance.Sub(alloc.ToPrincipal)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}

		var status *SaleStatus
		if fullyPaid {
			paid := SaleStatusPaid
			status = &paid
		}
		nextDue := nextUnpaidDueDate(all)
		if err := tx.UpdateSaleProgress(ctx, inst.SaleID, outstanding, nextDue, status); err != nil {
			return fmt.Errorf("credit: update sale progress: %w", err)
		}

		if alloc.ToPrincipal.Sign() > 0 {
			err := tx.AdjustClientBalance(ctx, sale.ClientID, alloc.ToPrincipal.Neg(), historyPayment, payment.Folio, "installment payment", opts.ReceivedBy)
			if err != nil {
				return fmt.Errorf("credit: credit client balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.releaseIdempotency(ctx, opts.IdempotencyKey)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentApplied()
	}
	s.recordAudit(ctx, opts.ReceivedBy, "credit.payment.apply", "payment", payment.ID, map[string]any{
		"folio":        payment.Folio,
		"amount":       payment.TotalAmount.StringFixed(2),
		"to_interest":  payment.ToInterest.StringFixed(2),
		"to_principal": payment.ToPrincipal.StringFixed(2),
	})
	s.log.InfoContext(ctx, "payment applied",
		slog.Int64("installment_id", inst.ID),
		slog.String("folio", payment.Folio),
		slog.String("to_interest", alloc.ToInterest.StringFixed(2)),
		slog.String("to_principal", alloc.ToPrincipal.StringFixed(2)),
		slog.Bool("sale_fully_paid", fullyPaid),
	)
	return &PaymentResult{Installment: inst, Payment: payment, SaleFullyPaid: fullyPaid}, nil
}

// PreviewInterest computes what the batch recalculation would accrue as of
// the given date, without persisting anything.
func (s *Service) PreviewInterest(ctx context.Context, asOf time.Time) ([]InterestPreview, error) {
	items, err := s.repo.ListAccruable(ctx, asOf)
	if err != nil {
		return nil, err
	}
	previews := make([]InterestPreview, 0, len(items))
	for _, inst := range items {
		res := RecalculateInterest(inst, asOf)
		previews = append(previews, InterestPreview{
			InstallmentID:    inst.ID,
			SaleID:           inst.SaleID,
			Sequence:         inst.Sequence,
			DueDate:          inst.DueDate,
			DaysOverdue:      res.DaysOverdue,
			Outstanding:      inst.PrincipalOutstanding(),
			CurrentAccrued:   inst.InterestAccrued,
			ProjectedAccrued: res.InterestAccrued,
		})
	}
	return previews, nil
}

// RecalculateOverdueInterest refreshes moratory interest on every overdue
// unpaid installment. Failures are per-item: one bad row is logged and
// skipped, never aborting the batch.
func (s *Service) RecalculateOverdueInterest(ctx context.Context, asOf time.Time) (*RecalcResult, error) {
	items, err := s.repo.ListAccruable(ctx, asOf)
	if err != nil {
		return nil, err
	}

	result := &RecalcResult{TotalNewInterest: decimal.Zero}
	for _, inst := range items {
		res := RecalculateInterest(inst, asOf)
		if res.DaysOverdue == 0 {
			continue
		}
		newInterest := res.InterestAccrued.Sub(inst.InterestAccrued)

		inst.DaysOverdue = res.DaysOverdue
		inst.InterestAccrued = res.InterestAccrued
		at := asOf
		inst.LastRecalculatedAt = &at
		if inst.Status != InstallmentPaid && inst.Status != InstallmentCancelled {
			inst.Status = InstallmentOverdue
		}

		if err := s.repo.SaveAccrual(ctx, inst); err != nil {
			result.Failed++
			s.log.ErrorContext(ctx, "interest accrual save failed",
				slog.Int64("installment_id", inst.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.Touched++
		if newInterest.Sign() > 0 {
			result.TotalNewInterest = result.TotalNewInterest.Add(newInterest)
		}
	}

	if s.metrics != nil {
		s.metrics.InstallmentsRecalculated(result.Touched)
		accrued, _ := result.TotalNewInterest.Float64()
		s.metrics.InterestAccrued(accrued)
	}
	s.log.InfoContext(ctx, "interest recalculated",
		slog.Int("touched", result.Touched),
		slog.Int("failed", result.Failed),
		slog.String("total_new_interest", result.TotalNewInterest.StringFixed(2)),
	)
	return result, nil
}

// Restructure renegotiates a sale's remaining payment terms. The prior terms
// are snapshotted into a RestructureRecord, remaining unpaid installments
// are cancelled, and a fresh schedule is generated from the new terms so
// per-installment tracking never diverges from the sale aggregate.
func (s *Service) Restructure(ctx context.Context, saleID int64, input RestructureInput) (*RestructureRecord, error) {
	if !input.Periodicity.Valid() {
		return nil, fmt.Errorf("%w: unknown periodicity %q", ErrValidation, input.Periodicity)
	}
	if input.Discount.IsNegative() || input.InterestForgiven.IsNegative() {
		return nil, fmt.Errorf("%w: discount and forgiven interest must be >= 0", ErrValidation)
	}

	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == SaleStatusCancelled || sale.Status == SaleStatusPaid {
		return nil, fmt.Errorf("%w: sale is %s", ErrInvalidState, sale.Status)
	}
	if err := s.clients.Exists(ctx, sale.ClientID); err != nil {
		return nil, fmt.Errorf("%w: client %d", ErrNotFound, sale.ClientID)
	}

	newOutstanding := sale.OutstandingBalance.Sub(input.Discount)
	if newOutstanding.IsNegative() {
		return nil, fmt.Errorf("%w: discount exceeds outstanding balance", ErrValidation)
	}

	now := s.clock.Now()
	newNextDue := now.AddDate(0, 0, input.Periodicity.Days()+sale.GracePeriodDays)
	if input.NextDueDate != nil {
		newNextDue = *input.NextDueDate
	}

	// A target count with no explicit amount means an even split, with the
	// last installment absorbing the rounding remainder.
	newAmount := input.InstallmentAmount
	if newAmount.Sign() <= 0 && input.InstallmentCount > 0 {
		newAmount = newOutstanding.Div(decimal.NewFromInt(int64(input.InstallmentCount))).Round(2)
	}

	specs := BuildSchedule(ScheduleParams{
		Total:             newOutstanding,
		Periodicity:       input.Periodicity,
		InstallmentAmount: newAmount,
		FirstDueDate:      &newNextDue,
	}, now)

	record := &RestructureRecord{
		SaleID: sale.ID,
		Active: true,

		PriorOutstanding:       sale.OutstandingBalance,
		PriorPeriodicity:       sale.Periodicity,
		PriorInstallmentAmount: sale.InstallmentAmount,
		PriorInstallmentCount:  sale.InstallmentCount,
		PriorNextDueDate:       sale.NextDueDate,

		NewOutstanding:       newOutstanding,
		NewPeriodicity:       input.Periodicity,
		NewInstallmentAmount: newAmount,
		NewInstallmentCount:  len(specs),
		NewNextDueDate:       newNextDue,

		Discount:         input.Discount,
		InterestForgiven: input.InterestForgiven,
		Reason:           input.Reason,
		AuthorizedBy:     input.AuthorizedBy,
	}

	rate := s.defaultRatePct
	if len(sale.Installments) > 0 {
		rate = sale.Installments[0].DailyRatePct
	}

	// Cancelled rows keep their sequence numbers, so the fresh schedule
	// continues after the highest one to keep (sale_id, sequence) unique.
	seqBase := 0
	for _, inst := range sale.Installments {
		if inst.Sequence > seqBase {
			seqBase = inst.Sequence
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeactivateRestructures(ctx, sale.ID); err != nil {
			return fmt.Errorf("credit: deactivate restructures: %w", err)
		}
		if err := tx.CreateRestructure(ctx, record); err != nil {
			return fmt.Errorf("credit: create restructure: %w", err)
		}

		if _, err := tx.CancelUnpaidInstallments(ctx, sale.ID); err != nil {
			return fmt.Errorf("credit: cancel installments: %w", err)
		}
		installments := make([]Installment, 0, len(specs))
		for _, spec := range specs {
			installments = append(installments, Installment{
				SaleID:         sale.ID,
				Sequence:       seqBase + spec.Sequence,
				OriginalAmount: spec.Amount,
				AmountPaid:     decimal.Zero,
				DueDate:        spec.DueDate,
				DailyRatePct:   rate,
				Status:         InstallmentPending,
			})
		}
		if _, err := tx.CreateInstallments(ctx, installments); err != nil {
			return fmt.Errorf("credit: create installments: %w", err)
		}

		if err := tx.UpdateSaleTerms(ctx, sale.ID, SaleTerms{
			OutstandingBalance: newOutstanding,
			Periodicity:        input.Periodicity,
			InstallmentAmount:  newAmount,
			InstallmentCount:   len(specs),
			NextDueDate:        newNextDue,
		}); err != nil {
			return fmt.Errorf("credit: update sale terms: %w", err)
		}

		if input.Discount.Sign() > 0 {
			err := tx.AdjustClientBalance(ctx, sale.ClientID, input.Discount.Neg(), historyDiscount, sale.Folio, input.Reason, input.AuthorizedBy)
			if err != nil {
				return fmt.Errorf("credit: discount client balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, input.AuthorizedBy, "credit.sale.restructure", "sale", sale.ID, map[string]any{
		"new_outstanding": newOutstanding.StringFixed(2),
		"discount":        input.Discount.StringFixed(2),
		"reason":          input.Reason,
	})
	s.log.InfoContext(ctx, "sale restructured",
		slog.Int64("sale_id", sale.ID),
		slog.String("new_outstanding", newOutstanding.StringFixed(2)),
		slog.Int("new_installments", len(specs)),
		slog.Int64("authorized_by", input.AuthorizedBy),
	)
	return record, nil
}

// CancelSale voids a sale that has no recorded payments, restoring any
// inventory that was decremented at creation.
func (s *Service) CancelSale(ctx context.Context, saleID int64, actorID int64) error {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != SaleStatusPending && sale.Status != SaleStatusConfirmed {
		return fmt.Errorf("%w: sale is %s", ErrInvalidState, sale.Status)
	}
	if len(sale.Payments) > 0 {
		return fmt.Errorf("%w: sale has recorded payments", ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cancelled := SaleStatusCancelled
		if err := tx.UpdateSaleProgress(ctx, sale.ID, decimal.Zero, nil, &cancelled); err != nil {
			return fmt.Errorf("credit: cancel sale: %w", err)
		}
		if _, err := tx.CancelUnpaidInstallments(ctx, sale.ID); err != nil {
			return fmt.Errorf("credit: cancel installments: %w", err)
		}

		if sale.InventoryApplied {
			for _, l := range sale.Lines {
				if err := tx.RestoreStock(ctx, l.ProductID, l.Quantity, sale.Folio, actorID); err != nil {
					return fmt.Errorf("credit: restore stock: %w", err)
				}
			}
		}

		if sale.OutstandingBalance.Sign() > 0 {
			err := tx.AdjustClientBalance(ctx, sale.ClientID, sale.OutstandingBalance.Neg(), historyPayment, sale.Folio, "sale cancelled", actorID)
			if err != nil {
				return fmt.Errorf("credit: release client balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "credit.sale.cancel", "sale", sale.ID, map[string]any{
		"folio": sale.Folio,
	})
	return nil
}

func (s *Service) validateOptions(opts *ConversionOptions) error {
	if !opts.Periodicity.Valid() {
		return fmt.Errorf("%w: unknown periodicity %q", ErrValidation, opts.Periodicity)
	}
	if opts.InitialPayment.IsNegative() {
		return fmt.Errorf("%w: initial payment must be >= 0", ErrValidation)
	}
	if opts.InstallmentAmount.IsNegative() {
		return fmt.Errorf("%w: installment amount must be >= 0", ErrValidation)
	}
	if opts.GraceDays != nil && *opts.GraceDays < 0 {
		return fmt.Errorf("%w: grace days must be >= 0", ErrValidation)
	}
	if opts.GraceDays == nil {
		days := s.defaultGraceDays
		opts.GraceDays = &days
	}
	return nil
}

// saleFullyPaid reports whether every non-cancelled installment is paid.
func saleFullyPaid(installments []Installment) bool {
	any := false
	for _, inst := range installments {
		if inst.Status == InstallmentCancelled {
			continue
		}
		if inst.Status != InstallmentPaid {
			return false
		}
		any = true
	}
	return any
}

// nextUnpaidDueDate returns the earliest due date among unpaid installments.
func nextUnpaidDueDate(installments []Installment) *time.Time {
	var next *time.Time
	for _, inst := range installments {
		if inst.Status == InstallmentPaid || inst.Status == InstallmentCancelled {
			continue
		}
		due := inst.DueDate
		if next == nil || due.Before(*next) {
			next = &due
		}
	}
	return next
}
