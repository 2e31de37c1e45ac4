package credit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crediario-erp/crediario/internal/shared"
)

// ctxCheckedStore refuses reads once the request context is done, the way a
// pgx query would.
type ctxCheckedStore struct {
	*memStore
}

func (s ctxCheckedStore) ListAccruable(ctx context.Context, asOf time.Time) ([]Installment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.memStore.ListAccruable(ctx, asOf)
}

// The preview computation is shared across coalesced callers, so it must not
// die with whichever request arrived first.
func TestPreviewInterestSurvivesCancelledCaller(t *testing.T) {
	store := newMemStore()
	seedSaleWithInstallments(store)
	checked := ctxCheckedStore{memStore: store}
	svc := NewService(checked, checked, checked, checked, nil, nil, nil,
		shared.FixedClock{At: testNow}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		ServiceConfig{DefaultDailyRatePct: d("0.05")})
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/credit/interest/preview?as_of=2025-06-01", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.handlePreviewInterest(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
