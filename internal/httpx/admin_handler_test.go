package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/inventory"
	"github.com/merchdesk/merchbot/internal/orders"
	"github.com/merchdesk/merchbot/internal/store"
)

type adminFixture struct {
	router http.Handler
	ledger *inventory.Ledger
	orders *orders.Store
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	kv := store.NewMemory()
	f := &adminFixture{
		ledger: inventory.NewLedger(kv, nil),
		orders: orders.NewStore(kv, nil),
	}
	r := NewRouter()
	h := &AdminHandler{Ledger: f.ledger, Orders: f.orders, Log: zap.NewNop()}
	h.Register(r)
	f.router = r
	return f
}

func (f *adminFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_SetTotalAndList(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPut, "/variants/M/black/total", `{"total": 5}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set total: status %d, body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/variants", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["size"] != "M" || rows[0]["available"] != float64(5) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestAdmin_AdjustBelowReservedConflicts(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := inventory.NewVariantKey("M", "black")
	if err := f.ledger.SetTotal(ctx, key, 2); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.ledger.Reserve(ctx, key, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/variants/M/black/adjust", `{"delta": -1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestAdmin_CancelOrderReleasesStock(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := inventory.NewVariantKey("M", "black")
	if err := f.ledger.SetTotal(ctx, key, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.ledger.Reserve(ctx, key, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	id, err := f.orders.Create(ctx, orders.Order{ActorID: "u1", Size: "M", Color: "black"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/orders/1/cancel", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status %d, body %s", rec.Code, rec.Body)
	}

	o, err := f.orders.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Status != orders.StatusCancelled {
		t.Fatalf("status = %s, want %s", o.Status, orders.StatusCancelled)
	}
	avail, err := f.ledger.Available(ctx, key)
	if err != nil || avail != 1 {
		t.Fatalf("available after cancel = (%d, %v), want (1, nil)", avail, err)
	}

	// A second cancel must conflict, not double-release.
	rec = f.do(t, http.MethodPost, "/orders/1/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: status %d, want 409", rec.Code)
	}
}

func TestAdmin_GetMissingOrder(t *testing.T) {
	f := newAdminFixture(t)
	rec := f.do(t, http.MethodGet, "/orders/42", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdmin_StockReport(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	if err := f.ledger.SetTotal(ctx, inventory.NewVariantKey("S", "white"), 3); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/stock/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "S:") || !strings.Contains(body, "white") {
		t.Fatalf("unexpected report: %q", body)
	}
}
