package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/inventory"
	"github.com/merchdesk/merchbot/internal/orders"
)

// AdminHandler is the ops surface: catalog stock management and order
// inspection. It talks to the same ledger and order store as the bot.
type AdminHandler struct {
	Ledger *inventory.Ledger
	Orders *orders.Store
	Log    *zap.Logger
}

type setTotalReq struct {
	Total uint32 `json:"total"`
}

type adjustReq struct {
	Delta int64 `json:"delta"`
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/variants", h.listVariants)
	r.Put("/variants/{size}/{color}/total", h.setTotal)
	r.Post("/variants/{size}/{color}/adjust", h.adjustTotal)
	r.Get("/stock/report", h.stockReport)
	r.Get("/stock/low", h.lowStock)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func variantParam(r *http.Request) inventory.VariantKey {
	return inventory.NewVariantKey(chi.URLParam(r, "size"), chi.URLParam(r, "color"))
}

func (h *AdminHandler) listVariants(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	recs, err := h.Ledger.List(ctx)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	type row struct {
		Size      string `json:"size"`
		Color     string `json:"color"`
		Total     uint32 `json:"qty_total"`
		Reserved  uint32 `json:"qty_reserved"`
		Available uint32 `json:"available"`
	}
	out := make([]row, 0, len(recs))
	for _, rec := range recs {
		out = append(out, row{
			Size:      rec.Key.Size,
			Color:     rec.Key.Color,
			Total:     rec.QtyTotal,
			Reserved:  rec.QtyReserved,
			Available: rec.Available(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) setTotal(w http.ResponseWriter, r *http.Request) {
	var req setTotalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	key := variantParam(r)
	if err := h.Ledger.SetTotal(ctx, key, req.Total); err != nil {
		if errors.Is(err, inventory.ErrInvalidState) {
			writeErr(w, http.StatusConflict, "total below reserved")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Log.Info("stock total set",
		zap.String("variant", key.String()), zap.Uint32("total", req.Total))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) adjustTotal(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	key := variantParam(r)
	if err := h.Ledger.AdjustTotal(ctx, key, req.Delta); err != nil {
		if errors.Is(err, inventory.ErrInvalidState) {
			writeErr(w, http.StatusConflict, "adjustment below reserved")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Log.Info("stock adjusted",
		zap.String("variant", key.String()), zap.Int64("delta", req.Delta))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) stockReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	report, err := h.Ledger.Report(ctx)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(report))
}

func (h *AdminHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := uint64(5)
	if s := r.URL.Query().Get("threshold"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			threshold = n
		}
	}
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	low, err := h.Ledger.LowStock(ctx, uint32(threshold))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, low)
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	list, err := h.Orders.List(ctx)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := timeoutCtx(r)
	defer cancel()
	o, err := h.Orders.Get(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// cancelOrder cancels a pending or delivered order and releases its single
// reserved unit back to the ledger.
func (h *AdminHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := timeoutCtx(r)
	defer cancel()

	o, err := h.Orders.Get(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Orders.SetStatus(ctx, id, orders.StatusCancelled); err != nil {
		if errors.Is(err, orders.ErrBadStatus) {
			writeErr(w, http.StatusConflict, "order not cancellable")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	key := inventory.NewVariantKey(o.Size, o.Color)
	if err := h.Ledger.Release(ctx, key, 1); err != nil {
		// Status already flipped; an over-release here means the books were
		// wrong before this call. Surface loudly.
		h.Log.Error("release on cancel failed",
			zap.Uint64("order", id), zap.String("variant", key.String()), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "release failed")
		return
	}
	h.Log.Info("order cancelled", zap.Uint64("order", id))
	w.WriteHeader(http.StatusNoContent)
}

func timeoutCtx(r *http.Request) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}
