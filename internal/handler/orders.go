package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/dto"
)

// PlaceOrder serves POST /v1/bars/{bar}/orders: the cart is priced from the
// bar's menu and stored as an open order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body dto.CreateOrderBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := body.Lines()
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		BarSlug: chi.URLParam(r, "bar"),
		Lines:   lines,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// GetOrder serves GET /v1/orders/{orderID}. The order id is the customer's
// tracking handle, so the route is public.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := dto.ID("orderID", chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders serves GET /v1/bars/{bar}/orders by bar id.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	barID, err := dto.ID("barID", chi.URLParam(r, "bar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := manage(r, barID); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := dto.ParseOrderListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, total, err := h.orders.List(r.Context(), order.ListFilter{
		BarID:    barID,
		Status:   q.Status,
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePage(e, q.Page, q.PageSize, total, len(orders), func(i int) { encodeOrder(e, &orders[i]) })
	})
}

// SetOrderStatus serves PATCH /v1/orders/{orderID}/status. Staff only see
// orders of their own bar; others are reported as not found.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := dto.ID("orderID", chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body dto.StatusBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	to, err := body.Parse()
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetStatus(r.Context(), order.StatusRequest{
		OrderID:  id,
		To:       to,
		BarScope: principal(r).BarScope(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// Checkout serves POST /v1/orders/{orderID}/checkout and returns the hosted
// payment page.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := dto.ID("orderID", chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body dto.CheckoutBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body, err = body.Normalize()
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		OrderID:    id,
		SuccessURL: body.SuccessURL,
		CancelURL:  body.CancelURL,
		Currency:   body.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("sessionId")
		e.Str(sess.ID)
		e.FieldStart("url")
		e.Str(sess.URL)
		e.ObjEnd()
	})
}
