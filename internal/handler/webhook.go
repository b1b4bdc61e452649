package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/payment"
)

// StripeWebhook serves POST /v1/webhooks/stripe. The signature is checked
// before anything is read from the event. Replays and payment mismatches
// are acknowledged with 200 so the provider stops retrying; only internal
// failures answer 500 to trigger a retry.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := h.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if !errors.Is(err, payment.ErrInvalidSignature) {
			err = errors.Wrap(payment.ErrInvalidSignature, err.Error())
		}
		writeError(w, r, err)
		return
	}

	outcome, err := h.orders.HandlePaymentEvent(r.Context(), *ev)
	var mismatch *payment.MismatchError
	switch {
	case errors.As(err, &mismatch):
		zctx.From(r.Context()).Warn("Acknowledging mismatched payment",
			zap.String("event_id", ev.ID),
			zap.Int64("expected_minor", mismatch.ExpectedMinor),
			zap.Int64("paid_minor", mismatch.PaidMinor),
		)
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeAck(w, outcome)
}

func writeAck(w http.ResponseWriter, outcome order.Outcome) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("received")
		e.Bool(true)
		e.FieldStart("outcome")
		e.Str(string(outcome))
		e.ObjEnd()
	})
}
