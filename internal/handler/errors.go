package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/ogen-go/ogen/validate"
	"go.uber.org/zap"

	"github.com/barflow/barflow/internal/domain/auth"
	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/payment"
	"github.com/barflow/barflow/internal/recipegen"
	"github.com/barflow/barflow/pkg/httpmiddleware"
)

// apiError is the wire form of a failed request.
type apiError struct {
	status  int
	code    string
	message string
	fields  []validate.FieldError
}

// classify maps domain errors onto HTTP statuses and stable error codes.
func classify(err error) apiError {
	var (
		verr       *validate.Error
		transition *order.InvalidTransitionError
		noDrink    *order.DrinkNotFoundError
		timeout    *recipegen.UpstreamTimeoutError
		upstream   *recipegen.UpstreamError
		malformed  *recipegen.MalformedResponseError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return apiError{status: http.StatusBadRequest, code: "validation_error", message: "request validation failed", fields: verr.Fields}
	case errors.As(err, &tooLarge):
		return apiError{status: http.StatusRequestEntityTooLarge, code: "payload_too_large", message: "request body too large"}
	case errors.As(err, &noDrink):
		return apiError{
			status:  http.StatusBadRequest,
			code:    "validation_error",
			message: "request validation failed",
			fields:  []validate.FieldError{{Name: "items", Error: noDrink}},
		}
	case errors.Is(err, order.ErrEmptyItems):
		return apiError{status: http.StatusBadRequest, code: "validation_error", message: err.Error()}
	case errors.Is(err, payment.ErrInvalidSignature):
		return apiError{status: http.StatusBadRequest, code: "invalid_signature", message: "webhook signature verification failed"}
	case errors.Is(err, auth.ErrUnauthenticated):
		return apiError{status: http.StatusUnauthorized, code: "unauthenticated", message: "authentication required"}
	case errors.Is(err, auth.ErrForbidden):
		return apiError{status: http.StatusForbidden, code: "forbidden", message: "not allowed"}
	case errors.Is(err, bar.ErrNotFound):
		return apiError{status: http.StatusNotFound, code: "not_found", message: "bar not found"}
	case errors.Is(err, order.ErrNotFound):
		return apiError{status: http.StatusNotFound, code: "not_found", message: "order not found"}
	case errors.Is(err, menu.ErrNotFound):
		return apiError{status: http.StatusNotFound, code: "not_found", message: "drink not found"}
	case errors.Is(err, bar.ErrSlugTaken):
		return apiError{status: http.StatusConflict, code: "conflict", message: err.Error()}
	case errors.Is(err, order.ErrCurrencyLocked):
		return apiError{status: http.StatusConflict, code: "currency_locked", message: "checkout already opened in another currency"}
	case errors.As(err, &transition):
		return apiError{status: http.StatusConflict, code: "invalid_transition", message: transition.Error()}
	case errors.As(err, &timeout):
		return apiError{status: http.StatusGatewayTimeout, code: "upstream_timeout", message: "recipe service timed out"}
	case errors.As(err, &malformed):
		return apiError{status: http.StatusBadGateway, code: "upstream_malformed_response", message: "recipe service returned an invalid response"}
	case errors.As(err, &upstream):
		return apiError{status: http.StatusBadGateway, code: "upstream_error", message: "recipe service failed"}
	default:
		return apiError{status: http.StatusInternalServerError, code: "internal", message: "internal server error"}
	}
}

// writeError logs err and writes its classified response. Unclassified
// errors are reported to Sentry and their details never leave the process.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	lg := zctx.From(r.Context())
	switch {
	case e.status == http.StatusInternalServerError:
		lg.Error("Request failed", zap.Error(err))
		httpmiddleware.CaptureError(r.Context(), err)
	case e.status >= http.StatusInternalServerError:
		lg.Warn("Upstream failure", zap.Error(err))
	default:
		lg.Debug("Request rejected", zap.Int("status", e.status), zap.Error(err))
	}
	e.write(w)
}

func writeStatus(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	apiError{status: status, code: code, message: message}.write(w)
}

func (e apiError) write(w http.ResponseWriter) {
	writeJSON(w, e.status, func(enc *jx.Encoder) {
		enc.ObjStart()
		enc.FieldStart("code")
		enc.Int(e.status)
		enc.FieldStart("error")
		enc.Str(e.code)
		enc.FieldStart("message")
		enc.Str(e.message)
		if len(e.fields) > 0 {
			enc.FieldStart("fields")
			enc.ArrStart()
			for _, f := range e.fields {
				enc.ObjStart()
				enc.FieldStart("name")
				enc.Str(f.Name)
				enc.FieldStart("reason")
				if f.Error != nil {
					enc.Str(f.Error.Error())
				} else {
					enc.Str("is invalid")
				}
				enc.ObjEnd()
			}
			enc.ArrEnd()
		}
		enc.ObjEnd()
	})
}
