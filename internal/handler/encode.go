package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/dto"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object into dst. Unknown fields and trailing data
// are rejected as validation errors on "body".
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return dto.BodyError(errors.New("is required"))
		}
		return dto.BodyError(errors.Wrap(err, "malformed JSON"))
	}
	if dec.More() {
		return dto.BodyError(errors.New("must contain a single JSON object"))
	}
	return nil
}

func encodeTime(e *jx.Encoder, field string, t time.Time) {
	e.FieldStart(field)
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeBar(e *jx.Encoder, b *bar.Bar) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(b.ID)
	e.FieldStart("name")
	e.Str(b.Name)
	e.FieldStart("slug")
	e.Str(b.Slug)
	e.FieldStart("active")
	e.Bool(b.Active)
	encodeTime(e, "createdAt", b.CreatedAt)
	encodeTime(e, "updatedAt", b.UpdatedAt)
	e.ObjEnd()
}

func encodeDrink(e *jx.Encoder, d *menu.Drink) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID)
	e.FieldStart("barId")
	e.Str(d.BarID)
	e.FieldStart("name")
	e.Str(d.Name)
	e.FieldStart("price")
	e.Str(d.Price.StringFixed(2))
	e.FieldStart("active")
	e.Bool(d.Active)
	e.ObjEnd()
}

// encodeOrder writes an order. Money is a fixed two-decimal string so
// clients never round through floats.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("barId")
	e.Str(o.BarID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("drinkId")
		e.Str(it.DrinkID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("unitPrice")
		e.Str(it.UnitPrice.StringFixed(2))
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Str(o.Total.StringFixed(2))
	e.FieldStart("currency")
	e.Str(o.Currency)
	if o.CheckoutSessionID != "" {
		e.FieldStart("checkoutSessionId")
		e.Str(o.CheckoutSessionID)
	}
	encodeTime(e, "createdAt", o.CreatedAt)
	encodeTime(e, "updatedAt", o.UpdatedAt)
	e.ObjEnd()
}

// encodePage writes {"items":[...],"page":n,"pageSize":n,"total":n}.
func encodePage(e *jx.Encoder, page, pageSize, total, n int, item func(i int)) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for i := range n {
		item(i)
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(page)
	e.FieldStart("pageSize")
	e.Int(pageSize)
	e.FieldStart("total")
	e.Int(total)
	e.ObjEnd()
}
