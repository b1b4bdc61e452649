package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/barflow/barflow/internal/domain/auth"
	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/dto"
)

// ListBars serves GET /v1/bars. Only admins see inactive bars; for everyone
// else the active filter is forced on.
func (h *Handler) ListBars(w http.ResponseWriter, r *http.Request) {
	q, err := dto.ParseBarListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.optionalPrincipal(r).HasRole(auth.RoleAdmin) {
		if q.Active != nil && !*q.Active {
			writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
				encodePage(e, q.Page, q.PageSize, 0, 0, nil)
			})
			return
		}
		active := true
		q.Active = &active
	}

	bars, total, err := h.bars.List(r.Context(), bar.ListFilter{
		Search:   q.Search,
		Active:   q.Active,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePage(e, q.Page, q.PageSize, total, len(bars), func(i int) { encodeBar(e, &bars[i]) })
	})
}

// GetBar serves GET /v1/bars/{bar} by slug.
func (h *Handler) GetBar(w http.ResponseWriter, r *http.Request) {
	b, err := h.visibleBar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBar(e, b) })
}

// CreateBar serves POST /v1/bars.
func (h *Handler) CreateBar(w http.ResponseWriter, r *http.Request) {
	var body dto.CreateBarBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body, err := body.Normalize()
	if err != nil {
		writeError(w, r, err)
		return
	}

	b := &bar.Bar{Name: body.Name, Slug: body.Slug, Active: true}
	if err := h.bars.Create(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Bar created", zap.String("bar_id", b.ID), zap.String("slug", b.Slug))
	w.Header().Set("Location", "/v1/bars/"+b.Slug)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeBar(e, b) })
}

// DeactivateBar serves POST /v1/bars/{bar}/deactivate by id.
func (h *Handler) DeactivateBar(w http.ResponseWriter, r *http.Request) {
	id, err := dto.ID("barID", chi.URLParam(r, "bar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.bars.SetActive(r.Context(), id, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Bar deactivated", zap.String("bar_id", b.ID))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBar(e, b) })
}

// ListDrinks serves GET /v1/bars/{bar}/drinks: the active menu of a bar
// looked up by slug.
func (h *Handler) ListDrinks(w http.ResponseWriter, r *http.Request) {
	b, err := h.visibleBar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := h.drinks.ListByBar(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	drinks := make([]menu.Drink, 0, len(all))
	for _, d := range all {
		if d.Active {
			drinks = append(drinks, d)
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for i := range drinks {
			encodeDrink(e, &drinks[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// CreateDrink serves POST /v1/bars/{bar}/drinks by bar id.
func (h *Handler) CreateDrink(w http.ResponseWriter, r *http.Request) {
	barID, err := dto.ID("barID", chi.URLParam(r, "bar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := manage(r, barID); err != nil {
		writeError(w, r, err)
		return
	}
	var body dto.CreateDrinkBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := body.Parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.bars.GetByID(r.Context(), barID); err != nil {
		writeError(w, r, err)
		return
	}

	d := &menu.Drink{BarID: barID, Name: in.Name, Price: in.Price, Active: true}
	if err := h.drinks.Create(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDrink(e, d) })
}

// visibleBar resolves the {bar} slug. Inactive bars are visible to admins
// only.
func (h *Handler) visibleBar(r *http.Request) (*bar.Bar, error) {
	b, err := h.bars.GetBySlug(r.Context(), chi.URLParam(r, "bar"))
	if err != nil {
		return nil, err
	}
	if !b.Active && !h.optionalPrincipal(r).HasRole(auth.RoleAdmin) {
		return nil, bar.ErrNotFound
	}
	return b, nil
}
