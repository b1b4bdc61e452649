package handler

import (
	"net/http"

	"github.com/barflow/barflow/internal/dto"
	"github.com/barflow/barflow/pkg/httpmiddleware"
)

// GenerateRecipe serves POST /v1/recipes/generate. The request id travels
// to the generation service as its correlation id and the generated
// document is returned verbatim.
func (h *Handler) GenerateRecipe(w http.ResponseWriter, r *http.Request) {
	var body dto.RecipeBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.Request()
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.recipes.Generate(r.Context(), req, httpmiddleware.RequestIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
