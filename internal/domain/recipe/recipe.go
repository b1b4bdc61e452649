// Package recipe describes cocktail recipe generation. Generation itself is
// delegated to an external service.
package recipe

import (
	"context"
	"encoding/json"
)

// Request is a structured generation request.
type Request struct {
	Ingredients []string `json:"ingredients"`
	Constraints []string `json:"constraints,omitempty"`
	Servings    int      `json:"servings,omitempty"`
}

// Generator produces recipes. The returned document is the generation
// service's JSON object, passed through unchanged.
type Generator interface {
	Generate(ctx context.Context, req Request, correlationID string) (json.RawMessage, error)
}
