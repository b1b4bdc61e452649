package dto

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/recipe"
)

var (
	slugRe     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	currencyRe = regexp.MustCompile(`^[a-zA-Z]{3}$`)
)

// Limits on request bodies.
const (
	maxOrderLines     = 50
	maxLineQuantity   = 20
	maxIngredients    = 30
	maxConstraints    = 20
	maxRecipeServings = 50
)

// CheckoutBody is the body of POST /v1/orders/{orderID}/checkout.
type CheckoutBody struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	Currency   string `json:"currency,omitempty"`
}

// Normalize validates b and returns a copy with the currency lower-cased. An
// empty currency keeps the order's currency, gbp for new orders.
func (b CheckoutBody) Normalize() (CheckoutBody, error) {
	var c checker
	c.field("successUrl", b.SuccessURL, Required(), AbsoluteURL())
	c.field("cancelUrl", b.CancelURL, Required(), AbsoluteURL())
	c.field("currency", b.Currency, Optional(Matches(currencyRe, "a three-letter currency code")))
	if err := c.err(); err != nil {
		return CheckoutBody{}, err
	}

	b.Currency = strings.ToLower(b.Currency)
	return b, nil
}

// StatusBody is the body of PATCH /v1/orders/{orderID}/status.
type StatusBody struct {
	Status string `json:"status"`
}

// Parse returns the requested status. Only statuses staff may set directly
// are accepted; payment-derived states are rejected here.
func (b StatusBody) Parse() (order.Status, error) {
	allowed := make([]string, len(order.StaffSettable))
	for i, s := range order.StaffSettable {
		allowed[i] = string(s)
	}
	var c checker
	c.field("status", b.Status, Required(), OneOf(allowed...))
	if err := c.err(); err != nil {
		return "", err
	}
	return order.Status(b.Status), nil
}

// CreateBarBody is the body of POST /v1/bars.
type CreateBarBody struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Normalize validates b and trims the name.
func (b CreateBarBody) Normalize() (CreateBarBody, error) {
	b.Name = strings.TrimSpace(b.Name)
	var c checker
	c.field("name", b.Name, Required(), Length(1, 120))
	c.field("slug", b.Slug, Required(), Length(2, 64), Matches(slugRe, "lower-case letters, digits and single dashes"))
	if err := c.err(); err != nil {
		return CreateBarBody{}, err
	}
	return b, nil
}

// CreateDrinkBody is the body of POST /v1/bars/{barID}/drinks.
type CreateDrinkBody struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// DrinkInput is a validated CreateDrinkBody.
type DrinkInput struct {
	Name  string
	Price decimal.Decimal
}

// Parse validates b. The price is a positive decimal string with at most two
// fractional digits.
func (b CreateDrinkBody) Parse() (DrinkInput, error) {
	var c checker
	name := strings.TrimSpace(b.Name)
	c.field("name", name, Required(), Length(1, 120))

	var price decimal.Decimal
	if c.field("price", b.Price, Required()) {
		p, err := decimal.NewFromString(b.Price)
		switch {
		case err != nil:
			c.fail("price", errors.New("must be a decimal number"))
		case !p.IsPositive():
			c.fail("price", errors.New("must be greater than 0"))
		case !p.Equal(p.Round(2)):
			c.fail("price", errors.New("must have at most two decimal places"))
		default:
			price = p
		}
	}
	if err := c.err(); err != nil {
		return DrinkInput{}, err
	}
	return DrinkInput{Name: name, Price: price}, nil
}

// CreateOrderBody is the body of POST /v1/bars/{slug}/orders.
type CreateOrderBody struct {
	Items []OrderLineBody `json:"items"`
}

// OrderLineBody is one cart line.
type OrderLineBody struct {
	DrinkID  string `json:"drinkId"`
	Quantity int    `json:"quantity"`
}

// Lines validates b and converts it to service input.
func (b CreateOrderBody) Lines() ([]order.LineRequest, error) {
	var c checker
	c.field("items", strconv.Itoa(len(b.Items)), Integer(1, maxOrderLines))

	lines := make([]order.LineRequest, len(b.Items))
	for i, item := range b.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		c.field(prefix+".drinkId", item.DrinkID, Required(), isUUID())
		c.field(prefix+".quantity", strconv.Itoa(item.Quantity), Integer(1, maxLineQuantity))
		lines[i] = order.LineRequest{DrinkID: item.DrinkID, Quantity: item.Quantity}
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// RecipeBody is the body of POST /v1/recipes/generate.
type RecipeBody struct {
	Ingredients []string `json:"ingredients"`
	Constraints []string `json:"constraints,omitempty"`
	Servings    int      `json:"servings,omitempty"`
}

// Request validates b and converts it to a generation request.
func (b RecipeBody) Request() (recipe.Request, error) {
	var c checker
	c.field("ingredients", strconv.Itoa(len(b.Ingredients)), Integer(1, maxIngredients))
	c.field("constraints", strconv.Itoa(len(b.Constraints)), Integer(0, maxConstraints))
	c.field("servings", strconv.Itoa(b.Servings), Integer(0, maxRecipeServings))

	req := recipe.Request{Servings: b.Servings}
	for i, in := range b.Ingredients {
		in = strings.TrimSpace(in)
		c.field(fmt.Sprintf("ingredients[%d]", i), in, Required(), Length(1, 80))
		req.Ingredients = append(req.Ingredients, in)
	}
	for i, con := range b.Constraints {
		con = strings.TrimSpace(con)
		c.field(fmt.Sprintf("constraints[%d]", i), con, Required(), Length(1, 200))
		req.Constraints = append(req.Constraints, con)
	}
	if err := c.err(); err != nil {
		return recipe.Request{}, err
	}
	return req, nil
}

// ID validates a path identifier named name.
func ID(name, v string) (string, error) {
	var c checker
	c.field(name, v, Required(), isUUID())
	return v, c.err()
}

func isUUID() Rule {
	return func(v string) error {
		if _, err := uuid.Parse(v); err != nil {
			return errors.New("must be a UUID")
		}
		return nil
	}
}
