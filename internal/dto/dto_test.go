package dto

import (
	"net/url"
	"testing"

	"github.com/ogen-go/ogen/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barflow/barflow/internal/domain/order"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Name
		assert.Error(t, f.Error, "field %s has no reason", f.Name)
	}
	return names
}

func TestParseBarListQuery_Defaults(t *testing.T) {
	q, err := ParseBarListQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, BarListQuery{Page: 1, PageSize: 10}, q)
}

func TestParseBarListQuery_Coercion(t *testing.T) {
	q, err := ParseBarListQuery(url.Values{
		"search":   {"  rook  "},
		"page":     {"3"},
		"pageSize": {"100"},
		"active":   {"false"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rook", q.Search)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 100, q.PageSize)
	require.NotNil(t, q.Active)
	assert.False(t, *q.Active)
}

func TestParseBarListQuery_StatusAlias(t *testing.T) {
	q, err := ParseBarListQuery(url.Values{"status": {"active"}})
	require.NoError(t, err)
	require.NotNil(t, q.Active)
	assert.True(t, *q.Active)

	q, err = ParseBarListQuery(url.Values{"status": {"inactive"}, "active": {"false"}})
	require.NoError(t, err)
	require.NotNil(t, q.Active)
	assert.False(t, *q.Active)
}

func TestParseBarListQuery_CollectsEveryField(t *testing.T) {
	_, err := ParseBarListQuery(url.Values{
		"page":     {"0"},
		"pageSize": {"101"},
		"active":   {"yes"},
		"status":   {"archived"},
	})
	assert.ElementsMatch(t, []string{"page", "pageSize", "active", "status"}, fieldNames(t, err))
}

func TestParseBarListQuery_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{"page not integer", url.Values{"page": {"one"}}, "page"},
		{"negative page", url.Values{"page": {"-1"}}, "page"},
		{"page size zero", url.Values{"pageSize": {"0"}}, "pageSize"},
		{"page size not integer", url.Values{"pageSize": {"1.5"}}, "pageSize"},
		{"conflicting filters", url.Values{"active": {"true"}, "status": {"inactive"}}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBarListQuery(tt.query)
			assert.Equal(t, []string{tt.field}, fieldNames(t, err))
		})
	}
}

func TestParseOrderListQuery(t *testing.T) {
	q, err := ParseOrderListQuery(url.Values{"status": {"making"}, "pageSize": {"25"}})
	require.NoError(t, err)
	assert.Equal(t, OrderListQuery{Status: order.StatusMaking, Page: 1, PageSize: 25}, q)

	_, err = ParseOrderListQuery(url.Values{"status": {"paid"}, "page": {"0"}})
	assert.ElementsMatch(t, []string{"status", "page"}, fieldNames(t, err))
}

func TestCheckoutBody_Normalize(t *testing.T) {
	b, err := CheckoutBody{
		SuccessURL: "https://rookery.example/paid",
		CancelURL:  "https://rookery.example/cart",
	}.Normalize()
	require.NoError(t, err)
	assert.Empty(t, b.Currency, "the order's currency applies")

	b, err = CheckoutBody{
		SuccessURL: "http://localhost:3000/ok",
		CancelURL:  "http://localhost:3000/no",
		Currency:   "EUR",
	}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "eur", b.Currency)
}

func TestCheckoutBody_Invalid(t *testing.T) {
	_, err := CheckoutBody{
		SuccessURL: "/relative/path",
		CancelURL:  "ftp://files.example/x",
		Currency:   "pounds",
	}.Normalize()
	assert.ElementsMatch(t, []string{"successUrl", "cancelUrl", "currency"}, fieldNames(t, err))

	_, err = CheckoutBody{}.Normalize()
	assert.ElementsMatch(t, []string{"successUrl", "cancelUrl"}, fieldNames(t, err))
}

func TestStatusBody_Parse(t *testing.T) {
	for _, s := range []string{"making", "fulfilled"} {
		st, err := StatusBody{Status: s}.Parse()
		require.NoError(t, err)
		assert.Equal(t, order.Status(s), st)
	}
	for _, s := range []string{"", "open", "completed", "cancelled", "MAKING"} {
		_, err := StatusBody{Status: s}.Parse()
		assert.Equal(t, []string{"status"}, fieldNames(t, err), "status %q", s)
	}
}

func TestCreateBarBody_Normalize(t *testing.T) {
	b, err := CreateBarBody{Name: "  The Rookery ", Slug: "the-rookery"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "The Rookery", b.Name)

	_, err = CreateBarBody{Name: " ", Slug: "The Rookery"}.Normalize()
	assert.ElementsMatch(t, []string{"name", "slug"}, fieldNames(t, err))

	_, err = CreateBarBody{Name: "x", Slug: "double--dash"}.Normalize()
	assert.Equal(t, []string{"slug"}, fieldNames(t, err))
}

func TestCreateDrinkBody_Parse(t *testing.T) {
	in, err := CreateDrinkBody{Name: "Negroni", Price: "9.50"}.Parse()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.5").Equal(in.Price))

	for _, price := range []string{"", "free", "0", "-1", "1.005"} {
		_, err := CreateDrinkBody{Name: "Negroni", Price: price}.Parse()
		assert.Equal(t, []string{"price"}, fieldNames(t, err), "price %q", price)
	}
}

func TestCreateOrderBody_Lines(t *testing.T) {
	id := "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11"
	lines, err := CreateOrderBody{Items: []OrderLineBody{{DrinkID: id, Quantity: 2}}}.Lines()
	require.NoError(t, err)
	assert.Equal(t, []order.LineRequest{{DrinkID: id, Quantity: 2}}, lines)

	_, err = CreateOrderBody{}.Lines()
	assert.Equal(t, []string{"items"}, fieldNames(t, err))

	_, err = CreateOrderBody{Items: []OrderLineBody{
		{DrinkID: "nope", Quantity: 1},
		{DrinkID: id, Quantity: 0},
		{DrinkID: id, Quantity: 21},
	}}.Lines()
	assert.ElementsMatch(t, []string{"items[0].drinkId", "items[1].quantity", "items[2].quantity"}, fieldNames(t, err))
}

func TestRecipeBody_Request(t *testing.T) {
	req, err := RecipeBody{Ingredients: []string{" gin ", "campari"}, Constraints: []string{"low sugar"}}.Request()
	require.NoError(t, err)
	assert.Equal(t, []string{"gin", "campari"}, req.Ingredients)
	assert.Equal(t, []string{"low sugar"}, req.Constraints)

	_, err = RecipeBody{Ingredients: []string{}, Servings: -1}.Request()
	assert.ElementsMatch(t, []string{"ingredients", "servings"}, fieldNames(t, err))

	_, err = RecipeBody{Ingredients: []string{"gin", "  "}}.Request()
	assert.Equal(t, []string{"ingredients[1]"}, fieldNames(t, err))
}

func TestID(t *testing.T) {
	_, err := ID("orderID", "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11")
	require.NoError(t, err)

	_, err = ID("orderID", "42")
	assert.Equal(t, []string{"orderID"}, fieldNames(t, err))
}

func TestFields(t *testing.T) {
	assert.Nil(t, Fields(assert.AnError))
	assert.Len(t, Fields(BodyError(assert.AnError)), 1)
}
