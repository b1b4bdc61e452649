package dto

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/barflow/barflow/internal/domain/order"
)

// Pagination defaults and bounds shared by list endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxSearchLength = 100
)

// BarListQuery is the normalized query of GET /v1/bars.
type BarListQuery struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// ParseBarListQuery validates q. `active=true|false` and
// `status=active|inactive` describe the same filter and are both accepted;
// conflicting values fail on `status`.
func ParseBarListQuery(q url.Values) (BarListQuery, error) {
	var c checker
	out := BarListQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}

	c.field("search", out.Search, Length(0, maxSearchLength))
	if c.field("page", q.Get("page"), Optional(Integer(1, 1<<31-1))) {
		out.Page = atoi(q.Get("page"), DefaultPage)
	}
	if c.field("pageSize", q.Get("pageSize"), Optional(Integer(1, MaxPageSize))) {
		out.PageSize = atoi(q.Get("pageSize"), DefaultPageSize)
	}

	var fromActive, fromStatus *bool
	if raw := q.Get("active"); c.field("active", raw, Optional(Bool())) && raw != "" {
		v := raw == "true"
		fromActive = &v
	}
	if raw := q.Get("status"); c.field("status", raw, Optional(OneOf("active", "inactive"))) && raw != "" {
		v := raw == "active"
		fromStatus = &v
	}
	switch {
	case fromActive != nil && fromStatus != nil && *fromActive != *fromStatus:
		c.fail("status", errors.New("conflicts with active"))
	case fromActive != nil:
		out.Active = fromActive
	case fromStatus != nil:
		out.Active = fromStatus
	}

	if err := c.err(); err != nil {
		return BarListQuery{}, err
	}
	return out, nil
}

// OrderListQuery is the normalized query of GET /v1/bars/{barID}/orders.
type OrderListQuery struct {
	Search   string
	Status   order.Status
	Page     int
	PageSize int
}

// ParseOrderListQuery validates q. `status`, when present, must be a known
// order status.
func ParseOrderListQuery(q url.Values) (OrderListQuery, error) {
	var c checker
	out := OrderListQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}

	c.field("search", out.Search, Length(0, maxSearchLength))
	if c.field("page", q.Get("page"), Optional(Integer(1, 1<<31-1))) {
		out.Page = atoi(q.Get("page"), DefaultPage)
	}
	if c.field("pageSize", q.Get("pageSize"), Optional(Integer(1, MaxPageSize))) {
		out.PageSize = atoi(q.Get("pageSize"), DefaultPageSize)
	}

	statuses := make([]string, len(order.Statuses))
	for i, s := range order.Statuses {
		statuses[i] = string(s)
	}
	if raw := q.Get("status"); c.field("status", raw, Optional(OneOf(statuses...))) {
		out.Status = order.Status(raw)
	}

	if err := c.err(); err != nil {
		return OrderListQuery{}, err
	}
	return out, nil
}
