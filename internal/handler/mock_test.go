package handler

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/payment"
	"github.com/barflow/barflow/internal/domain/recipe"
)

type memBars struct {
	mu   sync.Mutex
	bars []*bar.Bar
}

func (m *memBars) Create(_ context.Context, b *bar.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.bars {
		if x.Slug == b.Slug {
			return bar.ErrSlugTaken
		}
	}
	if b.ID == "" {
		b.ID = "b0000000-0000-4000-8000-00000000000" + string(rune('0'+len(m.bars)))
	}
	b.CreatedAt = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bars = append(m.bars, &cp)
	return nil
}

func (m *memBars) find(match func(*bar.Bar) bool) (*bar.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bars {
		if match(b) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, bar.ErrNotFound
}

func (m *memBars) GetByID(_ context.Context, id string) (*bar.Bar, error) {
	return m.find(func(b *bar.Bar) bool { return b.ID == id })
}

func (m *memBars) GetBySlug(_ context.Context, slug string) (*bar.Bar, error) {
	return m.find(func(b *bar.Bar) bool { return b.Slug == slug })
}

func (m *memBars) List(_ context.Context, f bar.ListFilter) ([]bar.Bar, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bar.Bar
	for _, b := range m.bars {
		if f.Active != nil && b.Active != *f.Active {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *b)
	}
	total := len(out)
	start := min((f.Page-1)*f.PageSize, total)
	end := min(start+f.PageSize, total)
	return out[start:end], total, nil
}

func (m *memBars) SetActive(_ context.Context, id string, active bool) (*bar.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bars {
		if b.ID == id {
			b.Active = active
			cp := *b
			return &cp, nil
		}
	}
	return nil, bar.ErrNotFound
}

type memDrinks struct {
	mu     sync.Mutex
	drinks []menu.Drink
}

func (m *memDrinks) Create(_ context.Context, d *menu.Drink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = "d0000000-0000-4000-8000-00000000000" + string(rune('0'+len(m.drinks)))
	}
	m.drinks = append(m.drinks, *d)
	return nil
}

func (m *memDrinks) ListByBar(_ context.Context, barID string) ([]menu.Drink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []menu.Drink
	for _, d := range m.drinks {
		if d.BarID == barID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDrinks) GetByIDs(_ context.Context, barID string, ids []string) ([]menu.Drink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []menu.Drink
	for _, d := range m.drinks {
		if d.BarID == barID && d.Active && slices.Contains(ids, d.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	events map[string]order.Outcome
	fail   error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[string]*order.Order{}, events: map[string]order.Outcome{}}
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) List(_ context.Context, f order.ListFilter) ([]order.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.BarID == f.BarID && (f.Status == "" || o.Status == f.Status) {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *memOrders) CompareAndSetStatus(_ context.Context, id string, from, to order.Status) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != from {
		return nil, order.ErrStatusChanged
	}
	o.Status = to
	cp := *o
	return &cp, nil
}

func (m *memOrders) SetCheckoutSession(_ context.Context, id, sessionID, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.CheckoutSessionID != "" && o.Currency != currency {
		return order.ErrCurrencyLocked
	}
	o.CheckoutSessionID = sessionID
	o.Currency = currency
	return nil
}

func (m *memOrders) ApplyPaymentEvent(_ context.Context, ev payment.Event, decide order.Decider) (*order.Order, order.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.events[ev.ID]; seen {
		return nil, order.OutcomeDuplicate, nil
	}
	o, ok := m.orders[ev.OrderID]
	if !ok {
		m.events[ev.ID] = order.OutcomeUnknownOrder
		return nil, order.OutcomeUnknownOrder, nil
	}
	d := decide(o)
	if d.To != "" {
		o.Status = d.To
	}
	m.events[ev.ID] = d.Outcome
	cp := *o
	return &cp, d.Outcome, nil
}

// fakeProvider returns a preset event for any payload signed "valid".
type fakeProvider struct {
	event    *payment.Event
	sessions int
}

func (f *fakeProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.sessions++
	return &payment.CheckoutSession{ID: "cs_test_" + req.OrderID[:8], URL: "https://checkout.example/" + req.OrderID}, nil
}

func (f *fakeProvider) ParseWebhook(_ []byte, signature string) (*payment.Event, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	ev := *f.event
	return &ev, nil
}

type fakeGenerator struct {
	doc           json.RawMessage
	err           error
	correlationID string
	req           recipe.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req recipe.Request, correlationID string) (json.RawMessage, error) {
	f.req = req
	f.correlationID = correlationID
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

var errBoom = errors.New("connection reset by peer")
