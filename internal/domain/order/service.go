package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/payment"
)

const instrumentationName = "github.com/barflow/barflow/internal/domain/order"

// DefaultCurrency is used when a checkout request omits the currency.
const DefaultCurrency = "gbp"

// LineRequest is one cart line as submitted by a customer.
type LineRequest struct {
	DrinkID  string
	Quantity int
}

// PlaceOrderRequest holds the input for placing an order at a bar.
type PlaceOrderRequest struct {
	BarSlug string
	Lines   []LineRequest
}

// StatusRequest is a staff-initiated lifecycle change. BarScope, when set,
// restricts the change to orders of that bar.
type StatusRequest struct {
	OrderID  string
	To       Status
	BarScope string
}

// CheckoutRequest asks for a hosted checkout page for an order.
type CheckoutRequest struct {
	OrderID    string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for lifecycle counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service encapsulates order placement, the status lifecycle and payment
// reconciliation.
type Service struct {
	bars     bar.Repository
	drinks   menu.Repository
	orders   Repository
	payments payment.Provider

	tracer      trace.Tracer
	meter       metric.Meter
	transitions metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	bars bar.Repository,
	drinks menu.Repository,
	orders Repository,
	payments payment.Provider,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		bars:     bars,
		drinks:   drinks,
		orders:   orders,
		payments: payments,
		tracer:   nooptrace.NewTracerProvider().Tracer(instrumentationName),
		meter:    noop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	s.transitions, err = s.meter.Int64Counter("barflow.order.transitions",
		metric.WithDescription("Order lifecycle transitions by trigger and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}
	return s, nil
}

// PlaceOrder prices the cart against the bar's active menu and persists a new
// open order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	if len(req.Lines) == 0 {
		return nil, ErrEmptyItems
	}

	b, err := s.bars.GetBySlug(ctx, req.BarSlug)
	if err != nil {
		return nil, errors.Wrap(err, "get bar")
	}
	if !b.Active {
		// Inactive bars are invisible to customers.
		return nil, bar.ErrNotFound
	}

	ids := make([]string, len(req.Lines))
	for i, line := range req.Lines {
		ids[i] = line.DrinkID
	}
	fetched, err := s.drinks.GetByIDs(ctx, b.ID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get drinks")
	}
	byID := make(map[string]menu.Drink, len(fetched))
	for _, d := range fetched {
		byID[d.ID] = d
	}

	items := make([]Item, len(req.Lines))
	total := decimal.Zero
	for i, line := range req.Lines {
		d, ok := byID[line.DrinkID]
		if !ok {
			return nil, &DrinkNotFoundError{DrinkID: line.DrinkID}
		}
		items[i] = Item{
			DrinkID:   d.ID,
			Name:      d.Name,
			UnitPrice: d.Price,
			Quantity:  line.Quantity,
		}
		total = total.Add(d.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	o := &Order{
		ID:       uuid.New().String(),
		BarID:    b.ID,
		Status:   StatusOpen,
		Items:    items,
		Total:    total.Round(2),
		Currency: DefaultCurrency,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("bar.id", b.ID))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("bar_id", b.ID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// Get returns an order by id. A non-empty barScope hides orders of other bars.
func (s *Service) Get(ctx context.Context, id, barScope string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if barScope != "" && o.BarID != barScope {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns a page of a bar's orders and the total number of matches.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return orders, total, nil
}

// SetStatus applies a staff transition. Two racing requests for the same
// source state are serialized by the repository's compare-and-set: the loser
// re-reads the order and reports an *InvalidTransitionError.
func (s *Service) SetStatus(ctx context.Context, req StatusRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.SetStatus",
		trace.WithAttributes(attribute.String("order.id", req.OrderID), attribute.String("order.to", string(req.To))),
	)
	defer span.End()

	o, err := s.Get(ctx, req.OrderID, req.BarScope)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(o.Status, req.To, TriggerStaff); err != nil {
		s.count(ctx, TriggerStaff, "rejected")
		return nil, err
	}

	updated, err := s.orders.CompareAndSetStatus(ctx, o.ID, o.Status, req.To)
	if errors.Is(err, ErrStatusChanged) {
		current, getErr := s.orders.Get(ctx, o.ID)
		if getErr != nil {
			return nil, errors.Wrap(getErr, "reload order")
		}
		s.count(ctx, TriggerStaff, "conflict")
		return nil, &InvalidTransitionError{From: current.Status, To: req.To}
	}
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}

	s.count(ctx, TriggerStaff, "applied")
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(req.To)),
	)
	return updated, nil
}

// Checkout opens a hosted checkout session for an unpaid order.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*payment.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer span.End()

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCompleted}
	}
	b, err := s.bars.GetByID(ctx, o.BarID)
	if err != nil {
		return nil, errors.Wrap(err, "get bar")
	}

	// Sessions opened earlier stay payable, so every session of an order
	// must charge the same currency the webhook amount check compares with.
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = o.Currency
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if o.CheckoutSessionID != "" && currency != o.Currency {
		return nil, errors.Wrapf(ErrCurrencyLocked, "order %s is charged in %s, not %s", o.ID, o.Currency, currency)
	}

	sess, err := s.payments.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:     o.ID,
		BarName:     b.Name,
		AmountMinor: o.AmountMinor(),
		Currency:    currency,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	if err := s.orders.SetCheckoutSession(ctx, o.ID, sess.ID, currency); err != nil {
		return nil, errors.Wrap(err, "save checkout session")
	}
	zctx.From(ctx).Info("Checkout session opened",
		zap.String("order_id", o.ID),
		zap.String("session_id", sess.ID),
		zap.String("currency", currency),
	)
	return sess, nil
}

// HandlePaymentEvent reconciles a verified provider event with its order.
// Replayed events are a no-op. A confirmation whose amount or currency does
// not match the order is recorded but not applied, and returned as a
// *payment.MismatchError alongside OutcomeMismatch.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payment.Event) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "order.HandlePaymentEvent",
		trace.WithAttributes(attribute.String("event.id", ev.ID), attribute.String("event.type", ev.Type)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("order_id", ev.OrderID),
	)

	var (
		trigger  Trigger
		mismatch *payment.MismatchError
	)
	switch ev.Kind {
	case payment.EventPaymentSucceeded:
		trigger = TriggerPaymentConfirmed
	case payment.EventPaymentFailed:
		trigger = TriggerPaymentFailed
	default:
		lg.Debug("Payment event type not handled")
		return OutcomeIgnored, nil
	}

	decide := func(o *Order) Decision {
		switch trigger {
		case TriggerPaymentConfirmed:
			if o.AmountMinor() != ev.AmountMinor || !strings.EqualFold(o.Currency, ev.Currency) {
				mismatch = &payment.MismatchError{
					OrderID:          o.ID,
					ExpectedMinor:    o.AmountMinor(),
					ExpectedCurrency: o.Currency,
					PaidMinor:        ev.AmountMinor,
					PaidCurrency:     strings.ToLower(ev.Currency),
				}
				return Decision{Outcome: OutcomeMismatch}
			}
			if CanTransition(o.Status, StatusCompleted, trigger) {
				return Decision{To: StatusCompleted, Outcome: OutcomeApplied}
			}
		case TriggerPaymentFailed:
			if CanTransition(o.Status, StatusCancelled, trigger) {
				return Decision{To: StatusCancelled, Outcome: OutcomeApplied}
			}
		}
		return Decision{Outcome: OutcomeIgnored}
	}

	_, outcome, err := s.orders.ApplyPaymentEvent(ctx, ev, decide)
	if err != nil {
		return "", errors.Wrap(err, "apply payment event")
	}
	s.count(ctx, trigger, string(outcome))

	switch outcome {
	case OutcomeDuplicate:
		lg.Debug("Payment event already processed")
	case OutcomeMismatch:
		lg.Warn("Payment amount mismatch, event not applied", zap.Error(mismatch))
		return outcome, mismatch
	case OutcomeUnknownOrder:
		lg.Warn("Payment event for unknown order")
	case OutcomeIgnored:
		lg.Info("Payment event ignored")
	default:
		lg.Info("Payment event applied")
	}
	return outcome, nil
}

func (s *Service) count(ctx context.Context, trigger Trigger, result string) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.String("result", result),
	))
}
