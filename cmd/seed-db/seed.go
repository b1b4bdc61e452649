package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/barflow/barflow/db"
	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
)

type seedJSON struct {
	Bars []barJSON `json:"bars"`
}

type barJSON struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Slug   string      `json:"slug"`
	Active bool        `json:"active"`
	Drinks []drinkJSON `json:"drinks"`
	Orders []orderJSON `json:"orders"`
}

type drinkJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Inactive bool            `json:"inactive,omitempty"`
}

type orderJSON struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Currency string `json:"currency,omitempty"`
	Items    []struct {
		DrinkID  string `json:"drinkId"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

// seedBar is one bar ready to be upserted.
type seedBar struct {
	bar    bar.Bar
	drinks []menu.Drink
	orders []order.Order
}

// readSeed returns the seed document at path, the embedded fixture when path
// is empty. Files ending in .gz are decompressed.
func readSeed(path string) ([]byte, error) {
	if path == "" {
		return db.SeedBars, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	if !strings.HasSuffix(path, ".gz") {
		return data, nil
	}
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open gzip")
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "decompress seed file")
	}
	return out, nil
}

// parseSeed validates the document and prices orders from their bar's
// drinks, the same way placed orders are priced.
func parseSeed(data []byte) ([]seedBar, error) {
	var doc seedJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}

	out := make([]seedBar, 0, len(doc.Bars))
	slugs := make(map[string]struct{}, len(doc.Bars))
	for _, b := range doc.Bars {
		if _, err := uuid.Parse(b.ID); err != nil {
			return nil, errors.Errorf("bar %q: invalid id %q", b.Slug, b.ID)
		}
		if b.Slug == "" || b.Name == "" {
			return nil, errors.Errorf("bar %s: name and slug are required", b.ID)
		}
		if _, dup := slugs[b.Slug]; dup {
			return nil, errors.Errorf("bar %s: duplicate slug %q", b.ID, b.Slug)
		}
		slugs[b.Slug] = struct{}{}

		sb := seedBar{bar: bar.Bar{ID: b.ID, Name: b.Name, Slug: b.Slug, Active: b.Active}}
		prices := make(map[string]menu.Drink, len(b.Drinks))
		for _, d := range b.Drinks {
			if _, err := uuid.Parse(d.ID); err != nil {
				return nil, errors.Errorf("bar %q: drink %q has invalid id %q", b.Slug, d.Name, d.ID)
			}
			if !d.Price.IsPositive() {
				return nil, errors.Errorf("bar %q: drink %q must have a positive price", b.Slug, d.Name)
			}
			drink := menu.Drink{ID: d.ID, BarID: b.ID, Name: d.Name, Price: d.Price, Active: !d.Inactive}
			prices[d.ID] = drink
			sb.drinks = append(sb.drinks, drink)
		}

		for _, o := range b.Orders {
			priced, err := priceOrder(b.ID, o, prices)
			if err != nil {
				return nil, errors.Wrapf(err, "bar %q", b.Slug)
			}
			sb.orders = append(sb.orders, priced)
		}
		out = append(out, sb)
	}
	return out, nil
}

func priceOrder(barID string, o orderJSON, drinks map[string]menu.Drink) (order.Order, error) {
	if _, err := uuid.Parse(o.ID); err != nil {
		return order.Order{}, errors.Errorf("order has invalid id %q", o.ID)
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "order %s", o.ID)
	}
	if len(o.Items) == 0 {
		return order.Order{}, errors.Errorf("order %s has no items", o.ID)
	}

	currency := strings.ToLower(o.Currency)
	if currency == "" {
		currency = order.DefaultCurrency
	}
	out := order.Order{ID: o.ID, BarID: barID, Status: status, Currency: currency, Total: decimal.Zero}
	for _, line := range o.Items {
		d, ok := drinks[line.DrinkID]
		if !ok {
			return order.Order{}, errors.Errorf("order %s: unknown drink %q", o.ID, line.DrinkID)
		}
		if line.Quantity <= 0 {
			return order.Order{}, errors.Errorf("order %s: quantity must be positive", o.ID)
		}
		out.Items = append(out.Items, order.Item{
			DrinkID:   d.ID,
			Name:      d.Name,
			UnitPrice: d.Price,
			Quantity:  line.Quantity,
		})
		out.Total = out.Total.Add(d.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	out.Total = out.Total.Round(2)
	return out, nil
}
