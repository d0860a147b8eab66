// Package alerts derives stock alerts from the catalog and pushes them to
// subscribers whenever the set changes.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/enum"
)

// Title is shared by every inventory alert.
const Title = "Alerta de inventario"

// Meta carries the threshold that was crossed.
type Meta struct {
	Min    *int64 `json:"min,omitempty"`
	Max    *int64 `json:"max,omitempty"`
	Actual int64  `json:"actual"`
	Nombre string `json:"nombre"`
}

// Alert is one entry of the alert bell.
type Alert struct {
	Key        string `json:"key"`
	Code       string `json:"code"`
	ProductoID int64  `json:"producto_id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Meta       Meta   `json:"meta"`
	TS         int64  `json:"ts"`
}

// Build returns the alerts for products at time now, one per key, ordered by
// product ID. A product below its minimum yields MIN:<id>; above its maximum,
// MAX:<id>. A missing maximum counts as zero.
func Build(products []catalog.Product, now time.Time) []Alert {
	ts := now.UnixMilli()
	byKey := make(map[string]int)
	var out []Alert

	put := func(a Alert) {
		if i, ok := byKey[a.Key]; ok {
			out[i] = a
			return
		}
		byKey[a.Key] = len(out)
		out = append(out, a)
	}

	for _, p := range products {
		if p.StockActual < p.StockMin {
			floor := p.StockMin
			put(Alert{
				Key:        fmt.Sprintf("MIN:%d", p.ID),
				Code:       enum.AlertStockBelowMin,
				ProductoID: p.ID,
				Title:      Title,
				Message:    fmt.Sprintf("El producto \"%s\" está por debajo del mínimo configurado.", p.Name),
				Meta:       Meta{Min: &floor, Actual: p.StockActual, Nombre: p.Name},
				TS:         ts,
			})
		}
		if p.StockActual > p.StockMax {
			ceiling := p.StockMax
			put(Alert{
				Key:        fmt.Sprintf("MAX:%d", p.ID),
				Code:       enum.AlertStockAboveMax,
				ProductoID: p.ID,
				Title:      Title,
				Message:    fmt.Sprintf("El producto \"%s\" supera el máximo configurado.", p.Name),
				Meta:       Meta{Max: &ceiling, Actual: p.StockActual, Nombre: p.Name},
				TS:         ts,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductoID < out[j].ProductoID })
	if out == nil {
		out = []Alert{}
	}
	return out
}

// Equal reports whether a and b hold the same alerts, ignoring timestamps.
func Equal(a, b []Alert) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Key != y.Key || x.Message != y.Message || x.Meta.Actual != y.Meta.Actual ||
			!samePtr(x.Meta.Min, y.Meta.Min) || !samePtr(x.Meta.Max, y.Meta.Max) {
			return false
		}
	}
	return true
}

func samePtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Counts tallies alerts by code.
func Counts(list []Alert) map[string]int {
	counts := map[string]int{
		enum.AlertStockBelowMin: 0,
		enum.AlertStockAboveMax: 0,
	}
	for _, a := range list {
		counts[a.Code]++
	}
	return counts
}
