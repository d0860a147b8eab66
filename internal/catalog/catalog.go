// Package catalog holds the product list a form session prices its lines from.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Product is one sellable item with its stock thresholds.
type Product struct {
	ID           int64  `json:"id_producto"`
	Name         string `json:"nombre_producto"`
	Description  string `json:"descripcion_producto,omitempty"`
	UnitPrice    int64  `json:"precio_unitario"`
	StockActual  int64  `json:"stock_actual"`
	StockMin     int64  `json:"stock_minimo"`
	StockMax     int64  `json:"stock_maximo"`
	UnitID       int64  `json:"unidad_medida,omitempty"`
	UnitName     string `json:"nombre_unidad_medida,omitempty"`
	CategoryID   int64  `json:"categoria,omitempty"`
	CategoryName string `json:"nombre_categoria,omitempty"`
}

// Source lists the current catalog.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Product, error)

// ListProducts implements Source.
func (f SourceFunc) ListProducts(ctx context.Context) ([]Product, error) {
	return f(ctx)
}

// Whole rounds a decimal amount to a whole number of pesos.
func Whole(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Snapshot is an immutable view of the catalog taken when a form opens.
type Snapshot struct {
	byID     map[int64]Product
	products []Product
}

// NewSnapshot indexes products by ID. Later duplicates replace earlier ones.
func NewSnapshot(products []Product) *Snapshot {
	s := &Snapshot{byID: make(map[int64]Product, len(products))}
	for _, p := range products {
		s.byID[p.ID] = p
	}
	s.products = make([]Product, 0, len(s.byID))
	for _, p := range s.byID {
		s.products = append(s.products, p)
	}
	sort.Slice(s.products, func(i, j int) bool { return s.products[i].ID < s.products[j].ID })
	return s
}

// Load fetches the catalog from src and returns a snapshot of it.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return NewSnapshot(products), nil
}

// UnitPrice returns the price of id; it satisfies lineitem.Catalog.
func (s *Snapshot) UnitPrice(id int64) (int64, bool) {
	p, ok := s.Get(id)
	if !ok {
		return 0, false
	}
	return p.UnitPrice, true
}

// Get returns the product with id.
func (s *Snapshot) Get(id int64) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Name returns the product name, or "#id" when unknown.
func (s *Snapshot) Name(id int64) string {
	if p, ok := s.Get(id); ok && p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", id)
}

// Products returns the products ordered by ID.
func (s *Snapshot) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len returns the number of products.
func (s *Snapshot) Len() int {
	return len(s.products)
}
