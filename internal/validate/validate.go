// Package validate checks a sale form before it is handed to the backend.
//
// Validation is fail-fast: the first broken rule wins and its message is the
// one shown to the user. Nothing is retained between runs.
package validate

import (
	"fmt"
	"strconv"

	"github.com/fitcompany/console/internal/lineitem"
	"github.com/fitcompany/console/internal/mask"
)

// Limits are the bounds a sale must respect.
type Limits struct {
	MaxItems     int   `yaml:"max_items" json:"max_items"`
	MaxQuantity  int64 `yaml:"max_quantity" json:"max_quantity"`
	MaxUnitPrice int64 `yaml:"max_unit_price" json:"max_unit_price"`
	TotalCeiling int64 `yaml:"total_ceiling" json:"total_ceiling"`
}

// DefaultLimits returns the bounds enforced by the inventory backend.
func DefaultLimits() Limits {
	return Limits{
		MaxItems:     200,
		MaxQuantity:  999_999,
		MaxUnitPrice: 99_999_999,
		TotalCeiling: 99_999_999,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxItems <= 0 {
		l.MaxItems = d.MaxItems
	}
	if l.MaxQuantity <= 0 {
		l.MaxQuantity = d.MaxQuantity
	}
	if l.MaxUnitPrice <= 0 {
		l.MaxUnitPrice = d.MaxUnitPrice
	}
	if l.TotalCeiling <= 0 {
		l.TotalCeiling = d.TotalCeiling
	}
	return l
}

// Field hints attached to a rejection.
const (
	FieldLines     = "productos"
	FieldReference = "id_producto"
	FieldQuantity  = "cantidad"
	FieldUnitPrice = "precio_unitario"
	FieldTotal     = "total"
)

// PayloadItem is one line as the backend expects it.
type PayloadItem struct {
	ReferenceID int64 `json:"id_producto"`
	Quantity    int64 `json:"cantidad"`
	UnitPrice   int64 `json:"precio_unitario"`
}

// Payload is the body of POST /ventas and PUT /ventas/{id}.
type Payload struct {
	Productos []PayloadItem `json:"productos"`
}

// Outcome is either Accepted or Rejected.
type Outcome interface {
	outcome()
}

// Accepted carries the payload ready to send.
type Accepted struct {
	Payload Payload
	Total   int64
}

// Rejected carries the first violated rule. Row is 1-based, 0 when the rule is
// not tied to a line.
type Rejected struct {
	Message string
	Field   string
	Row     int
}

func (Accepted) outcome() {}
func (Rejected) outcome() {}

// Error lets a Rejected travel as an error where a caller needs one.
func (r Rejected) Error() string { return r.Message }

// Validate runs every rule against c in order and stops at the first failure.
func Validate(c *lineitem.Collection, lim Limits) Outcome {
	lim = lim.withDefaults()
	lines := c.Lines()
	n := len(lines)

	if n <= 0 {
		return Rejected{Message: "Debes agregar al menos un producto.", Field: FieldLines}
	}
	if n > lim.MaxItems {
		return Rejected{
			Message: fmt.Sprintf("La venta no puede tener más de %d ítems.", lim.MaxItems),
			Field:   FieldLines,
		}
	}

	seen := make(map[int64]struct{}, n)
	items := make([]PayloadItem, 0, n)
	for i, l := range lines {
		row := i + 1
		if l.ReferenceID == nil || *l.ReferenceID <= 0 {
			return Rejected{
				Message: fmt.Sprintf("Debes seleccionar el producto en la fila #%d.", row),
				Field:   FieldReference,
				Row:     row,
			}
		}
		ref := *l.ReferenceID
		if _, dup := seen[ref]; dup {
			return Rejected{
				Message: fmt.Sprintf("El producto de la fila #%d ya fue seleccionado en otra fila.", row),
				Field:   FieldReference,
				Row:     row,
			}
		}
		seen[ref] = struct{}{}

		qty, ok := l.Quantity.Value()
		if !ok || qty < 1 || qty > lim.MaxQuantity {
			return Rejected{
				Message: fmt.Sprintf("La cantidad de la fila #%d debe estar entre 1 y %s.", row, group(lim.MaxQuantity)),
				Field:   FieldQuantity,
				Row:     row,
			}
		}
		if l.UnitPrice < 1 || l.UnitPrice > lim.MaxUnitPrice {
			return Rejected{
				Message: fmt.Sprintf("El precio unitario de la fila #%d debe estar entre 1 y %s.", row, group(lim.MaxUnitPrice)),
				Field:   FieldUnitPrice,
				Row:     row,
			}
		}

		items = append(items, PayloadItem{ReferenceID: ref, Quantity: qty, UnitPrice: l.UnitPrice})
	}

	total := c.Total()
	if total < 1 || total > lim.TotalCeiling {
		return Rejected{
			Message: fmt.Sprintf("El total de la venta no puede superar $ %s.", group(lim.TotalCeiling)),
			Field:   FieldTotal,
		}
	}

	return Accepted{Payload: Payload{Productos: items}, Total: total}
}

// group renders v with the same thousands separator the inputs use.
func group(v int64) string {
	return mask.Format(strconv.FormatInt(v, 10))
}
