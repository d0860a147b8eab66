package rules

import (
	"fmt"
	"strings"
	"time"
)

// Purchase bounds.
const (
	MaxCantidad      = 999_999
	MaxCostoUnitario = 99_999_999
)

const isoDate = "2006-01-02"

// Compra is the body of POST /compras and PUT /compras/{id}.
type Compra struct {
	ProductoID    int64  `json:"producto_id"`
	Cantidad      int64  `json:"cantidad"`
	CostoUnitario int64  `json:"costo_unitario"`
	FechaCompra   string `json:"fecha_compra"`
}

// Check validates a purchase in form order.
func (c Compra) Check() *Violation {
	if c.ProductoID <= 0 {
		return violation("producto_id", "Debes seleccionar un producto.")
	}
	if c.Cantidad < 1 || c.Cantidad > MaxCantidad {
		return violation("cantidad", "La cantidad debe ser un entero entre 1 y 999.999.")
	}
	if c.CostoUnitario < 1 || c.CostoUnitario > MaxCostoUnitario {
		return violation("costo_unitario", "El costo unitario debe ser un entero entre 1 y 99.999.999.")
	}
	if strings.TrimSpace(c.FechaCompra) == "" {
		return violation("fecha_compra", "Debes seleccionar la fecha de compra.")
	}
	if _, err := time.Parse(isoDate, c.FechaCompra); err != nil {
		return violation("fecha_compra", "La fecha de compra no es válida.")
	}
	return nil
}

// DDMMYYYYToISO converts the backend's "dd/mm/yyyy" listing format to the
// "yyyy-mm-dd" value a date input expects. Malformed input yields "".
func DDMMYYYYToISO(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	var dd, mm, yyyy int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1]+" "+parts[2], "%d %d %d", &dd, &mm, &yyyy); err != nil {
		return ""
	}
	d := time.Date(yyyy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if d.Day() != dd || int(d.Month()) != mm || d.Year() != yyyy {
		return ""
	}
	return d.Format(isoDate)
}
