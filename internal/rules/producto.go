package rules

// Product bounds.
const (
	MaxNombreProducto      = 120
	MaxDescripcionProducto = 255
	MaxPrecioUnitario      = 99_999_999
)

// Producto is the body of POST /productos and PUT /productos/{id}.
type Producto struct {
	Nombre      string `json:"nombre_producto"`
	Descripcion string `json:"descripcion_producto"`
	Precio      int64  `json:"precio_unitario"`
	StockActual int64  `json:"stock_actual"`
	StockMinimo int64  `json:"stock_minimo"`
	StockMaximo int64  `json:"stock_maximo"`
	UnidadID    int64  `json:"unidad_medida"`
	CategoriaID int64  `json:"producto_categoria"`
}

// Normalize collapses whitespace in the text fields, as they are sent.
func (p Producto) Normalize() Producto {
	p.Nombre = Collapse(p.Nombre)
	p.Descripcion = Collapse(p.Descripcion)
	return p
}

// Check validates a normalized product.
func (p Producto) Check() *Violation {
	if p.Nombre == "" {
		return violation("nombre_producto", "El nombre es obligatorio.")
	}
	if length(p.Nombre) > MaxNombreProducto {
		return violation("nombre_producto", "El nombre admite máximo 120 caracteres.")
	}
	if length(p.Descripcion) > MaxDescripcionProducto {
		return violation("descripcion_producto", "La descripción admite máximo 255 caracteres.")
	}
	if p.Precio < 1 || p.Precio > MaxPrecioUnitario {
		return violation("precio_unitario", "El precio debe estar entre 1 y 99.999.999.")
	}
	if p.UnidadID <= 0 {
		return violation("unidad_medida", "Debes seleccionar la unidad de medida.")
	}
	if p.CategoriaID <= 0 {
		return violation("producto_categoria", "Debes seleccionar la categoría.")
	}
	return CheckStocks(p.StockActual, p.StockMinimo, p.StockMaximo)
}

// CheckStocks enforces max > 0 and min <= actual <= max.
func CheckStocks(actual, min, max int64) *Violation {
	if max <= 0 {
		return violation("stock_maximo", "El stock máximo debe ser mayor a cero.")
	}
	if actual < 0 || min < 0 {
		return violation("stock_actual", "Stock actual y mínimo deben ser números válidos.")
	}
	if actual < min {
		return violation("stock_actual", "El stock actual no puede ser menor que el stock mínimo.")
	}
	if actual > max {
		return violation("stock_actual", "El stock actual no puede ser mayor que el stock máximo.")
	}
	return nil
}

// IsOutOfRange flags a listed product whose stock sits below its minimum or,
// when a maximum is set, above it.
func IsOutOfRange(actual, min, max int64) bool {
	return actual < min || (max > 0 && actual > max)
}
