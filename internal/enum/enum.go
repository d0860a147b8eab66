package enum

// ── Group A: Backend error codes (returned by the inventory API) ──

const (
	CodeStockNotEnough = "STOCK_NOT_ENOUGH"
	CodeMinStockBreach = "MIN_STOCK_BREACH"
	CodeMaxStockBreach = "MAX_STOCK_BREACH"
)

// ── Group B: Alert codes ──

const (
	AlertStockBelowMin = "STOCK_BELOW_MIN"
	AlertStockAboveMax = "STOCK_ABOVE_MAX"
)

// ── Group C: Violation row types ──

const (
	ViolationNotEnough = "NOT_ENOUGH"
	ViolationBelowMin  = "BELOW_MIN"
	ViolationAboveMax  = "ABOVE_MAX"
)

// ── Group D: Forms (metric labels and permission lookups) ──

const (
	FormVenta              = "venta"
	FormCompra             = "compra"
	FormProducto           = "producto"
	FormRol                = "rol"
	FormUnidad             = "unidad"
	FormCategoria          = "categoria"
	FormPerfil             = "perfil"
	FormUsuario            = "usuario"
	FormTipoIdentificacion = "tipo_identificacion"
	FormPermiso            = "permiso"
)
