package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/validate"
)

// --- Productos ---

// productRow is a product as the backend sends it. Numeric columns may come
// quoted, so they decode through decimal.
type productRow struct {
	ID           int64               `json:"id_producto"`
	Nombre       string              `json:"nombre_producto"`
	Descripcion  *string             `json:"descripcion_producto"`
	Precio       decimal.NullDecimal `json:"precio_unitario"`
	StockActual  decimal.NullDecimal `json:"stock_actual"`
	StockMinimo  decimal.NullDecimal `json:"stock_minimo"`
	StockMaximo  decimal.NullDecimal `json:"stock_maximo"`
	UnidadID     *int64              `json:"unidad_medida"`
	UnidadNombre *string             `json:"nombre_unidad_medida"`
	CategoriaID  *int64              `json:"categoria"`
	Categoria    *string             `json:"nombre_categoria"`
}

func whole(d decimal.NullDecimal) int64 {
	if !d.Valid {
		return 0
	}
	return catalog.Whole(d.Decimal)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (r productRow) product() catalog.Product {
	return catalog.Product{
		ID:           r.ID,
		Name:         r.Nombre,
		Description:  deref(r.Descripcion),
		UnitPrice:    whole(r.Precio),
		StockActual:  whole(r.StockActual),
		StockMin:     whole(r.StockMinimo),
		StockMax:     whole(r.StockMaximo),
		UnitID:       deref(r.UnidadID),
		UnitName:     deref(r.UnidadNombre),
		CategoryID:   deref(r.CategoriaID),
		CategoryName: deref(r.Categoria),
	}
}

// ListProducts implements catalog.Source over GET /productos.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var rows []productRow
	if err := c.Do(ctx, http.MethodGet, "/productos", nil, &rows); err != nil {
		return nil, err
	}
	products := make([]catalog.Product, len(rows))
	for i, r := range rows {
		products[i] = r.product()
	}
	return products, nil
}

// --- Ventas ---

// VentaLinea is one stored line of a sale.
type VentaLinea struct {
	ProductoID     int64               `json:"id_producto"`
	Cantidad       decimal.NullDecimal `json:"cantidad"`
	PrecioUnitario decimal.NullDecimal `json:"precio_unitario"`
	Nombre         string              `json:"nombre,omitempty"`
}

// VentaDetalle is the response of GET /ventas/{id}.
type VentaDetalle struct {
	Productos []VentaLinea `json:"productos"`
}

// Items converts the detail to collection rows.
func (v VentaDetalle) Items() []VentaItem {
	out := make([]VentaItem, len(v.Productos))
	for i, l := range v.Productos {
		out[i] = VentaItem{
			ProductoID:     l.ProductoID,
			Cantidad:       whole(l.Cantidad),
			PrecioUnitario: whole(l.PrecioUnitario),
		}
	}
	return out
}

// VentaItem is a stored line with whole-number amounts.
type VentaItem struct {
	ProductoID     int64
	Cantidad       int64
	PrecioUnitario int64
}

// ListVentas returns the sales list as the backend sends it.
func (c *Client) ListVentas(ctx context.Context) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := c.Do(ctx, http.MethodGet, "/ventas", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetVenta loads a stored sale for editing.
func (c *Client) GetVenta(ctx context.Context, id int64) (VentaDetalle, error) {
	var v VentaDetalle
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/ventas/%d", id), nil, &v); err != nil {
		return VentaDetalle{}, err
	}
	return v, nil
}

// SubmitVenta creates a sale, or replaces sale id when id is non-nil.
func (c *Client) SubmitVenta(ctx context.Context, id *int64, payload validate.Payload) (Result, error) {
	if id == nil {
		return c.Write(ctx, http.MethodPost, "/ventas", payload)
	}
	return c.Write(ctx, http.MethodPut, fmt.Sprintf("/ventas/%d", *id), payload)
}

// DeleteVenta removes a sale.
func (c *Client) DeleteVenta(ctx context.Context, id int64) (Result, error) {
	return c.Write(ctx, http.MethodDelete, fmt.Sprintf("/ventas/%d", id), nil)
}

// --- Compras ---

// ListCompras returns the purchase list as the backend sends it.
func (c *Client) ListCompras(ctx context.Context) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := c.Do(ctx, http.MethodGet, "/compras", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SubmitCompra creates a purchase, or replaces purchase id when id is non-nil.
func (c *Client) SubmitCompra(ctx context.Context, id *int64, body interface{}) (Result, error) {
	if id == nil {
		return c.Write(ctx, http.MethodPost, "/compras", body)
	}
	return c.Write(ctx, http.MethodPut, fmt.Sprintf("/compras/%d", *id), body)
}

// DeleteCompra removes a purchase.
func (c *Client) DeleteCompra(ctx context.Context, id int64) (Result, error) {
	return c.Write(ctx, http.MethodDelete, fmt.Sprintf("/compras/%d", id), nil)
}
