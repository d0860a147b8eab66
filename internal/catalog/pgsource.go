package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Querier is the part of *pgxpool.Pool the source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// listProductsSQL reads the inventory tables directly. The source never writes.
const listProductsSQL = `SELECT p.id_producto, p.nombre_producto, p.descripcion_producto,
       p.precio_unitario, p.stock_actual, p.stock_minimo, p.stock_maximo,
       p.unidad_medida, u.nombre_unidad_medida,
       p.producto_categoria, c.nombre_categoria
  FROM productos p
  LEFT JOIN unidades_medida u ON u.id_unidad_medida = p.unidad_medida
  LEFT JOIN categorias c ON c.id_categoria = p.producto_categoria
 ORDER BY p.id_producto`

// PGSource lists products from the inventory database with a read-only query.
type PGSource struct {
	db Querier
}

// NewPGSource returns a source over db.
func NewPGSource(db Querier) *PGSource {
	return &PGSource{db: db}
}

// ListProducts implements Source.
func (s *PGSource) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("query productos: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p                       Product
			desc, unitName, catName pgtype.Text
			price                   pgtype.Numeric
			stockMax, unitID, catID pgtype.Int8
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &desc,
			&price, &p.StockActual, &p.StockMin, &stockMax,
			&unitID, &unitName,
			&catID, &catName,
		); err != nil {
			return nil, fmt.Errorf("scan producto: %w", err)
		}
		p.Description = desc.String
		p.UnitName = unitName.String
		p.CategoryName = catName.String
		p.StockMax = stockMax.Int64
		p.UnitID = unitID.Int64
		p.CategoryID = catID.Int64

		amount, err := numericToDecimal(price)
		if err != nil {
			return nil, fmt.Errorf("producto %d precio: %w", p.ID, err)
		}
		p.UnitPrice = Whole(amount)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate productos: %w", err)
	}
	return products, nil
}

// numericToDecimal converts a NUMERIC column. NULL reads as zero.
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil {
		return decimal.Zero, err
	}
	str, ok := val.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected numeric value %T", val)
	}
	return decimal.NewFromString(str)
}
