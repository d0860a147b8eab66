package handler

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/notice"
	"github.com/fitcompany/console/internal/upstream"
)

// Violations panel titles.
const (
	TitleNotEnough = "Productos sin stock suficiente:"
	TitleBelowMin  = "Productos bajo el mínimo:"
	TitleAboveMax  = "Productos que excederían el máximo:"
)

// failure is the body of a rejected write.
type failure struct {
	Error           string             `json:"error"`
	Code            string             `json:"code,omitempty"`
	Field           string             `json:"field,omitempty"`
	Row             int                `json:"row,omitempty"`
	ViolationsTitle string             `json:"violations_title,omitempty"`
	Violations      []notice.Violation `json:"violations,omitempty"`
}

// show posts f onto a form's notice board.
func (f failure) show(b *notice.Board) {
	if f.Violations != nil {
		b.SetViolations(f.ViolationsTitle, f.Violations)
	}
	b.Show(notice.KindError, f.Error)
}

// backendStatus is the status answered for a failed backend call: client
// errors pass through, the rest become 502.
func backendStatus(err error) int {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// errorCode is the backend code of err, for metrics.
func errorCode(err error) string {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			return apiErr.Code
		}
		return fmt.Sprintf("http_%d", apiErr.Status)
	}
	return "unreachable"
}

// plainFailure answers message, then raw, then fallback.
func plainFailure(err error, fallback string) failure {
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		zap.L().Error("backend call", zap.Error(err))
		return failure{Error: fallback}
	}
	return failure{Error: apiErr.UserMessage(fallback), Code: apiErr.Code}
}

// saleSaveFailure maps a failed sale create or update.
func saleSaveFailure(err error) failure {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == enum.CodeStockNotEnough && apiErr.Items != nil:
			return failure{
				Error:           "❌ No se puede registrar la venta: stock insuficiente.",
				Code:            apiErr.Code,
				ViolationsTitle: TitleNotEnough,
				Violations:      notEnoughRows(apiErr.Items),
			}
		case apiErr.Code == enum.CodeMinStockBreach && apiErr.Violations != nil:
			return failure{
				Error:           "❌ No se puede registrar la venta: hay productos que quedarían bajo el mínimo.",
				Code:            apiErr.Code,
				ViolationsTitle: TitleBelowMin,
				Violations:      typed(apiErr.Violations, enum.ViolationBelowMin),
			}
		}
	}
	return plainFailure(err, "Error al guardar la venta.")
}

// saleDeleteFailure maps a failed sale delete.
func saleDeleteFailure(err error) failure {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Code == enum.CodeMaxStockBreach && apiErr.Violations != nil {
		return failure{
			Error:           "❌ No se puede eliminar la venta: los productos listados superarían el stock máximo.",
			Code:            apiErr.Code,
			ViolationsTitle: TitleAboveMax,
			Violations:      typed(apiErr.Violations, enum.ViolationAboveMax),
		}
	}
	return plainFailure(err, "Error al eliminar venta.")
}

// notEnoughRows turns stock shortfalls into panel rows. resultante is the
// stock left after the sale, negative by the deficit.
func notEnoughRows(items []upstream.StockItem) []notice.Violation {
	rows := make([]notice.Violation, len(items))
	for i, it := range items {
		nombre := it.Nombre
		if nombre == "" {
			nombre = fmt.Sprintf("#%d", it.ProductoID)
		}
		actual, solicitado, faltan := it.Disponible, it.Solicitado, it.Deficit
		resultante := it.Disponible - it.Solicitado
		rows[i] = notice.Violation{
			ProductoID: it.ProductoID,
			Nombre:     nombre,
			Type:       enum.ViolationNotEnough,
			Actual:     &actual,
			Solicitado: &solicitado,
			Faltan:     &faltan,
			Resultante: &resultante,
		}
	}
	return rows
}

// typed fills in the row type where the backend left it out.
func typed(rows []notice.Violation, kind string) []notice.Violation {
	out := make([]notice.Violation, len(rows))
	for i, v := range rows {
		if v.Type == "" {
			v.Type = kind
		}
		out[i] = v
	}
	return out
}
