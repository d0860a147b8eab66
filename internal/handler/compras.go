package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/metrics"
	"github.com/fitcompany/console/internal/rules"
	"github.com/fitcompany/console/internal/upstream"
)

// CompraBackend defines the backend calls needed by purchase handlers.
// Satisfied by *upstream.Client; narrow interface for testability.
type CompraBackend interface {
	ListCompras(ctx context.Context) ([]map[string]interface{}, error)
	SubmitCompra(ctx context.Context, id *int64, body interface{}) (upstream.Result, error)
	DeleteCompra(ctx context.Context, id int64) (upstream.Result, error)
}

// CompraHandler validates and forwards single-line purchases.
type CompraHandler struct {
	backend CompraBackend
	fields  mask.Fields
	limit   func(http.Handler) http.Handler
}

// NewCompraHandler creates a new CompraHandler. Quantity and cost inputs are
// masked with the "cantidad" and "costo_unitario" fields, or their defaults
// when fields lacks them.
func NewCompraHandler(backend CompraBackend, fields mask.Fields, limit func(http.Handler) http.Handler) *CompraHandler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &CompraHandler{backend: backend, fields: fields, limit: limit}
}

// RegisterRoutes registers purchase endpoints on the given Chi router.
// Expected to be mounted at /compras inside the authenticated group.
func (h *CompraHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/validate", h.Validate)
	r.With(h.limit).Post("/", h.Create)
	r.With(h.limit).Put("/{id}", h.Update)
	r.With(h.limit).Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

// compraRequest carries the inputs as typed; amounts may include separators.
type compraRequest struct {
	ProductoID    int64      `json:"producto_id"`
	Cantidad      typedInput `json:"cantidad"`
	CostoUnitario typedInput `json:"costo_unitario"`
	FechaCompra   string     `json:"fecha_compra"`
}

func (h *CompraHandler) toCompra(req compraRequest) (rules.Compra, *rules.Violation) {
	c := rules.Compra{ProductoID: req.ProductoID, FechaCompra: req.FechaCompra}
	if c.ProductoID <= 0 {
		return c, c.Check()
	}
	var v *rules.Violation
	if c.Cantidad, v = amount(h.fields, mask.FieldCantidad, req.Cantidad); v != nil {
		return c, v
	}
	if c.CostoUnitario, v = amount(h.fields, mask.FieldCostoUnitario, req.CostoUnitario); v != nil {
		return c, v
	}
	return c, c.Check()
}

// decode reads and validates the body. It answers the request itself and
// returns false when the purchase is not acceptable.
func (h *CompraHandler) decode(w http.ResponseWriter, r *http.Request) (rules.Compra, bool) {
	var req compraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return rules.Compra{}, false
	}
	c, v := h.toCompra(req)
	if v != nil {
		metrics.RecordValidation(enum.FormCompra, false)
		writeJSON(w, http.StatusUnprocessableEntity, failure{Error: v.Message, Field: v.Field})
		return rules.Compra{}, false
	}
	metrics.RecordValidation(enum.FormCompra, true)
	return c, true
}

// --- Handlers ---

// List returns the stored purchases. Each row gains fecha_iso, the
// dd/mm/yyyy date as a date-input value.
func (h *CompraHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.backend.ListCompras(backendContext(r))
	if err != nil {
		writeJSON(w, backendStatus(err), plainFailure(err, "Error al cargar las compras."))
		return
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	for _, row := range rows {
		if fecha, ok := row["fecha"].(string); ok {
			row["fecha_iso"] = rules.DDMMYYYYToISO(fecha)
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Validate checks a purchase without sending it.
func (h *CompraHandler) Validate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "body": c})
}

// Create validates and forwards a new purchase.
func (h *CompraHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.save(w, r, nil, c)
}

// Update validates and forwards changes to purchase {id}.
func (h *CompraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase ID"})
		return
	}
	c, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.save(w, r, &id, c)
}

func (h *CompraHandler) save(w http.ResponseWriter, r *http.Request, id *int64, c rules.Compra) {
	start := time.Now()
	res, err := h.backend.SubmitCompra(backendContext(r), id, c)
	if err != nil {
		metrics.RecordSubmission(enum.FormCompra, errorCode(err), time.Since(start))
		writeJSON(w, backendStatus(err), plainFailure(err, "Error al guardar la compra."))
		return
	}
	metrics.RecordSubmission(enum.FormCompra, "ok", time.Since(start))

	msg := res.Message
	if msg == "" {
		if id != nil {
			msg = "Compra actualizada"
		} else {
			msg = fmt.Sprintf("Compra registrada (ID: %s)", idText(res.ID))
		}
	}
	writeJSON(w, http.StatusOK, writeResponse{Message: msg, ID: res.ID, Warnings: res.Warnings})
}

// Delete removes purchase {id}.
func (h *CompraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase ID"})
		return
	}

	start := time.Now()
	res, err := h.backend.DeleteCompra(backendContext(r), id)
	if err != nil {
		metrics.RecordSubmission(enum.FormCompra, errorCode(err), time.Since(start))
		writeJSON(w, backendStatus(err), plainFailure(err, "Error al eliminar compra."))
		return
	}
	metrics.RecordSubmission(enum.FormCompra, "ok", time.Since(start))

	msg := res.Message
	if msg == "" {
		msg = "Compra eliminada correctamente"
	}
	writeJSON(w, http.StatusOK, writeResponse{Message: msg, Warnings: res.Warnings})
}
