package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/lineitem"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/metrics"
	"github.com/fitcompany/console/internal/middleware"
	"github.com/fitcompany/console/internal/notice"
	"github.com/fitcompany/console/internal/session"
	"github.com/fitcompany/console/internal/upstream"
	"github.com/fitcompany/console/internal/validate"
)

// DuplicateProductMessage is shown when a product is picked on a second row.
const DuplicateProductMessage = "Este producto ya está seleccionado en otra fila."

// VentaBackend defines the backend calls needed by sale handlers.
// Satisfied by *upstream.Client; narrow interface for testability.
type VentaBackend interface {
	ListVentas(ctx context.Context) ([]map[string]interface{}, error)
	GetVenta(ctx context.Context, id int64) (upstream.VentaDetalle, error)
	SubmitVenta(ctx context.Context, id *int64, payload validate.Payload) (upstream.Result, error)
	DeleteVenta(ctx context.Context, id int64) (upstream.Result, error)
}

// VentaHandler serves the sale list and the server-held sale forms.
type VentaHandler struct {
	backend  VentaBackend
	catalog  catalog.Source
	sessions *session.Store
	limits   validate.Limits
	limit    func(http.Handler) http.Handler
}

// NewVentaHandler creates a new VentaHandler. limit wraps the write
// endpoints and may be nil.
func NewVentaHandler(backend VentaBackend, src catalog.Source, sessions *session.Store, limits validate.Limits, limit func(http.Handler) http.Handler) *VentaHandler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &VentaHandler{backend: backend, catalog: src, sessions: sessions, limits: limits, limit: limit}
}

// RegisterRoutes registers sale endpoints on the given Chi router.
// Expected to be mounted at /ventas inside the authenticated group.
func (h *VentaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(h.limit).Delete("/{id}", h.Delete)

	r.Post("/forms", h.Open)
	r.Route("/forms/{sid}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Delete("/", h.Cancel)
		r.Get("/catalog", h.Catalog)
		r.Post("/lines", h.AddLine)
		r.Delete("/lines/{i}", h.RemoveLine)
		r.Put("/lines/{i}/producto", h.SelectProduct)
		r.Put("/lines/{i}/cantidad", h.SetQuantity)
		r.With(h.limit).Post("/submit", h.Submit)
	})
}

// --- Request / Response types ---

type openFormRequest struct {
	EditID *int64 `json:"edit_id"`
}

type selectProductRequest struct {
	ProductoID *int64 `json:"id_producto"`
}

type quantityRequest struct {
	Text string `json:"text"`
}

type lineView struct {
	Index          int     `json:"index"`
	ProductoID     *int64  `json:"id_producto"`
	Nombre         string  `json:"nombre,omitempty"`
	Cantidad       string  `json:"cantidad"`
	PrecioUnitario int64   `json:"precio_unitario"`
	Subtotal       int64   `json:"subtotal"`
	Taken          []int64 `json:"taken"`
}

type formView struct {
	ID           uuid.UUID   `json:"id"`
	EditID       *int64      `json:"edit_id,omitempty"`
	Lines        []lineView  `json:"lines"`
	Total        int64       `json:"total"`
	TotalDisplay string      `json:"total_display"`
	CanAddLine   bool        `json:"can_add_line"`
	Notices      notice.View `json:"notices"`
}

type formRejection struct {
	failure
	Form formView `json:"form"`
}

type writeResponse struct {
	Message  string            `json:"message"`
	ID       *int64            `json:"id,omitempty"`
	Warnings []json.RawMessage `json:"warnings,omitempty"`
}

// viewOf renders sess. The caller holds sess's lock.
func viewOf(sess *session.Session) formView {
	lines := sess.Lines.Lines()
	v := formView{
		ID:         sess.ID,
		EditID:     sess.EditID,
		Lines:      make([]lineView, len(lines)),
		Total:      sess.Lines.Total(),
		CanAddLine: len(lines) < sess.Lines.Max(),
		Notices:    sess.Notices.View(),
	}
	v.TotalDisplay = mask.Format(strconv.FormatInt(v.Total, 10))
	for i, l := range lines {
		lv := lineView{
			Index:          i,
			ProductoID:     l.ReferenceID,
			Cantidad:       l.Quantity.Display,
			PrecioUnitario: l.UnitPrice,
			Subtotal:       sess.Lines.Subtotal(i),
			Taken:          sess.Lines.TakenReferences(i),
		}
		if l.ReferenceID != nil {
			lv.Nombre = sess.Catalog.Name(*l.ReferenceID)
		}
		if lv.Taken == nil {
			lv.Taken = []int64{}
		}
		v.Lines[i] = lv
	}
	return v
}

// --- Handlers ---

// List returns the stored sales.
func (h *VentaHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.backend.ListVentas(backendContext(r))
	if err != nil {
		writeJSON(w, backendStatus(err), plainFailure(err, "Error al cargar las ventas."))
		return
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Delete removes a stored sale.
func (h *VentaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	start := time.Now()
	res, err := h.backend.DeleteVenta(backendContext(r), id)
	if err != nil {
		metrics.RecordSubmission(enum.FormVenta, errorCode(err), time.Since(start))
		writeJSON(w, backendStatus(err), saleDeleteFailure(err))
		return
	}
	metrics.RecordSubmission(enum.FormVenta, "ok", time.Since(start))

	msg := res.Message
	if msg == "" {
		msg = "Venta eliminada correctamente"
	}
	writeJSON(w, http.StatusOK, writeResponse{Message: msg, Warnings: res.Warnings})
}

// Open starts a sale form, loading a stored sale when edit_id is given.
func (h *VentaHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req openFormRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	ctx := backendContext(r)
	snap, err := catalog.Load(ctx, h.catalog)
	if err != nil {
		zap.L().Error("load catalog", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Error al cargar los productos."})
		return
	}

	var items []lineitem.Item
	if req.EditID != nil {
		det, err := h.backend.GetVenta(ctx, *req.EditID)
		if err != nil {
			zap.L().Warn("load sale for edit", zap.Int64("id", *req.EditID), zap.Error(err))
			writeJSON(w, backendStatus(err), map[string]string{"error": "❌ No se pudo cargar la venta para editar"})
			return
		}
		for _, it := range det.Items() {
			items = append(items, lineitem.Item{ReferenceID: it.ProductoID, Quantity: it.Cantidad, UnitPrice: it.PrecioUnitario})
		}
	}

	sess := h.sessions.Create(claims.Identificacion, snap)
	sess.Lock()
	defer sess.Unlock()

	if req.EditID != nil {
		if err := sess.Lines.Load(items); err != nil {
			h.sessions.Delete(sess.ID)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fmt.Sprintf("La venta no puede tener más de %d ítems.", sess.Lines.Max())})
			return
		}
		id := *req.EditID
		sess.EditID = &id
	}

	writeJSON(w, http.StatusCreated, viewOf(sess))
}

// Show returns the current form.
func (h *VentaHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sess *session.Session) {
		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// Catalog returns the products the form prices from.
func (h *VentaHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sess *session.Session) {
		writeJSON(w, http.StatusOK, sess.Catalog.Products())
	})
}

// Cancel discards the form.
func (h *VentaHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sess *session.Session) {
		h.sessions.Delete(sess.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

// AddLine appends an empty row. At the row limit the form is returned unchanged.
func (h *VentaHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sess *session.Session) {
		sess.Lines.AddLine()
		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// RemoveLine deletes row i.
func (h *VentaHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.withLine(w, r, func(sess *session.Session, i int) {
		if err := sess.Lines.RemoveLine(i); err != nil {
			writeLineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// SelectProduct picks a product for row i. Picking one already used on
// another row empties row i and posts an error notice.
func (h *VentaHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	h.withLine(w, r, func(sess *session.Session, i int) {
		var req selectProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		if req.ProductoID == nil || *req.ProductoID <= 0 {
			if err := sess.Lines.ClearReference(i); err != nil {
				writeLineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, viewOf(sess))
			return
		}

		res, err := sess.Lines.SelectReference(i, *req.ProductoID, sess.Catalog)
		if err != nil {
			writeLineError(w, err)
			return
		}
		if res.Duplicate {
			sess.Notices.Show(notice.KindError, DuplicateProductMessage)
		}
		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// SetQuantity masks the typed quantity of row i.
func (h *VentaHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	h.withLine(w, r, func(sess *session.Session, i int) {
		var req quantityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if _, err := sess.Lines.SetQuantity(i, req.Text); err != nil {
			writeLineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// Submit validates the form and forwards it. On success the form is closed.
func (h *VentaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sess *session.Session) {
		outcome := validate.Validate(sess.Lines, h.limits)
		rejected, ok := outcome.(validate.Rejected)
		if ok {
			metrics.RecordValidation(enum.FormVenta, false)
			f := failure{Error: "❌ " + rejected.Message, Field: rejected.Field, Row: rejected.Row}
			f.show(sess.Notices)
			writeJSON(w, http.StatusUnprocessableEntity, formRejection{failure: f, Form: viewOf(sess)})
			return
		}
		accepted := outcome.(validate.Accepted)
		metrics.RecordValidation(enum.FormVenta, true)

		sess.Notices.ClearViolations()
		start := time.Now()
		res, err := h.backend.SubmitVenta(backendContext(r), sess.EditID, accepted.Payload)
		if err != nil {
			metrics.RecordSubmission(enum.FormVenta, errorCode(err), time.Since(start))
			f := saleSaveFailure(err)
			f.show(sess.Notices)
			writeJSON(w, backendStatus(err), formRejection{failure: f, Form: viewOf(sess)})
			return
		}
		metrics.RecordSubmission(enum.FormVenta, "ok", time.Since(start))

		msg := res.Message
		if msg == "" {
			if sess.EditID != nil {
				msg = "Venta actualizada"
			} else {
				msg = fmt.Sprintf("Venta registrada (ID: %s)", idText(res.ID))
			}
		}
		if len(res.Warnings) > 0 {
			zap.L().Warn("sale saved with warnings", zap.Int("warnings", len(res.Warnings)))
		}
		sess.Lines.Reset()
		h.sessions.Delete(sess.ID)
		writeJSON(w, http.StatusOK, writeResponse{Message: msg, ID: res.ID, Warnings: res.Warnings})
	})
}

// --- Helpers ---

// withSession resolves {sid} for the caller and runs fn under the session lock.
func (h *VentaHandler) withSession(w http.ResponseWriter, r *http.Request, fn func(*session.Session)) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form ID"})
		return
	}
	sess, err := h.sessions.Get(sid, claims.Identificacion)
	if err != nil {
		if errors.Is(err, session.ErrNotOwner) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "form belongs to another user"})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "form not found"})
		return
	}

	sess.Lock()
	defer sess.Unlock()
	if sess.Closed() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "form not found"})
		return
	}
	fn(sess)
}

// withLine also parses the {i} row index.
func (h *VentaHandler) withLine(w http.ResponseWriter, r *http.Request, fn func(*session.Session, int)) {
	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return
	}
	h.withSession(w, r, func(sess *session.Session) { fn(sess, i) })
}

func writeLineError(w http.ResponseWriter, err error) {
	if errors.Is(err, lineitem.ErrIndexOutOfRange) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "line not found"})
		return
	}
	zap.L().Error("line update", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func idText(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
