package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/metrics"
	"github.com/fitcompany/console/internal/rules"
	"github.com/fitcompany/console/internal/upstream"
)

// ProtectedRoleMessage answers edits and deletes of the administrator role.
const ProtectedRoleMessage = "El rol administrador está protegido y no se puede modificar ni eliminar."

const maxFormBody = 1 << 20

// FormBackend is the generic backend access used by the record forms.
// Satisfied by *upstream.Client; narrow interface for testability.
type FormBackend interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
	Write(ctx context.Context, method, path string, body interface{}) (upstream.Result, error)
}

// FormsHandler validates and forwards the single-record forms: productos,
// roles, unidades de medida, categorías, perfiles, usuarios, tipos de
// identificación and permisos.
type FormsHandler struct {
	backend FormBackend
	fields  mask.Fields
	limit   func(http.Handler) http.Handler
	guard   func(form string) func(http.Handler) http.Handler
	specs   []formSpec
}

// NewFormsHandler creates a new FormsHandler. limit wraps the write
// endpoints and may be nil.
func NewFormsHandler(backend FormBackend, fields mask.Fields, limit func(http.Handler) http.Handler) *FormsHandler {
	if fields == nil {
		fields = mask.DefaultFields()
	}
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &FormsHandler{backend: backend, fields: fields, limit: limit, specs: formSpecs()}
}

// Guard installs per-form middleware, typically a permission check keyed by
// the form name. It must be called before RegisterRoutes.
func (h *FormsHandler) Guard(g func(form string) func(http.Handler) http.Handler) {
	h.guard = g
}

// RegisterRoutes registers one route group per form, named after its backend path.
func (h *FormsHandler) RegisterRoutes(r chi.Router) {
	for _, spec := range h.specs {
		spec := spec
		r.Route("/"+spec.path, func(r chi.Router) {
			if h.guard != nil {
				r.Use(h.guard(spec.form))
			}
			r.Get("/", h.proxyGet(spec, ""))
			for _, sub := range spec.gets {
				r.Get("/"+sub, h.proxyGet(spec, sub))
			}
			r.Post("/validate", h.validate(spec))
			r.With(h.limit).Post("/", h.create(spec))
			if pattern := keyPattern(spec.keys); pattern != "" {
				r.With(h.limit).Put(pattern, h.update(spec))
				r.With(h.limit).Delete(pattern, h.remove(spec))
			}
			for _, a := range spec.actions {
				r.With(h.limit).Patch("/{k1}/"+a.name, h.act(spec, a))
			}
		})
	}
}

// --- Form table ---

type formMessages struct {
	Created        string
	Updated        string
	Deleted        string
	SaveFallback   string
	DeleteFallback string
	// DeleteCodes maps a backend code on a 409 delete to its default message.
	DeleteCodes map[string]string
}

type formAction struct {
	name     string
	ok       string
	fallback string
}

// prepareFunc decodes and normalizes a body. A nil violation means the
// returned body is ready to send.
type prepareFunc func(fields mask.Fields, raw []byte, editing bool) (interface{}, *rules.Violation, error)

// precheckFunc runs a backend lookup before saving; key is nil on create.
type precheckFunc func(ctx context.Context, b FormBackend, body interface{}, key []string) *rules.Violation

type formSpec struct {
	form     string
	path     string
	keys     int
	gets     []string
	prepare  prepareFunc
	precheck precheckFunc
	protect  bool
	actions  []formAction
	inUse    func(d inUseDetail, message string) (failure, bool)
	msgs     formMessages
}

func formSpecs() []formSpec {
	return []formSpec{
		{
			form: enum.FormProducto, path: "productos", keys: 1,
			prepare: prepareProducto,
			msgs: formMessages{
				Created: "Producto creado.", Updated: "Producto actualizado.",
				Deleted:      "Producto eliminado correctamente.",
				SaveFallback: "Error al guardar producto.", DeleteFallback: "No se pudo eliminar el producto.",
			},
		},
		{
			form: enum.FormRol, path: "roles", keys: 1,
			prepare: prepareNamed(rules.Rol),
			protect: true,
			msgs: formMessages{
				Created: "Rol creado.", Updated: "Rol actualizado.",
				Deleted:      "Rol eliminado correctamente.",
				SaveFallback: "Error al guardar el rol.", DeleteFallback: "No se pudo eliminar el rol.",
			},
		},
		{
			form: enum.FormUnidad, path: "unidades-medida", keys: 1,
			prepare: prepareNamed(rules.Unidad),
			inUse:   unidadInUse,
			msgs: formMessages{
				Created: "Unidad creada", Updated: "Unidad actualizada",
				Deleted:      "Unidad eliminada correctamente.",
				SaveFallback: "Error al guardar la unidad.", DeleteFallback: "Error al eliminar.",
			},
		},
		{
			form: enum.FormCategoria, path: "categorias", keys: 1,
			prepare: prepareNamed(rules.Categoria),
			inUse:   categoriaInUse,
			msgs: formMessages{
				Created: "Categoría creada.", Updated: "Categoría actualizada.",
				Deleted:      "Categoría eliminada correctamente.",
				SaveFallback: "Error al guardar la categoría.", DeleteFallback: "Error eliminando la categoría.",
			},
		},
		{
			form: enum.FormPerfil, path: "perfiles", keys: 2,
			prepare: preparePerfil,
			msgs: formMessages{
				Created: "Perfil creado.", Updated: "Perfil actualizado.",
				Deleted:      "Perfil eliminado.",
				SaveFallback: "Error al guardar el perfil.", DeleteFallback: "Error al eliminar el perfil.",
				DeleteCodes: map[string]string{
					"PROFILE_PROTECTED": "Este perfil está protegido y no se puede eliminar.",
					"PROFILE_IN_USE":    "No se puede eliminar: el perfil está en uso.",
				},
			},
		},
		{
			form: enum.FormUsuario, path: "usuarios", keys: 2,
			prepare: prepareUsuario,
			msgs: formMessages{
				Created: "Usuario creado.", Updated: "Usuario actualizado.",
				Deleted:      "Usuario eliminado.",
				SaveFallback: "Error al guardar el usuario.", DeleteFallback: "No se pudo eliminar el usuario.",
			},
		},
		{
			form: enum.FormTipoIdentificacion, path: "tipos-identificacion", keys: 1,
			gets:     []string{"exists"},
			prepare:  prepareTipo,
			precheck: tipoExists,
			inUse:    tipoInUse,
			actions: []formAction{
				{name: "desactivar", ok: "Desactivado correctamente", fallback: "No se pudo desactivar."},
				{name: "activar", ok: "Activado correctamente", fallback: "No se pudo activar."},
			},
			msgs: formMessages{
				Created: "Tipo agregado", Updated: "Tipo actualizado",
				Deleted:      "Eliminado correctamente",
				SaveFallback: "Error al guardar.", DeleteFallback: "Operación no permitida.",
			},
		},
		{
			form: enum.FormPermiso, path: "permisos",
			prepare: preparePermiso,
			msgs: formMessages{
				Created:      "Permiso asignado correctamente",
				SaveFallback: "Error al asignar permiso",
			},
		},
	}
}

// --- Body preparation ---

// typedInput is an input value sent either as text or as a JSON number.
// Text goes through the field mask; a number must be a non-negative integer.
type typedInput struct {
	text    string
	invalid bool
}

func (t *typedInput) UnmarshalJSON(b []byte) error {
	*t = typedInput{}
	switch {
	case string(b) == "null":
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &t.text)
	case strings.Trim(string(b), "0123456789") == "":
		t.text = string(b)
	default:
		t.invalid = true
	}
	return nil
}

// amount masks in with the field id. Empty input is 0; input the field
// cannot hold is a violation instead of being cut to fit.
func amount(fields mask.Fields, id string, in typedInput) (int64, *rules.Violation) {
	f, ok := fields.Get(id)
	if !ok {
		f = mask.DefaultFields()[id]
	}
	if in.invalid {
		return 0, rules.AmountViolation(id)
	}
	s, err := f.Parse(in.text)
	if err != nil {
		return 0, rules.AmountViolation(id)
	}
	if s.Empty() {
		return 0, nil
	}
	v, _ := s.Value()
	return v, nil
}

type productoRequest struct {
	Nombre      string     `json:"nombre_producto"`
	Descripcion string     `json:"descripcion_producto"`
	Precio      typedInput `json:"precio_unitario"`
	StockActual typedInput `json:"stock_actual"`
	StockMinimo typedInput `json:"stock_minimo"`
	StockMaximo typedInput `json:"stock_maximo"`
	UnidadID    int64      `json:"unidad_medida"`
	CategoriaID int64      `json:"producto_categoria"`
}

func prepareProducto(fields mask.Fields, raw []byte, _ bool) (interface{}, *rules.Violation, error) {
	var req productoRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, nil, err
	}
	p := rules.Producto{
		Nombre:      req.Nombre,
		Descripcion: req.Descripcion,
		UnidadID:    req.UnidadID,
		CategoriaID: req.CategoriaID,
	}.Normalize()

	amounts := []struct {
		id  string
		in  typedInput
		dst *int64
	}{
		{mask.FieldPrecio, req.Precio, &p.Precio},
		{mask.FieldStockActual, req.StockActual, &p.StockActual},
		{mask.FieldStockMinimo, req.StockMinimo, &p.StockMinimo},
		{mask.FieldStockMaximo, req.StockMaximo, &p.StockMaximo},
	}
	for _, a := range amounts {
		v, bad := amount(fields, a.id, a.in)
		if bad != nil {
			return p, bad, nil
		}
		*a.dst = v
	}
	return p, p.Check(), nil
}

func prepareNamed(kind rules.NamedKind) prepareFunc {
	return func(_ mask.Fields, raw []byte, _ bool) (interface{}, *rules.Violation, error) {
		var req map[string]interface{}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, nil, err
		}
		name, _ := req[kind.NameField].(string)
		desc, _ := req[kind.DescField].(string)
		n, v := kind.Check(name, desc)
		return kind.Body(n), v, nil
	}
}

func preparePerfil(_ mask.Fields, raw []byte, _ bool) (interface{}, *rules.Violation, error) {
	var p rules.Perfil
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	p = p.Normalize()
	return p, p.Check(), nil
}

func prepareUsuario(_ mask.Fields, raw []byte, editing bool) (interface{}, *rules.Violation, error) {
	var u rules.Usuario
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, err
	}
	u = u.Normalize()
	return u, u.Check(editing), nil
}

type tipoBody struct {
	Descripcion string `json:"descripcion"`
}

func prepareTipo(_ mask.Fields, raw []byte, _ bool) (interface{}, *rules.Violation, error) {
	var req tipoBody
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, nil, err
	}
	d, v := rules.TipoIdentificacion(req.Descripcion)
	return tipoBody{Descripcion: d}, v, nil
}

func preparePermiso(_ mask.Fields, raw []byte, _ bool) (interface{}, *rules.Violation, error) {
	var p rules.Permiso
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	return p, p.Check(), nil
}

// tipoExists rejects a description another identification type already
// uses. A failed lookup does not block the save.
func tipoExists(ctx context.Context, b FormBackend, body interface{}, key []string) *rules.Violation {
	t, ok := body.(tipoBody)
	if !ok {
		return nil
	}
	q := url.Values{"descripcion": {t.Descripcion}}
	if len(key) > 0 {
		q.Set("excludeId", key[0])
	}
	var res struct {
		Exists bool `json:"exists"`
	}
	if err := b.Do(ctx, http.MethodGet, "/tipos-identificacion/exists?"+q.Encode(), nil, &res); err != nil {
		return nil
	}
	if res.Exists {
		return &rules.Violation{Field: "descripcion", Message: "Ya existe un tipo de identificación con esa descripción."}
	}
	return nil
}

// --- In-use conflicts ---

// inUseDetail is the extra payload of a 409 on delete.
type inUseDetail struct {
	RequiresUpdateProducts bool     `json:"requiresUpdateProducts"`
	Productos              []string `json:"productos"`
	Truncated              bool     `json:"truncated"`
	TotalProductos         int      `json:"totalProductos"`
	RequiresDeactivation   bool     `json:"requiresDeactivation"`
	Usuarios               int      `json:"usuarios"`
	Ventas                 int      `json:"ventas"`
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, n := range items {
		lines[i] = "• " + n
	}
	return strings.Join(lines, "\n")
}

func unidadInUse(d inUseDetail, _ string) (failure, bool) {
	if !d.RequiresUpdateProducts {
		return failure{}, false
	}
	suffix := ""
	if d.Truncated {
		suffix = fmt.Sprintf("\n\n(Se muestran solo algunos; total: %d)", d.TotalProductos)
	}
	msg := fmt.Sprintf("La unidad está en uso por %d producto(s).\n", d.TotalProductos) +
		"Debes editar esos productos y cambiar la unidad antes de eliminarla.\n\n" +
		bulletList(d.Productos) + suffix
	return failure{Error: msg}, true
}

func categoriaInUse(d inUseDetail, message string) (failure, bool) {
	if !d.RequiresUpdateProducts {
		return failure{}, false
	}
	base := message
	if base == "" {
		base = "No se puede eliminar la categoría porque está en uso por producto(s). Debes editar esos productos y cambiar la categoría antes de eliminarla."
	}
	suffix := ""
	if d.Truncated && d.TotalProductos > 0 {
		suffix = fmt.Sprintf("\n\n(Se muestran solo algunos; total: %d)", d.TotalProductos)
	}
	return failure{Error: base + "\n\n" + bulletList(d.Productos) + suffix}, true
}

func tipoInUse(d inUseDetail, _ string) (failure, bool) {
	if !d.RequiresDeactivation {
		return failure{}, false
	}
	var parts []string
	if d.Usuarios > 0 {
		parts = append(parts, fmt.Sprintf("%d usuario(s)", d.Usuarios))
	}
	if d.Ventas > 0 {
		parts = append(parts, fmt.Sprintf("%d venta(s)", d.Ventas))
	}
	detail := strings.Join(parts, " y ")
	if detail == "" {
		detail = "registros relacionados"
	}
	msg := fmt.Sprintf("Este tipo está en uso por %s.\n\n¿Deseas DESACTIVARLO para que no se use en nuevos registros?", detail)
	return failure{Error: msg, Code: "REQUIRES_DEACTIVATION"}, true
}

func deleteFailure(spec formSpec, err error) failure {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		if msg, ok := spec.msgs.DeleteCodes[apiErr.Code]; ok {
			if apiErr.Message != "" {
				msg = apiErr.Message
			}
			return failure{Error: msg, Code: apiErr.Code}
		}
		if spec.inUse != nil {
			var d inUseDetail
			if json.Unmarshal(apiErr.Body, &d) == nil {
				if f, ok := spec.inUse(d, apiErr.Message); ok {
					return f
				}
			}
		}
	}
	return plainFailure(err, spec.msgs.DeleteFallback)
}

// --- Handlers ---

func keyPattern(keys int) string {
	switch keys {
	case 1:
		return "/{k1}"
	case 2:
		return "/{k1}/{k2}"
	}
	return ""
}

// rowKey reads the key segments of the current route.
func rowKey(r *http.Request, keys int) ([]string, bool) {
	key := make([]string, 0, keys)
	for i := 1; i <= keys; i++ {
		seg := strings.TrimSpace(chi.URLParam(r, fmt.Sprintf("k%d", i)))
		if seg == "" {
			return nil, false
		}
		key = append(key, seg)
	}
	return key, true
}

func rowPath(spec formSpec, key []string) string {
	var b strings.Builder
	b.WriteString("/" + spec.path)
	for _, seg := range key {
		b.WriteString("/" + url.PathEscape(seg))
	}
	return b.String()
}

// proxyGet forwards a read, query string included.
func (h *FormsHandler) proxyGet(spec formSpec, sub string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := "/" + spec.path
		if sub != "" {
			path += "/" + sub
		}
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		var out json.RawMessage
		if err := h.backend.Do(backendContext(r), http.MethodGet, path, nil, &out); err != nil {
			writeJSON(w, backendStatus(err), plainFailure(err, "Error al cargar los datos."))
			return
		}
		if out == nil {
			out = json.RawMessage("null")
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// read decodes and prepares the body, answering the request itself on failure.
func (h *FormsHandler) read(w http.ResponseWriter, r *http.Request, spec formSpec, key []string) (interface{}, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	body, v, err := spec.prepare(h.fields, raw, key != nil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	if v == nil && spec.precheck != nil {
		v = spec.precheck(backendContext(r), h.backend, body, key)
	}
	if v != nil {
		metrics.RecordValidation(spec.form, false)
		writeJSON(w, http.StatusUnprocessableEntity, failure{Error: v.Message, Field: v.Field})
		return nil, false
	}
	metrics.RecordValidation(spec.form, true)
	return body, true
}

func (h *FormsHandler) validate(spec formSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editing := r.URL.Query().Get("editing") == "true"
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		body, v, err := spec.prepare(h.fields, raw, editing)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if v != nil {
			metrics.RecordValidation(spec.form, false)
			writeJSON(w, http.StatusUnprocessableEntity, failure{Error: v.Message, Field: v.Field})
			return
		}
		metrics.RecordValidation(spec.form, true)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "body": body})
	}
}

func (h *FormsHandler) create(spec formSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := h.read(w, r, spec, nil)
		if !ok {
			return
		}
		h.send(w, r, spec, http.MethodPost, "/"+spec.path, body, spec.msgs.Created)
	}
}

func (h *FormsHandler) update(spec formSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := rowKey(r, spec.keys)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
			return
		}
		if !h.allowed(w, r, spec, key) {
			return
		}
		body, ok := h.read(w, r, spec, key)
		if !ok {
			return
		}
		h.send(w, r, spec, http.MethodPut, rowPath(spec, key), body, spec.msgs.Updated)
	}
}

func (h *FormsHandler) send(w http.ResponseWriter, r *http.Request, spec formSpec, method, path string, body interface{}, okMsg string) {
	start := time.Now()
	res, err := h.backend.Write(backendContext(r), method, path, body)
	if err != nil {
		metrics.RecordSubmission(spec.form, errorCode(err), time.Since(start))
		writeJSON(w, backendStatus(err), plainFailure(err, spec.msgs.SaveFallback))
		return
	}
	metrics.RecordSubmission(spec.form, "ok", time.Since(start))
	msg := res.Message
	if msg == "" {
		msg = okMsg
	}
	writeJSON(w, http.StatusOK, writeResponse{Message: msg, ID: res.ID, Warnings: res.Warnings})
}

func (h *FormsHandler) remove(spec formSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := rowKey(r, spec.keys)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
			return
		}
		if !h.allowed(w, r, spec, key) {
			return
		}

		start := time.Now()
		res, err := h.backend.Write(backendContext(r), http.MethodDelete, rowPath(spec, key), nil)
		if err != nil {
			metrics.RecordSubmission(spec.form, errorCode(err), time.Since(start))
			writeJSON(w, backendStatus(err), deleteFailure(spec, err))
			return
		}
		metrics.RecordSubmission(spec.form, "ok", time.Since(start))
		msg := res.Message
		if msg == "" {
			msg = spec.msgs.Deleted
		}
		writeJSON(w, http.StatusOK, writeResponse{Message: msg, Warnings: res.Warnings})
	}
}

func (h *FormsHandler) act(spec formSpec, a formAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := rowKey(r, 1)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
			return
		}
		start := time.Now()
		res, err := h.backend.Write(backendContext(r), http.MethodPatch, rowPath(spec, key)+"/"+a.name, struct{}{})
		if err != nil {
			metrics.RecordSubmission(spec.form, errorCode(err), time.Since(start))
			writeJSON(w, backendStatus(err), plainFailure(err, a.fallback))
			return
		}
		metrics.RecordSubmission(spec.form, "ok", time.Since(start))
		msg := res.Message
		if msg == "" {
			msg = a.ok
		}
		writeJSON(w, http.StatusOK, writeResponse{Message: msg})
	}
}

// allowed refuses edits and deletes of protected rows.
func (h *FormsHandler) allowed(w http.ResponseWriter, r *http.Request, spec formSpec, key []string) bool {
	if !spec.protect {
		return true
	}
	var rows []struct {
		ID     json.Number `json:"id_rol"`
		Nombre string      `json:"nombre_rol"`
	}
	if err := h.backend.Do(backendContext(r), http.MethodGet, "/"+spec.path, nil, &rows); err != nil {
		writeJSON(w, backendStatus(err), plainFailure(err, spec.msgs.SaveFallback))
		return false
	}
	for _, row := range rows {
		if row.ID.String() == key[0] && rules.IsProtectedRole(row.Nombre) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": ProtectedRoleMessage})
			return false
		}
	}
	return true
}
