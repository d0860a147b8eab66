package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/fitcompany/console/internal/mask"
)

// MaskHandler exposes the digit masker for numeric inputs.
type MaskHandler struct {
	fields mask.Fields
}

// NewMaskHandler creates a new MaskHandler over the configured fields.
func NewMaskHandler(fields mask.Fields) *MaskHandler {
	return &MaskHandler{fields: fields}
}

// RegisterRoutes registers mask endpoints on the given Chi router.
func (h *MaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/mask/fields", h.Fields)
	r.Post("/mask", h.Mask)
	r.Post("/mask/guard", h.Guard)
}

// --- Request / Response types ---

// maskRequest names a configured field, or gives max_digits directly.
type maskRequest struct {
	Field     string `json:"field"`
	MaxDigits int    `json:"max_digits"`
	Text      string `json:"text"`
}

type maskResponse struct {
	mask.State
	Value *int64 `json:"value"`
}

type guardRequest struct {
	Field     string `json:"field"`
	MaxDigits int    `json:"max_digits"`
	mask.InputEvent
}

type guardResponse struct {
	Allow bool `json:"allow"`
}

// resolve picks the configured field or an ad hoc one.
func (h *MaskHandler) resolve(id string, maxDigits int) (mask.Field, bool) {
	if id != "" {
		return h.fields.Get(id)
	}
	f := mask.Field{ID: "adhoc", MaxDigits: maxDigits}
	return f, f.Validate() == nil
}

// --- Handlers ---

// Fields lists the configured numeric fields.
func (h *MaskHandler) Fields(w http.ResponseWriter, r *http.Request) {
	out := make([]mask.Field, 0, len(h.fields))
	for _, f := range h.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// Mask normalizes and formats text for a field.
func (h *MaskHandler) Mask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	f, ok := h.resolve(req.Field, req.MaxDigits)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown field or invalid max_digits"})
		return
	}

	state := f.OnChange(req.Text)
	resp := maskResponse{State: state}
	if v, ok := state.Value(); ok {
		resp.Value = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// Guard reports whether a pending edit keeps the field within its digit cap.
func (h *MaskHandler) Guard(w http.ResponseWriter, r *http.Request) {
	var req guardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	f, ok := h.resolve(req.Field, req.MaxDigits)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown field or invalid max_digits"})
		return
	}
	writeJSON(w, http.StatusOK, guardResponse{Allow: f.AllowInput(req.InputEvent)})
}
