package mask

import (
	"errors"
	"fmt"
	"strings"
)

// Field binds the masker to one numeric form field.
type Field struct {
	ID        string `yaml:"id" json:"id"`
	MaxDigits int    `yaml:"max_digits" json:"max_digits"`
}

// Validate checks that the field can be masked into an int64.
func (f Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("field id is required")
	}
	if f.MaxDigits < 1 || f.MaxDigits > MaxSupportedDigits {
		return fmt.Errorf("field %s: max_digits must be between 1 and %d, got %d", f.ID, MaxSupportedDigits, f.MaxDigits)
	}
	return nil
}

// OnChange computes the new field state for the text currently in the input.
// The caller writes Display back to the input, overwriting whatever was typed.
func (f Field) OnChange(text string) State {
	return NewState(text, f.MaxDigits)
}

// ErrTooManyDigits is returned by Parse for a value the field cannot hold.
var ErrTooManyDigits = errors.New("too many digits")

// Parse masks a value that arrives whole, such as a submitted form field.
// A value with more digits than the field takes is refused rather than cut.
func (f Field) Parse(text string) (State, error) {
	if len(Unformat(text)) > f.MaxDigits {
		return State{}, ErrTooManyDigits
	}
	return f.OnChange(text), nil
}

// InputEvent describes a pending edit, before it is applied to the input.
// Selection offsets count characters of Value; a negative offset means the
// caret sits at the end of the text.
type InputEvent struct {
	Kind           string `json:"input_type"`
	Data           string `json:"data"`
	Value          string `json:"value"`
	SelectionStart int    `json:"selection_start"`
	SelectionEnd   int    `json:"selection_end"`
}

// bypassesGuard reports whether the edit kind can only shrink or restore the value.
func bypassesGuard(kind string) bool {
	return strings.HasPrefix(kind, "delete") || kind == "historyUndo" || kind == "historyRedo"
}

// AllowInput reports whether ev may be applied. It is rejected when the digits
// left of the selection, the incoming digits and the digits right of the
// selection add up to more than MaxDigits. Rejection is silent.
func (f Field) AllowInput(ev InputEvent) bool {
	if bypassesGuard(ev.Kind) {
		return true
	}

	runes := []rune(ev.Value)
	start := clampOffset(ev.SelectionStart, len(runes))
	end := clampOffset(ev.SelectionEnd, len(runes))
	if end < start {
		end = start
	}

	before := countDigits(string(runes[:start]))
	after := countDigits(string(runes[end:]))
	incoming := countDigits(ev.Data)

	return before+incoming+after <= f.MaxDigits
}

func clampOffset(off, n int) int {
	if off < 0 || off > n {
		return n
	}
	return off
}

// Fields is the per-screen field configuration, keyed by field ID.
type Fields map[string]Field

// Get returns the configured field or false when id is unknown.
func (fs Fields) Get(id string) (Field, bool) {
	f, ok := fs[id]
	return f, ok
}

// Field IDs shared by the sales, purchase and product screens.
const (
	FieldCantidad      = "cantidad"
	FieldCostoUnitario = "costo_unitario"
	FieldPrecio        = "precio_unitario"
	FieldStockActual   = "stock_actual"
	FieldStockMinimo   = "stock_minimo"
	FieldStockMaximo   = "stock_maximo"
)

// DefaultFields mirrors the digit caps used across the console screens.
func DefaultFields() Fields {
	return Fields{
		FieldCantidad:      {ID: FieldCantidad, MaxDigits: 6},
		FieldCostoUnitario: {ID: FieldCostoUnitario, MaxDigits: 8},
		FieldPrecio:        {ID: FieldPrecio, MaxDigits: 8},
		FieldStockActual:   {ID: FieldStockActual, MaxDigits: 6},
		FieldStockMinimo:   {ID: FieldStockMinimo, MaxDigits: 6},
		FieldStockMaximo:   {ID: FieldStockMaximo, MaxDigits: 6},
	}
}
