// Package rules holds the checks of the single-record forms: purchases,
// products, the lookup tables, profiles, users and permissions.
//
// Every check is fail-fast and returns the first broken rule as a *Violation,
// or nil when the record can be sent to the backend.
package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Violation is the first rule a record breaks.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (v *Violation) Error() string { return v.Message }

func violation(field, msg string) *Violation {
	return &Violation{Field: field, Message: msg}
}

// amountMessages are the range messages of the masked amount fields.
var amountMessages = map[string]string{
	"cantidad":        "La cantidad debe ser un entero entre 1 y 999.999.",
	"costo_unitario":  "El costo unitario debe ser un entero entre 1 y 99.999.999.",
	"precio_unitario": "El precio debe estar entre 1 y 99.999.999.",
	"stock_actual":    "Stock actual y mínimo deben ser números válidos.",
	"stock_minimo":    "Stock actual y mínimo deben ser números válidos.",
	"stock_maximo":    "El stock máximo debe ser mayor a cero.",
}

// AmountViolation reports an amount that is not a whole number the field
// can hold, such as a negative, fractional or over-long value.
func AmountViolation(field string) *Violation {
	msg, ok := amountMessages[field]
	if !ok {
		msg = "El valor debe ser un número entero válido."
	}
	return violation(field, msg)
}

var (
	// namePattern accepts letters including Spanish accents and Ñ, whitespace, hyphens and dots.
	namePattern = regexp.MustCompile(`^[A-Za-zÁÉÍÓÚáéíóúÑñ\s\-.]+$`)
	// lettersPattern is namePattern without hyphens and dots.
	lettersPattern = regexp.MustCompile(`^[A-Za-zÁÉÍÓÚáéíóúÑñ\s]+$`)
	identPattern   = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)
	emailPattern   = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// Collapse trims s and squeezes every whitespace run into one space.
func Collapse(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// Canonical strips accents, lowercases and removes whitespace, so that
// "Administrador", "ADMINISTRADOR" and "Admi nistrador" compare equal.
func Canonical(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, out)
}

// ProtectedRole is the canonical name of the role that cannot be edited or deleted.
const ProtectedRole = "administrador"

// IsProtectedRole reports whether a role name denotes the administrator role.
func IsProtectedRole(name string) bool {
	return Canonical(name) == ProtectedRole
}
