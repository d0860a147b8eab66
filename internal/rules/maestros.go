package rules

import "fmt"

// NamedKind configures a lookup table whose rows are a name plus an optional description.
type NamedKind struct {
	NameField string
	DescField string
	NameMax   int
	DescMax   int
}

// Lookup tables sharing the name pattern.
var (
	Rol       = NamedKind{NameField: "nombre_rol", DescField: "descripcion_rol", NameMax: 50, DescMax: 200}
	Unidad    = NamedKind{NameField: "nombre", DescField: "descripcion", NameMax: 100, DescMax: 150}
	Categoria = NamedKind{NameField: "nombre_categoria", DescField: "descripcion_categoria", NameMax: 100, DescMax: 200}
)

// Named is a normalized name/description pair.
type Named struct {
	Nombre      string
	Descripcion string
}

// Check collapses whitespace in name and desc and validates them against k.
func (k NamedKind) Check(name, desc string) (Named, *Violation) {
	n := Named{Nombre: Collapse(name), Descripcion: Collapse(desc)}
	if n.Nombre == "" {
		return n, violation(k.NameField, "El nombre es obligatorio.")
	}
	if !namePattern.MatchString(n.Nombre) {
		return n, violation(k.NameField, "El nombre solo puede contener letras, espacios, guiones y puntos.")
	}
	if length(n.Nombre) > k.NameMax {
		return n, violation(k.NameField, fmt.Sprintf("El nombre admite máximo %d caracteres.", k.NameMax))
	}
	if length(n.Descripcion) > k.DescMax {
		return n, violation(k.DescField, fmt.Sprintf("La descripción admite máximo %d caracteres.", k.DescMax))
	}
	return n, nil
}

// Body renders n with the field names of k.
func (k NamedKind) Body(n Named) map[string]string {
	return map[string]string{k.NameField: n.Nombre, k.DescField: n.Descripcion}
}

// MaxDescripcionTipo bounds an identification type description.
const MaxDescripcionTipo = 100

// TipoIdentificacion validates and normalizes an identification type description.
func TipoIdentificacion(desc string) (string, *Violation) {
	d := Collapse(desc)
	if d == "" {
		return d, violation("descripcion", "La descripción es obligatoria.")
	}
	if !namePattern.MatchString(d) {
		return d, violation("descripcion", "Solo se permiten letras, espacios, guiones y puntos.")
	}
	if length(d) > MaxDescripcionTipo {
		return d, violation("descripcion", "La descripción admite máximo 100 caracteres.")
	}
	return d, nil
}

// Perfil is the body of POST /perfiles and PUT /perfiles/{id}.
type Perfil struct {
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Rol         int64  `json:"rol"`
}

// Normalize collapses whitespace in the text fields.
func (p Perfil) Normalize() Perfil {
	p.Nombre = Collapse(p.Nombre)
	p.Descripcion = Collapse(p.Descripcion)
	return p
}

// Check validates a normalized profile.
func (p Perfil) Check() *Violation {
	if p.Nombre == "" {
		return violation("nombre", "El nombre es obligatorio.")
	}
	if !lettersPattern.MatchString(p.Nombre) {
		return violation("nombre", "El nombre del perfil solo debe contener letras y espacios.")
	}
	if length(p.Nombre) > 100 {
		return violation("nombre", "El nombre admite máximo 100 caracteres.")
	}
	if p.Rol == 0 {
		return violation("rol", "Debes seleccionar un rol.")
	}
	if p.Rol < 0 {
		return violation("rol", "Rol inválido.")
	}
	if length(p.Descripcion) > 255 {
		return violation("descripcion", "La descripción admite máximo 255 caracteres.")
	}
	return nil
}
