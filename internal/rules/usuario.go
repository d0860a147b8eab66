package rules

import "strings"

// MinPasswordLength is enforced on create, and on edit only when a password is given.
const MinPasswordLength = 3

// Usuario is the body of POST /usuarios and PUT /usuarios/{tipo}/{id}.
type Usuario struct {
	TipoIdentificacion string `json:"tipo_identificacion"`
	Identificacion     string `json:"identificacion"`
	Nombre             string `json:"nombre"`
	Apellido1          string `json:"apellido1"`
	Apellido2          string `json:"apellido2,omitempty"`
	Correo             string `json:"correo"`
	Contrasenia        string `json:"contrasennia,omitempty"`
	PerfilID           int64  `json:"perfil_id"`
	PerfilRol          int64  `json:"perfil_rol"`
}

// Normalize trims every field, collapses whitespace in the names and lowercases the email.
func (u Usuario) Normalize() Usuario {
	u.TipoIdentificacion = strings.TrimSpace(u.TipoIdentificacion)
	u.Identificacion = strings.TrimSpace(u.Identificacion)
	u.Nombre = Collapse(u.Nombre)
	u.Apellido1 = Collapse(u.Apellido1)
	u.Apellido2 = Collapse(u.Apellido2)
	u.Correo = strings.ToLower(strings.TrimSpace(u.Correo))
	return u
}

// Check validates a normalized user. editing relaxes the password to optional.
func (u Usuario) Check(editing bool) *Violation {
	switch {
	case u.TipoIdentificacion == "":
		return violation("tipo_identificacion", "El tipo de identificación es obligatorio.")
	case u.Identificacion == "":
		return violation("identificacion", "La identificación es obligatoria.")
	case !identPattern.MatchString(u.Identificacion):
		return violation("identificacion", "La identificación solo admite letras, números, puntos o guiones.")
	case !namePattern.MatchString(u.Nombre):
		return violation("nombre", "El nombre solo puede contener letras, espacios, guiones y puntos.")
	case !namePattern.MatchString(u.Apellido1):
		return violation("apellido1", "El apellido 1 solo puede contener letras, espacios, guiones y puntos.")
	case u.Apellido2 != "" && !namePattern.MatchString(u.Apellido2):
		return violation("apellido2", "El apellido 2 solo puede contener letras, espacios, guiones y puntos.")
	case !emailPattern.MatchString(u.Correo):
		return violation("correo", "Formato de correo inválido.")
	case !editing && length(u.Contrasenia) < MinPasswordLength:
		return violation("contrasennia", "La contraseña debe tener al menos 3 caracteres.")
	case editing && u.Contrasenia != "" && length(u.Contrasenia) < MinPasswordLength:
		return violation("contrasennia", "La contraseña debe tener al menos 3 caracteres.")
	case u.PerfilRol <= 0:
		return violation("perfil_rol", "Debes seleccionar un rol.")
	case u.PerfilID <= 0:
		return violation("perfil_id", "Debes seleccionar un perfil.")
	}
	return nil
}

// Permission flags.
const (
	FlagYes = "S"
	FlagNo  = "N"
)

// PermisoFormulario is one form's grants inside a Permiso.
type PermisoFormulario struct {
	CodigoFormulario int64  `json:"codigoFormulario"`
	PuedeCrear       string `json:"puedeCrear"`
	PuedeLeer        string `json:"puedeLeer"`
	PuedeActualizar  string `json:"puedeActualizar"`
	PuedeEliminar    string `json:"puedeEliminar"`
}

// Permiso is the body of POST /permisos.
type Permiso struct {
	IDPerfil  int64               `json:"idPerfil"`
	PerfilRol int64               `json:"perfilRol"`
	Permisos  []PermisoFormulario `json:"permisos"`
}

// Check validates the profile key and every form grant.
func (p Permiso) Check() *Violation {
	if p.IDPerfil <= 0 {
		return violation("idPerfil", "Perfil inválido.")
	}
	if p.PerfilRol <= 0 {
		return violation("perfilRol", "Rol de perfil inválido.")
	}
	if len(p.Permisos) == 0 {
		return violation("codigoFormulario", "Debes seleccionar un formulario.")
	}
	for _, f := range p.Permisos {
		if f.CodigoFormulario <= 0 {
			return violation("codigoFormulario", "Formulario inválido.")
		}
		for _, flag := range []string{f.PuedeCrear, f.PuedeLeer, f.PuedeActualizar, f.PuedeEliminar} {
			if flag != FlagYes && flag != FlagNo {
				return violation("permisos", "Los permisos deben ser S o N.")
			}
		}
	}
	return nil
}
