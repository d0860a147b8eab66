package auth

import "sort"

// Action is a CRUD verb a form grant can allow.
type Action string

const (
	ActionCrear      Action = "crear"
	ActionLeer       Action = "leer"
	ActionActualizar Action = "actualizar"
	ActionEliminar   Action = "eliminar"
)

// Allows reports whether p grants a.
func (p Permisos) Allows(a Action) bool {
	switch a {
	case ActionCrear:
		return p.Crear == Yes
	case ActionLeer:
		return p.Leer == Yes
	case ActionActualizar:
		return p.Actualizar == Yes
	case ActionEliminar:
		return p.Eliminar == Yes
	}
	return false
}

// Formulario returns the form with the given code.
func (c *Claims) Formulario(code int64) (Formulario, bool) {
	for _, f := range c.Formularios {
		if f.Codigo == code {
			return f, true
		}
	}
	return Formulario{}, false
}

// Can reports whether the token grants a on form code.
func (c *Claims) Can(code int64, a Action) bool {
	f, ok := c.Formulario(code)
	return ok && f.Permisos.Allows(a)
}

// MenuItem is a sidebar entry. Parents group their readable children.
type MenuItem struct {
	Codigo   int64      `json:"codigo"`
	Titulo   string     `json:"titulo"`
	URL      string     `json:"url,omitempty"`
	Children []MenuItem `json:"children,omitempty"`
}

// Menu builds the sidebar from the token's forms: parents ordered by orden,
// each holding its children with leer=S, also by orden. Top-level leaves are
// kept when readable; parents with no readable child are dropped.
func Menu(c *Claims) []MenuItem {
	if c == nil {
		return nil
	}

	forms := append([]Formulario(nil), c.Formularios...)
	sort.SliceStable(forms, func(i, j int) bool { return forms[i].Orden < forms[j].Orden })

	children := map[int64][]MenuItem{}
	for _, f := range forms {
		if f.EsPadre == 1 || f.Padre == nil || !f.Permisos.Allows(ActionLeer) {
			continue
		}
		children[*f.Padre] = append(children[*f.Padre], leaf(f))
	}

	var menu []MenuItem
	for _, f := range forms {
		switch {
		case f.EsPadre == 1:
			kids := children[f.Codigo]
			if len(kids) == 0 {
				continue
			}
			menu = append(menu, MenuItem{Codigo: f.Codigo, Titulo: f.Titulo, Children: kids})
		case f.Padre == nil && f.Permisos.Allows(ActionLeer):
			menu = append(menu, leaf(f))
		}
	}
	return menu
}

func leaf(f Formulario) MenuItem {
	item := MenuItem{Codigo: f.Codigo, Titulo: f.Titulo}
	if f.URL != nil {
		item.URL = *f.URL
	}
	return item
}
