package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapse(t *testing.T) {
	assert.Equal(t, "Caja de cartón", Collapse("  Caja   de\tcartón \n"))
	assert.Equal(t, "", Collapse("   "))
}

func TestIsProtectedRole(t *testing.T) {
	for _, name := range []string{"Administrador", "ADMINISTRADOR", " admi nistrador ", "Ádministradór"} {
		assert.True(t, IsProtectedRole(name), name)
	}
	for _, name := range []string{"Administradora", "Vendedor", ""} {
		assert.False(t, IsProtectedRole(name), name)
	}
}

func TestCompraCheck(t *testing.T) {
	valid := Compra{ProductoID: 3, Cantidad: 10, CostoUnitario: 2500, FechaCompra: "2025-03-09"}
	require.Nil(t, valid.Check())

	tests := []struct {
		name  string
		edit  func(*Compra)
		field string
		msg   string
	}{
		{"no product", func(c *Compra) { c.ProductoID = 0 }, "producto_id", "Debes seleccionar un producto."},
		{"zero quantity", func(c *Compra) { c.Cantidad = 0 }, "cantidad", "La cantidad debe ser un entero entre 1 y 999.999."},
		{"quantity too big", func(c *Compra) { c.Cantidad = 1_000_000 }, "cantidad", "La cantidad debe ser un entero entre 1 y 999.999."},
		{"cost too big", func(c *Compra) { c.CostoUnitario = 100_000_000 }, "costo_unitario", "El costo unitario debe ser un entero entre 1 y 99.999.999."},
		{"no date", func(c *Compra) { c.FechaCompra = " " }, "fecha_compra", "Debes seleccionar la fecha de compra."},
		{"bad date", func(c *Compra) { c.FechaCompra = "09/03/2025" }, "fecha_compra", "La fecha de compra no es válida."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.edit(&c)
			v := c.Check()
			require.NotNil(t, v)
			assert.Equal(t, tt.field, v.Field)
			assert.Equal(t, tt.msg, v.Message)
		})
	}
}

func TestDDMMYYYYToISO(t *testing.T) {
	assert.Equal(t, "2025-03-09", DDMMYYYYToISO("09/03/2025"))
	assert.Equal(t, "2025-03-09", DDMMYYYYToISO("9/3/2025"))
	assert.Equal(t, "", DDMMYYYYToISO(""))
	assert.Equal(t, "", DDMMYYYYToISO("2025-03-09"))
	assert.Equal(t, "", DDMMYYYYToISO("31/02/2025"))
	assert.Equal(t, "", DDMMYYYYToISO("aa/bb/cccc"))
}

func TestProductoCheck(t *testing.T) {
	valid := Producto{
		Nombre: "Proteína", Precio: 120_000,
		StockActual: 5, StockMinimo: 2, StockMaximo: 10,
		UnidadID: 1, CategoriaID: 2,
	}
	require.Nil(t, valid.Check())

	tests := []struct {
		name string
		edit func(*Producto)
		msg  string
	}{
		{"no name", func(p *Producto) { p.Nombre = "" }, "El nombre es obligatorio."},
		{"long name", func(p *Producto) { p.Nombre = strings.Repeat("a", 121) }, "El nombre admite máximo 120 caracteres."},
		{"long description", func(p *Producto) { p.Descripcion = strings.Repeat("ñ", 256) }, "La descripción admite máximo 255 caracteres."},
		{"zero price", func(p *Producto) { p.Precio = 0 }, "El precio debe estar entre 1 y 99.999.999."},
		{"no unit", func(p *Producto) { p.UnidadID = 0 }, "Debes seleccionar la unidad de medida."},
		{"no category", func(p *Producto) { p.CategoriaID = 0 }, "Debes seleccionar la categoría."},
		{"zero max", func(p *Producto) { p.StockMaximo = 0 }, "El stock máximo debe ser mayor a cero."},
		{"below min", func(p *Producto) { p.StockActual = 1 }, "El stock actual no puede ser menor que el stock mínimo."},
		{"above max", func(p *Producto) { p.StockActual = 11 }, "El stock actual no puede ser mayor que el stock máximo."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.edit(&p)
			v := p.Check()
			require.NotNil(t, v)
			assert.Equal(t, tt.msg, v.Message)
		})
	}
}

func TestProductoNormalize(t *testing.T) {
	p := Producto{Nombre: "  Barra   energética ", Descripcion: "\tsabor  chocolate"}.Normalize()
	assert.Equal(t, "Barra energética", p.Nombre)
	assert.Equal(t, "sabor chocolate", p.Descripcion)
}

func TestIsOutOfRange(t *testing.T) {
	assert.True(t, IsOutOfRange(1, 2, 10))
	assert.True(t, IsOutOfRange(11, 2, 10))
	assert.False(t, IsOutOfRange(11, 2, 0), "no max means no upper bound")
	assert.False(t, IsOutOfRange(2, 2, 10))
}

func TestNamedKindCheck(t *testing.T) {
	n, v := Rol.Check("  Jefe   de  bodega ", " ")
	require.Nil(t, v)
	assert.Equal(t, "Jefe de bodega", n.Nombre)
	assert.Equal(t, map[string]string{"nombre_rol": "Jefe de bodega", "descripcion_rol": ""}, Rol.Body(n))

	_, v = Rol.Check("", "")
	require.NotNil(t, v)
	assert.Equal(t, "nombre_rol", v.Field)

	_, v = Unidad.Check("Kg2", "")
	require.NotNil(t, v)
	assert.Equal(t, "El nombre solo puede contener letras, espacios, guiones y puntos.", v.Message)

	_, v = Rol.Check(strings.Repeat("a", 51), "")
	require.NotNil(t, v)
	assert.Equal(t, "El nombre admite máximo 50 caracteres.", v.Message)

	_, v = Unidad.Check("Kilo", strings.Repeat("d", 151))
	require.NotNil(t, v)
	assert.Equal(t, "La descripción admite máximo 150 caracteres.", v.Message)

	_, v = Categoria.Check("Suplementos", strings.Repeat("d", 200))
	assert.Nil(t, v)
}

func TestTipoIdentificacion(t *testing.T) {
	d, v := TipoIdentificacion(" Cédula  de ciudadanía ")
	require.Nil(t, v)
	assert.Equal(t, "Cédula de ciudadanía", d)

	_, v = TipoIdentificacion("")
	require.NotNil(t, v)
	assert.Equal(t, "La descripción es obligatoria.", v.Message)

	_, v = TipoIdentificacion("NIT 123")
	require.NotNil(t, v)
	assert.Equal(t, "Solo se permiten letras, espacios, guiones y puntos.", v.Message)
}

func TestPerfilCheck(t *testing.T) {
	require.Nil(t, Perfil{Nombre: "Cajero", Rol: 2}.Check())

	v := Perfil{Nombre: "Caja-1", Rol: 2}.Check()
	require.NotNil(t, v)
	assert.Equal(t, "El nombre del perfil solo debe contener letras y espacios.", v.Message)

	v = Perfil{Nombre: "Cajero"}.Check()
	require.NotNil(t, v)
	assert.Equal(t, "Debes seleccionar un rol.", v.Message)

	v = Perfil{Nombre: "Cajero", Rol: -1}.Check()
	require.NotNil(t, v)
	assert.Equal(t, "Rol inválido.", v.Message)
}

func TestUsuarioCheck(t *testing.T) {
	base := Usuario{
		TipoIdentificacion: "CC", Identificacion: "1.020-33",
		Nombre: "María", Apellido1: "Pérez", Correo: "Maria@Fit.CO ",
		Contrasenia: "abc", PerfilID: 1, PerfilRol: 1,
	}.Normalize()
	assert.Equal(t, "maria@fit.co", base.Correo)
	require.Nil(t, base.Check(false))

	tests := []struct {
		name    string
		edit    func(*Usuario)
		editing bool
		field   string
	}{
		{"no type", func(u *Usuario) { u.TipoIdentificacion = "" }, false, "tipo_identificacion"},
		{"bad ident", func(u *Usuario) { u.Identificacion = "12 34" }, false, "identificacion"},
		{"empty name", func(u *Usuario) { u.Nombre = "" }, false, "nombre"},
		{"bad second surname", func(u *Usuario) { u.Apellido2 = "P3" }, false, "apellido2"},
		{"bad email", func(u *Usuario) { u.Correo = "maria@fit.c" }, false, "correo"},
		{"short password on create", func(u *Usuario) { u.Contrasenia = "ab" }, false, "contrasennia"},
		{"short password on edit", func(u *Usuario) { u.Contrasenia = "ab" }, true, "contrasennia"},
		{"no role", func(u *Usuario) { u.PerfilRol = 0 }, false, "perfil_rol"},
		{"no profile", func(u *Usuario) { u.PerfilID = 0 }, false, "perfil_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := base
			tt.edit(&u)
			v := u.Check(tt.editing)
			require.NotNil(t, v)
			assert.Equal(t, tt.field, v.Field)
		})
	}

	noPassword := base
	noPassword.Contrasenia = ""
	assert.Nil(t, noPassword.Check(true), "password is optional on edit")
}

func TestPermisoCheck(t *testing.T) {
	p := Permiso{IDPerfil: 1, PerfilRol: 1, Permisos: []PermisoFormulario{
		{CodigoFormulario: 4, PuedeCrear: "S", PuedeLeer: "S", PuedeActualizar: "N", PuedeEliminar: "N"},
	}}
	require.Nil(t, p.Check())

	bad := p
	bad.Permisos = []PermisoFormulario{{CodigoFormulario: 4, PuedeCrear: "Y", PuedeLeer: "S", PuedeActualizar: "S", PuedeEliminar: "S"}}
	require.NotNil(t, bad.Check())

	bad = p
	bad.PerfilRol = 0
	v := bad.Check()
	require.NotNil(t, v)
	assert.Equal(t, "Rol de perfil inválido.", v.Message)

	bad = p
	bad.Permisos = nil
	v = bad.Check()
	require.NotNil(t, v)
	assert.Equal(t, "Debes seleccionar un formulario.", v.Message)
}

func TestAmountViolation(t *testing.T) {
	v := AmountViolation("cantidad")
	require.NotNil(t, v)
	assert.Equal(t, "cantidad", v.Field)
	assert.Equal(t, "La cantidad debe ser un entero entre 1 y 999.999.", v.Message)

	assert.Equal(t, "El valor debe ser un número entero válido.", AmountViolation("otro").Message)
}
