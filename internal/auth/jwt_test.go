package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fitcompany/console/internal/auth"
)

func ptr[T any](v T) *T { return &v }

func sampleClaims() auth.Claims {
	return auth.Claims{
		Identificacion: "1020",
		Nombre:         "Laura",
		Correo:         "laura@fit.co",
		Rol:            "Vendedor",
		PerfilID:       3,
		Formularios: []auth.Formulario{
			{Codigo: 100, Titulo: "Inventario", EsPadre: 1, Orden: 2},
			{Codigo: 101, Titulo: "Ventas", URL: ptr("/dashboard/ventas"), Orden: 2, Padre: ptr(int64(100)),
				Permisos: auth.Permisos{Crear: "S", Leer: "S", Actualizar: "N", Eliminar: "N"}},
			{Codigo: 102, Titulo: "Compras", URL: ptr("/dashboard/compras"), Orden: 1, Padre: ptr(int64(100)),
				Permisos: auth.Permisos{Crear: "N", Leer: "S", Actualizar: "N", Eliminar: "N"}},
			{Codigo: 103, Titulo: "Productos", URL: ptr("/dashboard/productos"), Orden: 3, Padre: ptr(int64(100)),
				Permisos: auth.Permisos{Crear: "N", Leer: "N", Actualizar: "N", Eliminar: "N"}},
			{Codigo: 200, Titulo: "Seguridad", EsPadre: 1, Orden: 1},
			{Codigo: 1, Titulo: "Overview", URL: ptr("/dashboard"), Orden: 0,
				Permisos: auth.Permisos{Leer: "S"}},
		},
	}
}

func TestGenerateAndDecodeToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.Decode(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if claims.Correo != "laura@fit.co" {
		t.Errorf("correo: got %q, want %q", claims.Correo, "laura@fit.co")
	}
	if len(claims.Formularios) != 6 {
		t.Errorf("formularios: got %d, want 6", len(claims.Formularios))
	}
	if claims.Expired(time.Now()) {
		t.Error("fresh token reported as expired")
	}
}

func TestDecodeIgnoresSignature(t *testing.T) {
	token, err := auth.GenerateToken("one-secret", sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.Decode(token); err != nil {
		t.Fatalf("decode must not verify the signature: %v", err)
	}
	if _, err := auth.ValidateToken("other-secret", token); err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := auth.Decode(tok); err == nil {
			t.Errorf("Decode(%q): expected error", tok)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	noExp := &auth.Claims{}
	if noExp.Expired(now) {
		t.Error("token without exp must not expire")
	}

	past := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second))}}
	if !past.Expired(now) {
		t.Error("exp in the past must be expired")
	}

	exact := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)}}
	if !exact.Expired(now) {
		t.Error("exp equal to now must be expired")
	}

	future := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}}
	if future.Expired(now) {
		t.Error("exp in the future must not be expired")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	c := sampleClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.ValidateToken("secret", signed); err == nil {
		t.Fatal("expected error validating expired token")
	}
}

func TestCan(t *testing.T) {
	c := sampleClaims()
	if !c.Can(101, auth.ActionCrear) {
		t.Error("ventas should allow crear")
	}
	if c.Can(101, auth.ActionEliminar) {
		t.Error("ventas should not allow eliminar")
	}
	if c.Can(999, auth.ActionLeer) {
		t.Error("unknown form should not allow anything")
	}
	if c.Can(101, auth.Action("borrar")) {
		t.Error("unknown action should not be allowed")
	}
}

func TestMenu(t *testing.T) {
	c := sampleClaims()
	menu := auth.Menu(&c)

	if len(menu) != 2 {
		t.Fatalf("menu entries: got %d, want 2 (%+v)", len(menu), menu)
	}
	if menu[0].Titulo != "Overview" {
		t.Errorf("first entry: got %q, want Overview", menu[0].Titulo)
	}

	inv := menu[1]
	if inv.Codigo != 100 {
		t.Fatalf("second entry: got %d, want 100", inv.Codigo)
	}
	if len(inv.Children) != 2 {
		t.Fatalf("children: got %d, want 2", len(inv.Children))
	}
	if inv.Children[0].Titulo != "Compras" || inv.Children[1].Titulo != "Ventas" {
		t.Errorf("children order: got %q, %q", inv.Children[0].Titulo, inv.Children[1].Titulo)
	}
	if inv.Children[0].URL != "/dashboard/compras" {
		t.Errorf("url: got %q", inv.Children[0].URL)
	}

	if auth.Menu(nil) != nil {
		t.Error("nil claims should give no menu")
	}
}

func TestParse(t *testing.T) {
	token, err := auth.GenerateToken("secret", sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.Parse("", token, time.Now()); err != nil {
		t.Errorf("decode-only parse: %v", err)
	}
	if _, err := auth.Parse("secret", token, time.Now()); err != nil {
		t.Errorf("verified parse: %v", err)
	}
	if _, err := auth.Parse("wrong", token, time.Now()); err == nil {
		t.Error("verified parse with wrong secret should fail")
	}

	_, err = auth.Parse("", token, time.Now().Add(2*time.Hour))
	if !errors.Is(err, auth.ErrExpiredToken) {
		t.Errorf("expired parse: got %v, want ErrExpiredToken", err)
	}
}

func TestParseWithoutExpiry(t *testing.T) {
	token, err := auth.GenerateToken("secret", sampleClaims(), 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	later := time.Now().Add(24 * 365 * time.Hour)

	if _, err := auth.Parse("", token, later); err != nil {
		t.Errorf("decode-only parse of token without exp: %v", err)
	}
	if _, err := auth.Parse("secret", token, later); err != nil {
		t.Errorf("verified parse of token without exp: %v", err)
	}
}
