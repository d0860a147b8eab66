package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token expired")
)

// Permission flag values carried in the token.
const (
	Yes = "S"
	No  = "N"
)

// Permisos holds the S/N grants of one form.
type Permisos struct {
	Crear      string `json:"crear"`
	Leer       string `json:"leer"`
	Actualizar string `json:"actualizar"`
	Eliminar   string `json:"eliminar"`
}

// Formulario is a console screen the profile may reach.
type Formulario struct {
	Codigo   int64    `json:"codigo"`
	Titulo   string   `json:"titulo"`
	URL      *string  `json:"url"`
	EsPadre  int      `json:"es_padre"`
	Orden    int      `json:"orden"`
	Padre    *int64   `json:"padre"`
	Permisos Permisos `json:"permisos"`
}

// Claims is the payload of the token issued by the backend on login.
type Claims struct {
	Tipo           int          `json:"tipo,omitempty"`
	Identificacion string       `json:"identificacion,omitempty"`
	Nombre         string       `json:"nombre,omitempty"`
	Apellido1      string       `json:"apellido1,omitempty"`
	Apellido2      string       `json:"apellido2,omitempty"`
	Correo         string       `json:"correo,omitempty"`
	Rol            string       `json:"rol,omitempty"`
	PerfilID       int64        `json:"perfil_id,omitempty"`
	PerfilRol      int64        `json:"perfil_rol,omitempty"`
	Formularios    []Formulario `json:"formularios"`
	jwt.RegisteredClaims
}

// Expired reports whether the exp claim is at or before now. A token without
// exp never expires.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix() <= now.Unix()
}

// Decode reads the claims without checking the signature. The backend is the
// party that verifies tokens; the console only needs the payload.
func Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// GenerateToken signs c with HS256. Used for local development tokens.
func GenerateToken(secret string, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies an HS256 signature and the expiry.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Parse reads a bearer token the way the console trusts it. With an empty
// secret the payload is decoded and only exp is checked; otherwise the HS256
// signature is verified too.
func Parse(secret, tokenStr string, now time.Time) (*Claims, error) {
	if secret != "" {
		return ValidateToken(secret, tokenStr)
	}
	claims, err := Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Expired(now) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}
