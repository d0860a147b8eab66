package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitcompany/console/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		secret string
		claims auth.Claims
		forms  []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed development token",
		Long: `Issue an HS256 token shaped like the ones the backend returns on login.
Each --form is CODE=CRUD, where CRUD is four S/N flags, e.g. 301=SSNN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range forms {
				form, err := parseForm(f)
				if err != nil {
					return err
				}
				claims.Formularios = append(claims.Formularios, form)
			}
			tok, err := auth.GenerateToken(secret, claims, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "dev-secret", "HS256 signing secret (TOKEN_SECRET of the server)")
	cmd.Flags().StringVar(&claims.Identificacion, "identificacion", "1-0000-0000", "user identification")
	cmd.Flags().StringVar(&claims.Nombre, "nombre", "Dev", "first name")
	cmd.Flags().StringVar(&claims.Correo, "correo", "dev@localhost", "email")
	cmd.Flags().StringVar(&claims.Rol, "rol", "Administrador", "role name")
	cmd.Flags().Int64Var(&claims.PerfilID, "perfil", 1, "profile ID")
	cmd.Flags().StringSliceVar(&forms, "form", nil, "granted form as CODE=CRUD (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}

func parseForm(s string) (auth.Formulario, error) {
	code, flags, ok := strings.Cut(s, "=")
	if !ok {
		return auth.Formulario{}, fmt.Errorf("form %q: want CODE=CRUD", s)
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil || n <= 0 {
		return auth.Formulario{}, fmt.Errorf("form %q: invalid code", s)
	}
	flags = strings.ToUpper(flags)
	if len(flags) != 4 || strings.Trim(flags, "SN") != "" {
		return auth.Formulario{}, fmt.Errorf("form %q: flags must be four of S or N", s)
	}
	return auth.Formulario{
		Codigo: n,
		Permisos: auth.Permisos{
			Crear:      flags[0:1],
			Leer:       flags[1:2],
			Actualizar: flags[2:3],
			Eliminar:   flags[3:4],
		},
	}, nil
}
