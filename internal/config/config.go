package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/validate"
)

type Config struct {
	Port               string
	BackendURL         string
	CatalogDatabaseURL string
	TokenSecret        string
	ServiceToken       string
	AllowedOrigins     []string
	AlertPollInterval  time.Duration
	SessionTTL         time.Duration
	SubmitRate         float64
	SubmitBurst        int
	LogLevel           string
	ConsoleFile        string
	Console            Console
}

// Console is the screen configuration read from CONSOLE_CONFIG.
type Console struct {
	Fields []mask.Field    `yaml:"fields"`
	Limits validate.Limits `yaml:"limits"`

	// FormCodes maps a form name to the codigo the backend gives it in the
	// token's formularios. Forms without a code are not permission checked.
	FormCodes map[string]int64 `yaml:"form_codes"`
}

// Load reads .env when present, then the environment, then the console file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		BackendURL:         strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:3000/api"), "/"),
		CatalogDatabaseURL: getEnv("CATALOG_DATABASE_URL", ""),
		TokenSecret:        getEnv("TOKEN_SECRET", ""),
		ServiceToken:       getEnv("SERVICE_TOKEN", ""),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:4200")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ConsoleFile:        getEnv("CONSOLE_CONFIG", ""),
	}

	var err error
	if cfg.AlertPollInterval, err = getDuration("ALERT_POLL_INTERVAL", 6*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SubmitRate, err = strconv.ParseFloat(getEnv("SUBMIT_RATE", "2"), 64); err != nil {
		return nil, fmt.Errorf("SUBMIT_RATE: %w", err)
	}
	if cfg.SubmitBurst, err = strconv.Atoi(getEnv("SUBMIT_BURST", "5")); err != nil {
		return nil, fmt.Errorf("SUBMIT_BURST: %w", err)
	}

	cfg.Console = DefaultConsole()
	if cfg.ConsoleFile != "" {
		c, err := LoadConsole(cfg.ConsoleFile)
		if err != nil {
			return nil, err
		}
		cfg.Console = c
	}
	return cfg, nil
}

// DefaultConsole is used when no console file is configured.
func DefaultConsole() Console {
	defaults := mask.DefaultFields()
	fields := make([]mask.Field, 0, len(defaults))
	for _, id := range []string{
		mask.FieldCantidad, mask.FieldCostoUnitario, mask.FieldPrecio,
		mask.FieldStockActual, mask.FieldStockMinimo, mask.FieldStockMaximo,
	} {
		fields = append(fields, defaults[id])
	}
	return Console{Fields: fields, Limits: validate.DefaultLimits(), FormCodes: map[string]int64{}}
}

// LoadConsole reads a console YAML file. Missing sections keep their defaults.
func LoadConsole(path string) (Console, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Console{}, fmt.Errorf("failed to read console config: %w", err)
	}

	c := DefaultConsole()
	var file Console
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Console{}, fmt.Errorf("failed to parse console config: %w", err)
	}

	if len(file.Fields) > 0 {
		c.Fields = mergeFields(c.Fields, file.Fields)
	}
	if file.Limits != (validate.Limits{}) {
		c.Limits = file.Limits
	}
	for form, code := range file.FormCodes {
		if !knownForm(form) {
			return Console{}, fmt.Errorf("form_codes: unknown form %q", form)
		}
		if code <= 0 {
			return Console{}, fmt.Errorf("form_codes: %s must be positive, got %d", form, code)
		}
		c.FormCodes[form] = code
	}

	if _, err := c.FieldSet(); err != nil {
		return Console{}, err
	}
	return c, nil
}

// FieldSet validates the fields and indexes them by ID.
func (c Console) FieldSet() (mask.Fields, error) {
	out := make(mask.Fields, len(c.Fields))
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := out[f.ID]; dup {
			return nil, fmt.Errorf("field %s declared twice", f.ID)
		}
		out[f.ID] = f
	}
	return out, nil
}

// FormCode returns the configured codigo of form, or 0.
func (c Console) FormCode(form string) int64 {
	return c.FormCodes[form]
}

func mergeFields(base, over []mask.Field) []mask.Field {
	idx := make(map[string]int, len(base))
	out := append([]mask.Field(nil), base...)
	for i, f := range out {
		idx[f.ID] = i
	}
	for _, f := range over {
		if i, ok := idx[f.ID]; ok {
			out[i] = f
			continue
		}
		idx[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}

func knownForm(form string) bool {
	switch form {
	case enum.FormVenta, enum.FormCompra, enum.FormProducto, enum.FormRol, enum.FormUnidad,
		enum.FormCategoria, enum.FormPerfil, enum.FormUsuario, enum.FormTipoIdentificacion, enum.FormPermiso:
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
