package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fitcompany/console/internal/notice"
)

// StockItem is one row of a STOCK_NOT_ENOUGH failure.
type StockItem struct {
	ProductoID int64  `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Disponible int64  `json:"disponible"`
	Solicitado int64  `json:"solicitado"`
	Deficit    int64  `json:"deficit"`
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status     int                `json:"-"`
	Code       string             `json:"code,omitempty"`
	Message    string             `json:"message,omitempty"`
	Raw        string             `json:"raw,omitempty"`
	Items      []StockItem        `json:"items,omitempty"`
	Violations []notice.Violation `json:"violations,omitempty"`

	// Body is the response as received, for callers that need other fields.
	Body []byte `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
	case e.Raw != "":
		return fmt.Sprintf("backend %d: %s", e.Status, e.Raw)
	}
	return fmt.Sprintf("backend %d", e.Status)
}

// UserMessage is what the console shows when no specific mapping applies:
// message, then raw, then fallback.
func (e *APIError) UserMessage(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Raw != "" {
		return e.Raw
	}
	return fallback
}

// decodeAPIError keeps the raw text when the body is not JSON.
func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	if len(body) == 0 {
		return e
	}
	if err := json.Unmarshal(body, e); err != nil {
		e.Raw = strings.TrimSpace(string(body))
	}
	return e
}
