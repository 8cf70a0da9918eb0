package glpi

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx answer from the GLPI REST API. GLPI reports errors
// as a two element array, e.g. ["ERROR_SESSION_TOKEN_INVALID", "..."];
// Code and Message are filled from it when the body has that shape.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("glpi %s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("glpi %s: %d: %s", e.Op, e.Status, e.Body)
}

func newAPIError(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, Status: status, Body: string(body)}
	var parts []string
	if err := json.Unmarshal(body, &parts); err == nil && len(parts) > 0 {
		e.Code = parts[0]
		if len(parts) > 1 {
			e.Message = parts[1]
		}
	}
	return e
}
