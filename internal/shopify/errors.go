package shopify

import (
	"encoding/json"
	"fmt"
)

// UserError is a user-facing validation error reported by a mutation.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrorsError is returned when a mutation reports user errors.
type UserErrorsError struct {
	Label  string
	Errors []UserError
}

func (e *UserErrorsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Label, EncodeUserErrors(e.Errors))
}

// EncodeUserErrors serialises errs as JSON for embedding into messages.
func EncodeUserErrors(errs []UserError) string {
	if errs == nil {
		errs = []UserError{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// CheckUserErrors is the shared response check applied to every mutation
// payload: a non-empty list fails with the serialised errors prefixed by label.
func CheckUserErrors(label string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrorsError{Label: label, Errors: errs}
}
