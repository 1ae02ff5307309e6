package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// RequireID parses a positive numeric path or query parameter.
func RequireID(name, s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing required %s", name)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}

// OptionalID is RequireID where an empty value yields zero.
func OptionalID(name, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return RequireID(name, s)
}
