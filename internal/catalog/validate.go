package catalog

import (
	"strings"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/types"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation("%s is required", field)
	}
	return nil
}

// patchText trims a patched text field and rejects blanking a required one.
func patchText(field string, value *string, mandatory bool) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if mandatory && v == "" {
		return nil, apperr.Validation("%s cannot be empty", field)
	}
	return &v, nil
}

// inputStatus resolves the status a client asked for. ARCHIVED is only ever
// set by soft delete.
func inputStatus(s types.Status) (types.Status, error) {
	switch s {
	case "":
		return types.StatusActive, nil
	case types.StatusActive, types.StatusInactive:
		return s, nil
	case types.StatusArchived:
		return "", apperr.Validation("status %s is set by delete and cannot be assigned", s)
	default:
		return "", apperr.Validation("invalid status %q", s)
	}
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return apperr.Validation("port must be between 0 and 65535")
	}
	return nil
}

func nonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return apperr.Validation("%s must not be negative", field)
	}
	return nil
}
