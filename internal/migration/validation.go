package migration

import (
	"fmt"
	"strings"
)

// ValidationResult classifies one owner-field check. It is immutable and
// produced fresh per check.
type ValidationResult struct {
	IsValid     bool   `json:"isValid"`
	HasProperty bool   `json:"hasProperty"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Reason      string `json:"reason"`
}

// MinOwnerIDLength is the default minimum accepted owner identifier length.
const MinOwnerIDLength = 3

// ValidateOwnerField classifies whether fields carries an acceptable owner
// identifier under key. It is pure and total: any internal panic is converted
// into an invalid result, never raised.
func ValidateOwnerField(fields map[string]any, key string, minLen int) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ValidationResult{
				IsValid: false,
				Reason:  fmt.Sprintf("validation error: %v", r),
			}
		}
	}()

	if minLen <= 0 {
		minLen = MinOwnerIDLength
	}

	if fields == nil {
		return ValidationResult{IsValid: false, HasProperty: false, Reason: "record is not a mapping"}
	}

	raw, ok := fields[key]
	if !ok {
		return ValidationResult{IsValid: false, HasProperty: false, Reason: "property missing"}
	}

	if raw == nil {
		// Null and absent are both counted as missing values but logged
		// distinctly so data gaps can be told apart from shape defects.
		return ValidationResult{IsValid: false, HasProperty: true, Type: "null", Reason: "value is null"}
	}

	value, ok := raw.(string)
	if !ok {
		return ValidationResult{
			IsValid:     false,
			HasProperty: true,
			Type:        fmt.Sprintf("%T", raw),
			Reason:      "wrong type",
		}
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ValidationResult{IsValid: false, HasProperty: true, Type: "string", Reason: "empty"}
	}
	if len(trimmed) < minLen {
		return ValidationResult{IsValid: false, HasProperty: true, Type: "string", Value: trimmed, Reason: "too short"}
	}

	return ValidationResult{
		IsValid:     true,
		HasProperty: true,
		Type:        "string",
		Value:       trimmed,
		Reason:      "valid: " + trimmed,
	}
}
