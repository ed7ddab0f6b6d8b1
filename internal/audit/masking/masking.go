package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"phone":       {},
	"email":       {},
	"line1":       {},
	"line2":       {},
	"postal_code": {},
}

// MaskSecret redacts a value while keeping a short suffix so admins can
// still tell records apart.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskFields returns a copy of input with personal data fields masked.
// Nested objects are walked; other values are copied as-is.
func MaskFields(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, sensitive := sensitiveKeys[strings.ToLower(trimmedKey)]; sensitive {
			if s, ok := value.(string); ok {
				masked[trimmedKey] = MaskSecret(s)
				continue
			}
		}
		masked[trimmedKey] = maskValue(value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskFields(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}
