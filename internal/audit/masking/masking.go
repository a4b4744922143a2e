package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are metadata keys whose values never reach the audit table in clear.
var sensitiveKeys = map[string]struct{}{
	"customer_id":       {},
	"payment_method_id": {},
	"payment_reference": {},
	"guest_email":       {},
	"guest_phone":       {},
}

// MaskSecret redacts a value while keeping the prefix before the last underscore
// and a four character suffix.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskMetadata returns a copy of input with sensitive string values masked.
// Nested maps are walked; other values pass through untouched.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch cast := value.(type) {
		case map[string]any:
			out[key] = MaskMetadata(cast)
		case string:
			if _, ok := sensitiveKeys[key]; ok {
				out[key] = MaskSecret(cast)
				continue
			}
			out[key] = cast
		default:
			out[key] = value
		}
	}
	return out
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
