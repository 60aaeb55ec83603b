package audit

import (
	"net/url"
	"strings"
)

// RedactedValue replaces secret values in persisted snapshots
const RedactedValue = "[REDACTED]"

// Redact returns a copy of v in which every object field whose name contains
// "password" (case-insensitive), at any depth, is replaced by RedactedValue.
// v is expected to be a generic JSON value (maps, slices, scalars); other types
// are returned unchanged. The input is never modified.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return val
		}
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if isSecretField(k) {
				out[k] = RedactedValue
				continue
			}
			out[k] = Redact(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = Redact(inner)
		}
		return out
	default:
		return v
	}
}

func isSecretField(name string) bool {
	return strings.Contains(strings.ToLower(name), "password")
}

// RedactQuery re-encodes a raw query string with secret parameter values replaced by
// RedactedValue. Parameters named like a password, token, secret, or key are secret.
// A query that does not parse is replaced whole.
func RedactQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return RedactedValue
	}
	for k := range values {
		if isSecretParam(k) {
			values[k] = []string{RedactedValue}
		}
	}
	return values.Encode()
}

func isSecretParam(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range []string{"password", "token", "secret", "key"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
