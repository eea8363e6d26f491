package telemetry

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const maxAttrLen = 256

// Keys containing any of these never become span attributes: article text,
// source URLs and anything that looks like a credential.
var deniedKeys = []string{"text", "article", "preview", "content", "title", "url", "authorization", "key", "token"}

func denied(key string) bool {
	lk := strings.ToLower(key)
	for _, bad := range deniedKeys {
		if strings.Contains(lk, bad) {
			return true
		}
	}
	return false
}

// SafeAttributes converts prediction metadata to span attributes, sorted by key.
// Only string, int and float64 values are kept; long strings are dropped.
func SafeAttributes(values map[string]interface{}) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !denied(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var attrs []attribute.KeyValue
	for _, k := range keys {
		switch v := values[k].(type) {
		case string:
			if len(v) <= maxAttrLen {
				attrs = append(attrs, attribute.String(k, v))
			}
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		}
	}
	return attrs
}
