package telemetry

import (
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesFiltersSecrets(t *testing.T) {
	kvs := map[string]interface{}{
		"text":                 "WASHINGTON (Reuters) - ...",
		"article_body":         "drop",
		"preview":              "drop",
		"newscheck.source_url": "https://news.example.com/a?sig=1",
		"api_key":              "sk-123",
		"token":                "abc",
		"authorization":        "secret",
		"long_string":          string(make([]byte, 600)),
		"newscheck.truncated":  true,
		"newscheck.label":      "REAL",
		"newscheck.source":     "url",
		"newscheck.chars":      1200,
		"newscheck.confidence": 97.12,
	}

	want := []attribute.KeyValue{
		attribute.Int("newscheck.chars", 1200),
		attribute.Float64("newscheck.confidence", 97.12),
		attribute.String("newscheck.label", "REAL"),
		attribute.String("newscheck.source", "url"),
	}
	if got := SafeAttributes(kvs); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSafeAttributesEmpty(t *testing.T) {
	if attrs := SafeAttributes(nil); attrs != nil {
		t.Fatalf("expected nil, got %v", attrs)
	}
}
