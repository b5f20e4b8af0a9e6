package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCode(t *testing.T) {
	meta := MetadataFor(CodeStateConflict)
	if meta.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", meta.HTTPStatus)
	}
	if !meta.DetailsAllowed {
		t.Fatal("state conflict should expose details")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "ledger write failed")
	if err.Unwrap() != cause {
		t.Fatal("expected cause to be preserved")
	}
	if As(fmt.Errorf("outer: %w", err)).Code() != CodeDependency {
		t.Fatal("expected As to find the typed error through wrapping")
	}
}

func TestAsOnUntypedError(t *testing.T) {
	if As(fmt.Errorf("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeInvalidAmount, "payment below amount due").WithDetails(map[string]any{
		"amount_due": "1000",
	})
	details, ok := err.Details().(map[string]any)
	if !ok || details["amount_due"] != "1000" {
		t.Fatalf("unexpected details: %v", err.Details())
	}
}
