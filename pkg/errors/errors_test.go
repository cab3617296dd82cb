package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeClosedHeader, status: http.StatusConflict, publicMsg: "purchase order is not open", detailsOK: true},
		{code: CodeDuplicateArrival, status: http.StatusConflict, publicMsg: "arrival already posted", detailsOK: true},
		{code: CodeInvalidStatusTransition, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeConcurrentModification, status: http.StatusConflict, publicMsg: "concurrent modification, retry", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestEveryTaxonomyCodeHasMetadata(t *testing.T) {
	for _, code := range []Code{
		CodeValidation, CodeClosedHeader, CodeOverAllocation, CodeOverReceipt, CodeDuplicateArrival,
		CodeUnknownLine, CodeUnknownStatus, CodeInsufficientInventory, CodeInvalidStatusTransition,
		CodeContainmentRequired, CodeTerminalState, CodeConcurrentModification, CodeIncompleteReceipt,
		CodeReconciliation,
	} {
		if _, ok := metadataByCode[code]; !ok {
			t.Fatalf("missing metadata for %s", code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}

	formatted := Newf(CodeOverReceipt, "line %s remaining %d", "abc", 3)
	if formatted.Message() != "line abc remaining 3" {
		t.Fatalf("unexpected formatted message %q", formatted.Message())
	}
}

func TestAsAndIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeTerminalState, "retired"))
	if got := As(err); got == nil || got.Code() != CodeTerminalState {
		t.Fatalf("As failed to return typed error")
	}
	if !Is(err, CodeTerminalState) {
		t.Fatalf("Is should match wrapped code")
	}
	if Is(err, CodeValidation) {
		t.Fatalf("Is should not match a different code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestRetryable(t *testing.T) {
	if !New(CodeConcurrentModification, "x").Retryable() {
		t.Fatalf("concurrent modification should be retryable")
	}
	if New(CodeOverReceipt, "x").Retryable() {
		t.Fatalf("business rule failures are not retryable")
	}
}
