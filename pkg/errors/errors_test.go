package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCode(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(CodeValidation)
	if meta.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 for validation, got %d", meta.HTTPStatus)
	}
	if !meta.DetailsAllowed {
		t.Fatal("validation errors should allow details")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "loading cart")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsThroughFmt(t *testing.T) {
	t.Parallel()

	inner := New(CodeNotFound, "cart item missing")
	outer := fmt.Errorf("handler: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeNotFound {
		t.Fatalf("expected typed not-found error, got %v", typed)
	}

	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors should not convert")
	}
}

func TestDumpBuildsChain(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeInternal, stdErrors.New("db down"), "persist cart")
	d := Dump(err)

	if d.Code != CodeInternal {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected chain with cause, got %v", d.Chain)
	}
}
