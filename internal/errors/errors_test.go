package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, KindInferenceUnavailable, "inference backend could not be reached")

	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to match its cause with errors.Is")
	}

	if !IsKind(err, KindInferenceUnavailable) {
		t.Errorf("expected kind %s, got %s", KindInferenceUnavailable, KindOf(err))
	}
}

func TestKindSurvivesFurtherWrapping(t *testing.T) {
	inner := New(KindSyntaxError, "unbalanced parentheses")
	outer := fmt.Errorf("attempt 2: %w", inner)

	if KindOf(outer) != KindSyntaxError {
		t.Errorf("expected syntax_error through fmt wrapping, got %s", KindOf(outer))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(stderrors.New("boom")); got != KindInternal {
		t.Errorf("expected internal for untyped error, got %s", got)
	}
}

func TestCorrectable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindUnknownIdentifier, true},
		{KindSyntaxError, true},
		{KindUnsafeStatement, true},
		{KindExecutionError, true},
		{KindNoSQLFound, true},
		{KindInferenceMalformed, true},
		{KindCatalogUnavailable, false},
		{KindInferenceUnavailable, false},
		{KindInferenceTimeout, false},
		{KindExecutionTimeout, false},
		{KindResultTooLarge, false},
		{KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "test")
			if got := Correctable(err); got != tt.want {
				t.Errorf("Correctable(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestCorrectableUntypedError(t *testing.T) {
	if Correctable(stderrors.New("boom")) {
		t.Error("untyped errors must not be correctable")
	}
}

func TestSummaryHidesCause(t *testing.T) {
	cause := stderrors.New("pq: password authentication failed for user \"admin\"")
	err := Wrap(cause, KindCatalogUnavailable, "database connection could not be established")

	summary := Summary(err)
	if summary != "database connection could not be established" {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestSummaryUntypedError(t *testing.T) {
	if got := Summary(stderrors.New("boom")); got != "an unexpected error occurred" {
		t.Errorf("unexpected summary for untyped error: %q", got)
	}
}

func TestErrorStringIncludesKind(t *testing.T) {
	err := Newf(KindUnknownIdentifier, "unknown table %q", "usrs")

	want := `unknown_identifier: unknown table "usrs"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
