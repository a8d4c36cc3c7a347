package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "DecisionTreeRegressor.Fit",
			kind:    "empty data",
			err:     ErrEmptyData,
			wantMsg: "estimo: DecisionTreeRegressor.Fit: empty data: empty data",
		},
		{
			name:    "without original error",
			op:      "KNeighborsRegressor.Predict",
			kind:    "no neighbors",
			err:     nil,
			wantMsg: "estimo: KNeighborsRegressor.Predict: no neighbors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
			if tt.err != nil && !Is(err, tt.err) {
				t.Error("Wrapped error should be reachable through Is")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("RandomForestRegressor.Fit", 8, 6, 0)

	want := "estimo: RandomForestRegressor.Fit: dimension mismatch on axis 0 (rows). Expected 8, got 6"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 8 || dimErr.Got != 6 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}

	featErr := NewDimensionError("KNeighborsRegressor.Predict", 3, 2, 1)
	if !strings.Contains(featErr.Error(), "(features)") {
		t.Errorf("axis 1 should be reported as features: %v", featErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("DecisionTreeRegressor", "Predict")

	want := "estimo: DecisionTreeRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("n_neighbors", "must be positive", 0)

	want := "estimo: validation failed for parameter 'n_neighbors': must be positive (got: 0)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValidationError")
	}
}

func TestNumericalChecks(t *testing.T) {
	if err := CheckNumericalStability("fit", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("finite values should pass, got %v", err)
	}

	nan := 0.0
	nan = nan / nan
	err := CheckNumericalStability("fit", []float64{1, nan}, 4)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Row != 4 {
		t.Errorf("expected row 4, got %d", numErr.Row)
	}

	if got := SafeDivide(1, 0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v, want 0", got)
	}
	if got := SafeDivide(6, 3); got != 2 {
		t.Errorf("SafeDivide(6, 3) = %v, want 2", got)
	}
}

func TestUndefinedMetricWarning(t *testing.T) {
	var captured []error
	SetWarningHandler(func(w error) { captured = append(captured, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("MAPE", "zero true value", 1e-10))

	if len(captured) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(captured))
	}
	if !strings.Contains(captured[0].Error(), "'MAPE' is ill-defined") {
		t.Errorf("unexpected warning text: %v", captured[0])
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "Fit", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Fit: expected 10 rows, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}
