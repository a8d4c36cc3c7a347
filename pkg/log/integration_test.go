package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	estimoErrors "github.com/propval/estimo/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", "error", fmt.Errorf("boom"))

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField("error", "boom") {
		t.Error("error values should be rendered as their message")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	contextLogger := testLogger.With(ModelNameKey, "RandomForestRegressor", ComponentKey, "ensemble")
	contextLogger.Info("fit finished", TreesKey, 15)

	if !testLogger.ContainsField(ModelNameKey, "RandomForestRegressor") {
		t.Error("Model name context not found")
	}
	if !testLogger.ContainsField(TreesKey, 15.0) {
		t.Error("Trees field not found")
	}

	ctx := context.Background()
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}
	testLogger.Debug("hidden")
	if testLogger.ContainsMessage("hidden") {
		t.Error("Debug message should not appear when level is Info")
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			testLogger.Info("tree fitted", "tree", id)
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 8 {
		t.Errorf("Expected 8 entries, got %d", len(entries))
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelInfo)

	logger := provider.GetLoggerWithName("tree")
	logger.Debug("suppressed")
	logger.Info("fit finished", SamplesKey, 6, DepthKey, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["message"] != "fit finished" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry[ComponentKey] != "tree" {
		t.Errorf("component missing: %v", entry)
	}
	if entry[SamplesKey] != 6.0 {
		t.Errorf("samples missing: %v", entry)
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	provider.SetLevel(LevelDebug)
	if !provider.GetLogger().Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be enabled after SetLevel")
	}
}

func TestWarningsRoutedToProvider(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProvider(&buf, LevelWarn))
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelWarn))

	estimoErrors.Warn(estimoErrors.NewUndefinedMetricWarning("MAPE", "zero true value", 1e-10))

	out := buf.String()
	if !strings.Contains(out, "UndefinedMetricWarning") {
		t.Errorf("expected structured warning, got %q", out)
	}
	if !strings.Contains(out, `"metric":"MAPE"`) {
		t.Errorf("expected metric field, got %q", out)
	}
}

func TestSetupLoggerSlog(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupLogger(&buf, "slog", "info"); err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelWarn))

	err := estimoErrors.NewNotFittedError("KNeighborsRegressor", "Predict")
	GetLoggerWithName("session").Error("prediction failed", "error", err)

	out := buf.String()
	if !strings.Contains(out, `"severity":"ERROR"`) {
		t.Errorf("expected severity key, got %q", out)
	}
	if !strings.Contains(out, StacktraceAttrKey) {
		t.Errorf("expected stacktrace attribute, got %q", out)
	}

	if err := SetupLogger(&buf, "xml", "info"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
