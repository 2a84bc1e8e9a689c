package model

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"precipitation-forecast-service/arima"
)

// fittedRecord builds a usable record around a white-noise model, which can
// forecast without a training pass.
func fittedRecord() *Record {
	m := &arima.Model{
		ModelOrder: arima.Order{P: 0, D: 0, Q: 0},
		ARCoeffs:   []float64{},
		MACoeffs:   []float64{},
		Intercept:  4.5,
		Variance:   1.2,
		AIC:        812.4,
		NObs:       300,
		DiffTail:   []float64{},
		ResidTail:  []float64{},
		LevelTail:  []float64{},
		Fitted:     true,
	}
	return &Record{
		Model:     m,
		ModelType: ModelType,
		Order:     m.ModelOrder,
		AIC:       m.AIC,
		TrainedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Location:  "Papallacta, Ecuador",
		Variable:  "precipitation_mm",
		Version:   SchemaVersion,
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "arima_model.json")
	rec := fittedRecord()

	if err := Save(path, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Order != rec.Order {
		t.Errorf("Order changed: %s vs %s", loaded.Order, rec.Order)
	}
	if loaded.AIC != rec.AIC {
		t.Errorf("AIC changed: %f vs %f", loaded.AIC, rec.AIC)
	}
	if !loaded.TrainedAt.Equal(rec.TrainedAt) {
		t.Errorf("Training date changed: %s vs %s", loaded.TrainedAt, rec.TrainedAt)
	}
	if loaded.Version != SchemaVersion {
		t.Errorf("Expected version %s, got %s", SchemaVersion, loaded.Version)
	}

	// The restored model must forecast identically.
	want, err := rec.Model.Predict(5)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	got, err := loaded.Model.Predict(5)
	if err != nil {
		t.Fatalf("Predict on loaded model failed: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("Forecast diverged at step %d: %f vs %f", i, want[i], got[i])
		}
	}
}

func TestSave_RejectsUnusableRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arima_model.json")
	if err := Save(path, &Record{}); err == nil {
		t.Error("Expected error saving a record without a fitted model")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
}

func TestLoad_BarePayload(t *testing.T) {
	rec := fittedRecord()
	data, err := json.Marshal(rec.Model)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bare.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Version != SchemaVersion {
		t.Errorf("Bare payloads must normalize to version %s, got %s", SchemaVersion, loaded.Version)
	}
	if loaded.Order != rec.Order {
		t.Errorf("Order changed: %s vs %s", loaded.Order, rec.Order)
	}
	if !loaded.Usable() {
		t.Error("Loaded bare payload is not usable")
	}
}

func TestLoad_UnknownSchemaVersion(t *testing.T) {
	rec := fittedRecord()
	rec.Version = "9.9"

	path := filepath.Join(t.TempDir(), "future.json")
	if err := Save(path, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := Load(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
}

func TestLoad_MalformedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Load(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
}

func TestLoad_UnfittedModelRejected(t *testing.T) {
	rec := fittedRecord()
	rec.Model.Fitted = false
	data, err := json.Marshal(rec.Model)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "unfitted.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for unfitted model payload")
	}
}
