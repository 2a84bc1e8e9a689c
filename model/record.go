// Package model defines the persisted training artifact and the atomically
// swappable in-process handle that request handlers read it through.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"precipitation-forecast-service/arima"
)

// SchemaVersion is written into new artifacts. Artifacts carrying a version
// this build does not recognize are rejected at load time.
const SchemaVersion = "1.0"

// ModelType identifies the only model family this service persists.
const ModelType = "ARIMA"

// Record is the immutable training artifact: the fitted model plus the
// metadata that made it win order selection. AIC is the score the model was
// selected on and is never recomputed after training.
type Record struct {
	Model     *arima.Model
	ModelType string
	Order     arima.Order
	AIC       float64
	TrainedAt time.Time
	Location  string
	Variable  string
	Version   string
}

// Usable reports whether the record carries a fitted model that can forecast.
func (r *Record) Usable() bool {
	return r != nil && r.Model != nil && r.Model.Fitted
}

// artifactEnvelope is the on-disk form: fitted model state wrapped with
// selection metadata. Order is serialized as a (p,d,q) array.
type artifactEnvelope struct {
	Model        *arima.Model `json:"model"`
	ModelType    string       `json:"model_type"`
	Order        [3]int       `json:"order"`
	AIC          float64      `json:"aic"`
	TrainingDate string       `json:"training_date"`
	Location     string       `json:"location"`
	Variable     string       `json:"variable"`
	Version      string       `json:"version"`
}

// Save writes the record to path atomically: the envelope is written to a
// temporary file in the same directory and renamed into place, so readers
// never observe a partially written artifact.
func Save(path string, r *Record) error {
	if !r.Usable() {
		return fmt.Errorf("save model %s: record has no fitted model", path)
	}

	env := artifactEnvelope{
		Model:        r.Model,
		ModelType:    r.ModelType,
		Order:        [3]int{r.Order.P, r.Order.D, r.Order.Q},
		AIC:          r.AIC,
		TrainingDate: r.TrainedAt.Format(time.RFC3339),
		Location:     r.Location,
		Variable:     r.Variable,
		Version:      r.Version,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("save model %s: marshal: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("save model %s: create directory: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save model %s: create temp file: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save model %s: write: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save model %s: close: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save model %s: rename: %w", path, err)
	}
	return nil
}

// Load reads an artifact from path and normalizes it into a Record. Both the
// metadata-wrapped envelope and a bare fitted-model payload (artifacts
// predating the envelope) are accepted. A missing file yields
// ErrModelNotFound; everything else that goes wrong yields a LoadError.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, loadErr(path, "read artifact", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, loadErr(path, "malformed artifact payload", err)
	}

	if _, wrapped := probe["model"]; wrapped {
		return loadEnvelope(path, data)
	}
	return loadBare(path, data)
}

func loadEnvelope(path string, data []byte) (*Record, error) {
	var env artifactEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, loadErr(path, "malformed artifact envelope", err)
	}
	if env.Version != SchemaVersion {
		return nil, loadErr(path, fmt.Sprintf("unrecognized schema version %q", env.Version), nil)
	}
	rec := &Record{
		Model:     env.Model,
		ModelType: env.ModelType,
		Order:     arima.Order{P: env.Order[0], D: env.Order[1], Q: env.Order[2]},
		AIC:       env.AIC,
		Location:  env.Location,
		Variable:  env.Variable,
		Version:   env.Version,
	}
	if env.TrainingDate != "" {
		ts, err := time.Parse(time.RFC3339, env.TrainingDate)
		if err != nil {
			return nil, loadErr(path, "invalid training date", err)
		}
		rec.TrainedAt = ts
	}
	if !rec.Usable() {
		return nil, loadErr(path, "artifact does not contain a usable fitted model", nil)
	}
	return rec, nil
}

// loadBare handles artifacts written before metadata wrapping existed: the
// payload is the fitted model state itself.
func loadBare(path string, data []byte) (*Record, error) {
	var m arima.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, loadErr(path, "malformed bare model payload", err)
	}
	rec := &Record{
		Model:     &m,
		ModelType: ModelType,
		Order:     m.ModelOrder,
		AIC:       m.AIC,
		Version:   SchemaVersion,
	}
	if !rec.Usable() {
		return nil, loadErr(path, "bare payload does not contain a usable fitted model", nil)
	}
	return rec, nil
}
