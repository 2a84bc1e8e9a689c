package model

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestStore_EmptyUntilPublished(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "m.json"), testLogger())
	if store.Current() != nil {
		t.Error("Expected nil record before any load")
	}
	if store.Loaded() {
		t.Error("Expected Loaded to be false before any load")
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	store := NewStore(path, testLogger())

	rec := fittedRecord()
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !store.Loaded() {
		t.Fatal("Expected record to be published after Save")
	}

	// A fresh store against the same path reads it back.
	other := NewStore(path, testLogger())
	loaded, err := other.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Order != rec.Order {
		t.Errorf("Order changed: %s vs %s", loaded.Order, rec.Order)
	}
	if other.Current() != loaded {
		t.Error("Load did not publish the returned record")
	}
}

func TestStore_FailedLoadKeepsCurrent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"), testLogger())
	rec := fittedRecord()
	store.Publish(rec)

	if _, err := store.Load(); err == nil {
		t.Fatal("Expected load failure for missing artifact")
	}
	if store.Current() != rec {
		t.Error("Failed load must not displace the current record")
	}
}

func TestStore_ConcurrentReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	store := NewStore(path, testLogger())
	if err := store.Save(fittedRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if rec := store.Current(); !rec.Usable() {
					t.Error("Observed unusable record during swaps")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		store.Publish(fittedRecord())
	}
	wg.Wait()
}
