package model

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Store holds the process-wide current record behind an atomic pointer.
// Loads publish a fully constructed record in one swap: forecasts already
// running keep the record they started with, new requests observe either the
// old or the new record, never a partial one.
type Store struct {
	path string
	cur  atomic.Pointer[Record]
	log  *logrus.Entry
}

// NewStore creates a store bound to an artifact path. No artifact is read
// until Load is called.
func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{
		path: path,
		log:  logger.WithField("component", "model_store"),
	}
}

// Path returns the artifact path the store reads from and writes to.
func (s *Store) Path() string { return s.path }

// Current returns the current record, or nil when none has been published.
func (s *Store) Current() *Record { return s.cur.Load() }

// Loaded reports whether a usable record is resident.
func (s *Store) Loaded() bool { return s.Current().Usable() }

// Load reads the artifact from disk and publishes it atomically. On failure
// the previously published record, if any, stays in place.
func (s *Store) Load() (*Record, error) {
	rec, err := Load(s.path)
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("failed to load model artifact")
		return nil, err
	}

	s.cur.Store(rec)
	s.log.WithFields(logrus.Fields{
		"path":     s.path,
		"order":    rec.Order.String(),
		"aic":      rec.AIC,
		"variable": rec.Variable,
		"version":  rec.Version,
	}).Info("model artifact loaded")
	return rec, nil
}

// Save persists the record to the artifact path and publishes it.
func (s *Store) Save(rec *Record) error {
	if err := Save(s.path, rec); err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("failed to save model artifact")
		return err
	}
	s.cur.Store(rec)
	s.log.WithFields(logrus.Fields{
		"path":  s.path,
		"order": rec.Order.String(),
		"aic":   rec.AIC,
	}).Info("model artifact saved")
	return nil
}

// Publish swaps in a record without touching disk.
func (s *Store) Publish(rec *Record) {
	s.cur.Store(rec)
}
