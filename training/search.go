// Package training implements ARIMA order selection: every candidate order
// is fitted on the training series and the lowest-AIC fit wins.
package training

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"precipitation-forecast-service/arima"
	"precipitation-forecast-service/model"
	"precipitation-forecast-service/timeseries"
)

// FallbackOrder is fitted unconditionally when no candidate fits. A failure
// of the fallback fit is fatal to training.
var FallbackOrder = arima.Order{P: 1, D: 1, Q: 1}

// DefaultCandidates returns the candidate grid searched when the caller does
// not supply one.
func DefaultCandidates() []arima.Order {
	return []arima.Order{
		{P: 1, D: 1, Q: 1}, {P: 2, D: 1, Q: 1}, {P: 1, D: 1, Q: 2}, {P: 2, D: 1, Q: 2},
		{P: 3, D: 1, Q: 1}, {P: 1, D: 1, Q: 3}, {P: 2, D: 1, Q: 3}, {P: 3, D: 1, Q: 2},
		{P: 1, D: 0, Q: 1}, {P: 2, D: 0, Q: 1}, {P: 1, D: 0, Q: 2},
	}
}

// CandidateResult records the outcome of a single candidate fit. Failed fits
// carry their error instead of being silently dropped.
type CandidateResult struct {
	Order arima.Order
	AIC   float64
	Err   error

	mdl *arima.Model
}

// Failed reports whether this candidate was excluded from selection.
func (c CandidateResult) Failed() bool { return c.Err != nil }

// SearchResult is the outcome of an order search: the winning record plus
// per-candidate diagnostics.
type SearchResult struct {
	Record       *model.Record
	Candidates   []CandidateResult
	UsedFallback bool
}

// Trainer runs order searches and labels the resulting records.
type Trainer struct {
	Variable string
	Location string
	log      *logrus.Entry
}

// NewTrainer creates a trainer. Variable and location are stamped into every
// record it produces.
func NewTrainer(variable, location string, logger *logrus.Logger) *Trainer {
	return &Trainer{
		Variable: variable,
		Location: location,
		log:      logger.WithField("component", "order_search"),
	}
}

// SelectBestOrder fits every candidate on the training series and returns the
// record of the lowest-AIC fit. Ties go to the earlier candidate. Individual
// fit failures are recorded and skipped; if nothing fits, the fallback order
// is fitted unconditionally and any error from it propagates.
func (t *Trainer) SelectBestOrder(train *timeseries.Series, candidates []arima.Order) (*SearchResult, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	values := train.Values()

	result := &SearchResult{
		Candidates: make([]CandidateResult, 0, len(candidates)),
	}

	var best *CandidateResult
	for _, order := range candidates {
		m := arima.New(order.P, order.D, order.Q)
		err := m.Fit(values)

		cr := CandidateResult{Order: order, Err: err}
		if err != nil {
			t.log.WithError(err).WithField("order", order.String()).Debug("candidate fit failed, excluding")
			result.Candidates = append(result.Candidates, cr)
			continue
		}

		cr.AIC = m.AIC
		cr.mdl = m
		result.Candidates = append(result.Candidates, cr)

		// Strict less-than keeps the first-seen candidate on ties.
		if best == nil || cr.AIC < best.AIC {
			last := &result.Candidates[len(result.Candidates)-1]
			best = last
		}
	}

	if best == nil {
		t.log.WithField("fallback_order", FallbackOrder.String()).
			Warn("no candidate order fitted successfully, training fallback model")
		m := arima.New(FallbackOrder.P, FallbackOrder.D, FallbackOrder.Q)
		if err := m.Fit(values); err != nil {
			return nil, fmt.Errorf("training: fallback fit %s failed: %w", FallbackOrder, err)
		}
		result.UsedFallback = true
		best = &CandidateResult{Order: FallbackOrder, AIC: m.AIC, mdl: m}
	}

	result.Record = &model.Record{
		Model:     best.mdl,
		ModelType: model.ModelType,
		Order:     best.Order,
		AIC:       best.AIC,
		TrainedAt: time.Now().UTC(),
		Location:  t.Location,
		Variable:  t.Variable,
		Version:   model.SchemaVersion,
	}

	t.log.WithFields(logrus.Fields{
		"order":      best.Order.String(),
		"aic":        best.AIC,
		"candidates": len(candidates),
		"fallback":   result.UsedFallback,
	}).Info("order search complete")
	return result, nil
}
