// Command train fits an ARIMA model on synthetic precipitation data and
// writes the artifact the HTTP service loads at startup.
package main

import (
	"flag"
	"os"

	"precipitation-forecast-service/config"
	"precipitation-forecast-service/model"
	"precipitation-forecast-service/timeseries"
	"precipitation-forecast-service/training"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to the service configuration file")
	days := flag.Int("days", 0, "Days of synthetic history to train on (overrides config)")
	seed := flag.Int64("seed", 0, "Random seed for the synthetic series (overrides config)")
	out := flag.String("out", "", "Artifact output path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *days > 0 {
		cfg.Training.Days = *days
	}
	if *seed != 0 {
		cfg.Training.Seed = *seed
	}
	if *out != "" {
		cfg.Model.ArtifactPath = *out
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logger.WithField("component", "train")

	synth := timeseries.NewSynthesizer(cfg.Training.Seed)
	series := synth.Synthesize(cfg.Training.Days)
	log.WithFields(logrus.Fields{
		"days": series.Len(),
		"seed": cfg.Training.Seed,
	}).Info("synthetic series generated")

	split := int(float64(series.Len()) * (1 - cfg.Training.HoldoutFraction))
	train := series.Slice(0, split)
	holdout := series.Values()[split:]

	trainer := training.NewTrainer(cfg.Model.Variable, cfg.Model.Location, logger)
	result, err := trainer.SelectBestOrder(train, training.DefaultCandidates())
	if err != nil {
		log.WithError(err).Error("order search failed")
		os.Exit(1)
	}

	if eval, err := training.Evaluate(result.Record.Model, holdout); err != nil {
		log.WithError(err).Warn("holdout evaluation failed")
	} else {
		log.WithFields(logrus.Fields{
			"mae":     eval.MAE,
			"rmse":    eval.RMSE,
			"holdout": eval.Holdout,
		}).Info("holdout evaluation")
	}

	if err := model.Save(cfg.Model.ArtifactPath, result.Record); err != nil {
		log.WithError(err).Error("failed to save model artifact")
		os.Exit(1)
	}

	// Reload the artifact and run a short forecast to confirm the saved
	// state is usable by the service.
	rec, err := model.Load(cfg.Model.ArtifactPath)
	if err != nil {
		log.WithError(err).Error("saved artifact failed to load back")
		os.Exit(1)
	}
	if _, err := rec.Model.Predict(7); err != nil {
		log.WithError(err).Error("saved artifact cannot forecast")
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"path":    cfg.Model.ArtifactPath,
		"order":   result.Record.Order.String(),
		"aic":     result.Record.AIC,
		"version": result.Record.Version,
	}).Info("model artifact written")
}
