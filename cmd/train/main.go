// Package main trains the crop classifier from a labelled CSV dataset and
// writes the model artifact loaded by the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/classifier"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	dataPath := fs.String("data", "Crop_recommendation.csv", "labelled CSV dataset")
	outPath := fs.String("out", "crop_model.json", "model artifact to write")
	trees := fs.Int("trees", 100, "number of trees")
	maxDepth := fs.Int("max-depth", 0, "maximum tree depth (0 = unlimited)")
	testFraction := fs.Float64("test-fraction", 0.2, "fraction of rows held out for accuracy")
	seed := fs.Uint64("seed", 42, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples, err := classifier.ReadCSVFile(*dataPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", *dataPath, err)
	}
	log.Info().
		Str("path", *dataPath).
		Int("rows", len(samples)).
		Msg("dataset loaded")

	train, test := classifier.Split(samples, *testFraction, *seed)

	cfg := classifier.DefaultTrainConfig()
	cfg.Trees = *trees
	cfg.MaxDepth = *maxDepth
	cfg.Seed = *seed

	start := time.Now()
	forest, err := classifier.Train(ctx, train, cfg)
	if err != nil {
		return err
	}
	log.Info().
		Int("trees", len(forest.Trees)).
		Int("classes", len(forest.Classes)).
		Int("train_rows", len(train)).
		Dur("duration", time.Since(start)).
		Msg("forest trained")

	if len(test) > 0 {
		acc, err := classifier.Accuracy(forest, test)
		if err != nil {
			return fmt.Errorf("evaluating model: %w", err)
		}
		forest.Accuracy = acc
		fmt.Printf("Model Accuracy: %.2f%%\n", acc*100)
	}

	if err := forest.Save(*outPath); err != nil {
		return err
	}
	log.Info().Str("path", *outPath).Msg("model saved")
	return nil
}
