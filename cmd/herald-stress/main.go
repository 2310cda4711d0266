// herald-stress hammers the entity runtime with an exponentially growing
// population across several worlds in parallel, verifying the population
// count after every reproduction round and printing a timing report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	worlds := flag.Int("worlds", runtime.NumCPU(), "number of worlds to run in parallel")
	seedEntities := flag.Int("seed-entities", 1, "initial entities per world")
	generations := flag.Int("generations", 12, "reproduction rounds per world (population is seed-entities << generations)")
	ticks := flag.Int("ticks", 64, "tick rounds per world after reproduction finishes")
	profileMode := flag.String("profile", "", "write a profile to the working directory: cpu or mem")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(".")).Stop()
	case "":
	default:
		logger.Fatal("unknown profile mode", zap.String("profile", *profileMode))
	}

	runID := uuid.NewString()
	cfg := config{
		seedEntities: *seedEntities,
		generations:  *generations,
		ticks:        *ticks,
	}
	logger.Info("starting stress run",
		zap.String("run_id", runID),
		zap.Int("worlds", *worlds),
		zap.Int("seed_entities", cfg.seedEntities),
		zap.Int("generations", cfg.generations),
		zap.Int("ticks", cfg.ticks),
	)

	report := &Report{
		RunID:        runID,
		Worlds:       *worlds,
		SeedEntities: cfg.seedEntities,
		Generations:  cfg.generations,
		Ticks:        cfg.ticks,
	}
	runtime.ReadMemStats(&report.MemStatsStart)
	start := time.Now()

	results := make([]worldResult, *worlds)
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < *worlds; i++ {
		g.Go(func() error {
			res, err := runWorld(cfg, int64(i)+1)
			if err != nil {
				return fmt.Errorf("world %d: %w", i, err)
			}
			results[i] = res
			logger.Info("world finished",
				zap.Int("world", i),
				zap.Int("entities", res.finalEntities),
				zap.Int("despawned", res.despawned),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("stress run failed", zap.Error(err))
	}

	report.TotalTime = time.Since(start)
	for _, res := range results {
		report.FinalEntities += res.finalEntities
		report.Despawned += res.despawned
		report.SpawnRound.Samples = append(report.SpawnRound.Samples, res.spawnRounds...)
		report.TickRound.Samples = append(report.TickRound.Samples, res.tickRounds...)
	}
	report.SpawnRound.Finalize()
	report.TickRound.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	if err := report.Generate(os.Stdout); err != nil {
		logger.Fatal("failed to generate report", zap.Error(err))
	}
	logger.Info("stress run complete", zap.String("run_id", runID))
}

func newLogger() *zap.Logger {
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
