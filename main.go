package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/yumyai/ggphylo/logger"
	"github.com/yumyai/ggphylo/pkg/config"
	"github.com/yumyai/ggphylo/pkg/consensus"
	mydb "github.com/yumyai/ggphylo/pkg/db"
	"github.com/yumyai/ggphylo/pkg/phylo"
	"github.com/yumyai/ggphylo/pkg/pipeline"
	"github.com/yumyai/ggphylo/pkg/simgraph"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	VERSION := "0.1.0"
	LOG_LEVEL := zapcore.InfoLevel

	if err := logger.InitLogger(LOG_LEVEL); err != nil {
		panic(err)
	}

	// Try load env
	dotenvErr := godotenv.Load()

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	defer logger.Sync() // Make sure that the buffered is flushed.

	configPath := flag.String("config", "", "YAML run config (defaults apply when omitted)")
	featureDir := flag.String("features", "", "directory of per-genome feature tables (*.tsv)")
	locusFile := flag.String("locus", "", "optional locus annotation file (genome, contig, start, end)")
	outDir := flag.String("out", "", "output directory")
	workers := flag.Int("workers", 0, "worker count for per-group processing")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("Bad run config", zap.String("path", *configPath), zap.Error(err))
			os.Exit(2)
		}
		cfg = loaded
	}

	// Flags and environment override the file.
	if *featureDir != "" {
		cfg.Input.FeatureDir = *featureDir
	}
	if *locusFile != "" {
		cfg.Input.LocusAnnotation = *locusFile
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *workers > 0 {
		cfg.Phylo.Workers = *workers
	}
	if env := os.Getenv("GGPHYLO_DATA"); env != "" && cfg.Input.FeatureDir == "" {
		cfg.Input.FeatureDir = env
	}
	if cfg.Input.FeatureDir == "" {
		logger.Warn("No feature directory given (flag -features or GGPHYLO_DATA), using default value (./data)")
		cfg.Input.FeatureDir = "./data"
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		os.Exit(2)
	}

	logger.Info("Start:", zap.String("Version", VERSION))
	logger.Info("Reading genomes from", zap.String("FEATURE_DIR", cfg.Input.FeatureDir))

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		logger.Error("Cannot create output directory", zap.Error(err))
		os.Exit(1)
	}

	deps := pipeline.Deps{
		Searcher: &simgraph.DiamondSearcher{
			Binary:  cfg.Search.Binary,
			WorkDir: cfg.Output.Dir,
			Threads: cfg.Search.Threads,
		},
		Aligner: &phylo.MafftAligner{
			Binary:  cfg.Phylo.AlignerBinary,
			WorkDir: cfg.Output.Dir,
		},
		Builder:   &phylo.FastTreeBuilder{Binary: cfg.Phylo.TreeBinary},
		Consensus: consensus.DistanceBuilder{},
	}

	if cfg.Output.DBPath != "" {
		rdb, err := mydb.Open(cfg.Output.DBPath)
		if err != nil {
			logger.Error("Cannot open result database", zap.String("DB_LOC", cfg.Output.DBPath), zap.Error(err))
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Results = rdb
	}

	out, err := pipeline.Run(context.Background(), cfg, deps)
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Run finished",
		zap.String("run_id", out.RunID),
		zap.String("report", cfg.Output.Dir+"/congruence_report.tsv"))
}
