package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"textdedup/internal/config"
	"textdedup/internal/corpus"
	"textdedup/internal/index"
	"textdedup/internal/logging"
	"textdedup/internal/replicator"
	"textdedup/internal/report"
	"textdedup/internal/service"
	"textdedup/internal/signature"
	"textdedup/internal/tokenizer"
	"textdedup/internal/tui"
	"textdedup/internal/watch"
)

const exitWriteFailures = 2

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		cfgPath       string
		input         string
		output        string
		threshold     float64
		signatureSize int
		reportAlways  bool
		watchMode     bool
		tuiMode       bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML or TOML config file (optional; uses textdedup.yaml or ~/.config/textdedup/config.yaml if not provided)")
	flag.StringVar(&input, "input", "", "Input directory tree")
	flag.StringVar(&output, "output", "", "Output directory for kept files")
	flag.Float64Var(&threshold, "threshold", 0, "Similarity threshold in (0,1]")
	flag.IntVar(&signatureSize, "signature-size", 0, "Number of MinHash permutations")
	flag.BoolVar(&reportAlways, "report-always", false, "Write the statistics report even when nothing was removed")
	flag.BoolVar(&watchMode, "watch", false, "Re-run whenever the input tree changes")
	flag.BoolVar(&tuiMode, "tui", false, "Browse duplicate groups after the run")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: textdedup [flags]")
		flag.PrintDefaults()
	}
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatalf("failed to apply environment: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Root = input
		case "output":
			cfg.Output.Root = output
		case "threshold":
			cfg.Dedup.SimilarityThreshold = threshold
		case "signature-size":
			cfg.Dedup.SignatureSize = signatureSize
		case "report-always":
			cfg.Report.Always = reportAlways
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// The TUI owns the terminal, so logs go to the file only.
	var console io.Writer = os.Stderr
	if tuiMode {
		console = nil
	}
	logger, closer, err := logging.New(cfg.Log.File, cfg.Log.Level, console)
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer closer.Close()

	// Assemble components
	signer, err := signature.NewMinHash(cfg.Dedup.SignatureSize, cfg.Dedup.Seed)
	if err != nil {
		log.Fatalf("signature builder init failed: %v", err)
	}
	idx, err := index.NewLSH(cfg.Dedup.SimilarityThreshold, cfg.Dedup.SignatureSize, cfg.Dedup.Bands, cfg.Dedup.Rows)
	if err != nil {
		log.Fatalf("similarity index init failed: %v", err)
	}
	bands, rows := idx.Params()
	logger.Info().
		Float64("threshold", cfg.Dedup.SimilarityThreshold).
		Int("bands", bands).
		Int("rows", rows).
		Msg("similarity index ready")

	scanner := corpus.NewScanner(cfg.Input.Extensions)
	svc := service.NewDedupService(
		service.Options{InputRoot: cfg.Input.Root, OutputRoot: cfg.Output.Root},
		scanner,
		tokenizer.New(cfg.Dedup.MinimumTokenLength, cfg.Dedup.StopWords),
		signer,
		idx,
		replicator.New(logger),
		report.NewWriter(cfg.Report.FileName, cfg.Report.Always),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := svc.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("deduplication failed")
		return 1
	}

	if watchMode {
		w, err := watch.NewWatcher(scanner, logger, cfg.Output.Root)
		if err != nil {
			logger.Error().Err(err).Msg("watcher init failed")
			return 1
		}
		defer w.Stop()
		err = w.Run(ctx, cfg.Input.Root, watch.DefaultDebounce, func(ctx context.Context) error {
			r, err := svc.Run(ctx)
			if err == nil {
				rep = r
			}
			return err
		})
		if err != nil {
			logger.Error().Err(err).Msg("watch failed")
			return 1
		}
	}

	if tuiMode {
		m := tui.New(svc, rep)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			logger.Error().Err(err).Msg("tui failed")
			return 1
		}
	}

	if rep.WriteFailures() > 0 {
		return exitWriteFailures
	}
	return 0
}
