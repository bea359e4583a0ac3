package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/config"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/metrics"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/ocr"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/pipeline"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source/export"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source/telegram"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/writer"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan chat photos for keyword matches",
	Long: `Scan photos in a chat, or in every recent dialog when no chat is given.

History mode reads the most recent --history-limit messages per chat and
exits. Live mode listens for new messages until interrupted; the message in
progress is finished before exit.`,
	Example: `  # Scan the last 100 messages of an exported chat
  telescan scan --source export --export-path ./ChatExport --keywords "special offer,discount"

  # Listen for new photos as a bot, with CSV output
  TELEGRAM_BOT_TOKEN=... telescan scan --source bot --mode live --chat @deals --format csv

  # Ask for mode, chat and keywords
  telescan scan --interactive`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	defaults := config.Default()
	f := scanCmd.Flags()
	f.String("mode", defaults.Mode, "Source mode (history, live)")
	f.String("chat", "", "Target chat: numeric id, t.me link, @handle or handle")
	f.String("keywords", "", "Comma separated keywords; empty keeps every photo with text")
	f.String("languages", defaults.Languages, "OCR languages joined by +")
	f.Float64("blur-threshold", defaults.BlurThreshold, "Laplacian variance below which photos are skipped (0 disables)")
	f.Float64("similarity-threshold", defaults.SimilarityThreshold, "Keyword match threshold in [0,1]")
	f.String("format", defaults.Format, "Output format (json, csv, txt, sqlite)")
	f.String("output-dir", defaults.OutputDir, "Directory for the export file")
	f.String("work-dir", defaults.WorkDir, "Directory for downloaded and derived images")
	f.Int("history-limit", defaults.HistoryLimit, "Messages per chat in history mode")
	f.Int("workers", defaults.Workers, "Messages processed concurrently")
	f.String("strategy", defaults.Strategy, "Match strategy (threshold, pattern)")
	f.String("variant-strategy", defaults.VariantStrategy, "Variants to OCR (all, sharpest)")
	f.String("filters", defaults.Filters, "Image filters as op:factor, comma separated")
	f.Bool("binarize", defaults.Binarize, "Otsu-threshold each variant")
	f.Bool("denoise", defaults.Denoise, "Add the median/adaptive-threshold print variant")
	f.Int("opening-kernel", defaults.OpeningKernel, "Morphological opening kernel for the print variant")
	f.Duration("ocr-timeout", defaults.OCRTimeout, "Timeout per OCR call")
	f.Duration("download-timeout", defaults.DownloadTimeout, "Timeout per photo download")
	f.String("engine", defaults.Engine, "OCR engine (tesseract, vision, openai)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.BoolP("interactive", "i", false, "Prompt for mode, chat and keywords")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := promptScan(cmd.InOrStdin(), cmd.OutOrStdout(), cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithComponent("scan")

	var chat source.ChatRef
	if cfg.Chat != "" {
		if chat, err = source.ParseChatRef(cfg.Chat); err != nil {
			return &config.ConfigError{Field: "chat", Err: err}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	engine, err := ocr.NewEngine(ctx, cfg.EngineConfig())
	if err != nil {
		return err
	}
	extractor := ocr.NewExtractor(engine, cfg.Languages, cfg.OCRTimeout, logger.WithComponent("ocr"))
	defer extractor.Close()

	strategy, _ := match.ParseStrategy(cfg.Strategy)
	matcher, err := match.NewMatcher(strategy, cfg.Keywords, cfg.SimilarityThreshold)
	if err != nil {
		return &config.ConfigError{Field: "keywords", Err: err}
	}

	format, _ := writer.ParseFormat(cfg.Format)
	sink, err := writer.NewWriter(format, cfg.OutputDir)
	if err != nil {
		return err
	}
	defer sink.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger.WithComponent("metrics")); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	p := pipeline.New(pipeline.Options{
		Mode:            pipeline.Mode(cfg.Mode),
		Chat:            chat,
		HistoryLimit:    cfg.HistoryLimit,
		Workers:         cfg.Workers,
		WorkDir:         cfg.WorkDir,
		Variants:        pipeline.VariantStrategy(cfg.VariantStrategy),
		CheckClarity:    cfg.BlurThreshold > 0,
		DownloadTimeout: cfg.DownloadTimeout,
	}, pipeline.Clients{
		Source:    client,
		Images:    image.NewImageProcessor(cfg.ImageOptions(), logger.WithComponent("image")),
		Extractor: extractor,
		Matcher:   matcher,
		Sink:      sink,
		Metrics:   m,
	}, logger.WithComponent("pipeline"))

	log.Info().
		Str("source", cfg.Source).
		Str("engine", cfg.Engine).
		Str("languages", extractor.Languages()).
		Strs("keywords", matcher.Keywords()).
		Str("format", string(sink.Format())).
		Str("output", sink.Path()).
		Msg("starting scan")

	report, err := p.Run(ctx)
	printReport(cmd, report, sink.Path())
	return err
}

func newSource(cfg *config.Config) (source.Client, error) {
	switch cfg.Source {
	case config.SourceExport:
		return export.New(cfg.Export.Path, logger.WithComponent("export"))
	default:
		return telegram.New(cfg.Telegram.BotToken, logger.WithComponent("telegram"))
	}
}

func printReport(cmd *cobra.Command, report pipeline.Report, output string) {
	out := cmd.OutOrStdout()
	for key, err := range report.Failures {
		fmt.Fprintf(out, "Error processing %s: %v\n", key, err)
	}
	for key, rec := range report.Records {
		fmt.Fprintf(out, "Matched %s: %s (%s)\n", key, rec.MessageLink, rec.Accuracy)
	}
	fmt.Fprintf(out, "\nScan complete! Results saved to: %s\n", output)
	fmt.Fprintf(out, "Retained %d, cleaned %d, failed %d, without photo %d\n",
		report.Outcomes[metrics.OutcomeRetained],
		report.Outcomes[metrics.OutcomeCleaned],
		report.Outcomes[metrics.OutcomeFailed],
		report.Outcomes[metrics.OutcomeNoPhoto])
}
