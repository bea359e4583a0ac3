package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/config"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "telescan",
	Short: "Scan Telegram photos for keywords with OCR",
	Long: `telescan downloads photos from Telegram chats, runs OCR on normalized
variants of each photo and keeps the ones whose text matches your keywords.

Matches are appended to data/logs/export.<format>; every other downloaded
file is deleted.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", cfgErr)
		} else {
			log.Error().Err(err).Msg("Command execution failed")
			fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultFile, "YAML configuration file")
	flags.String("source", "", "Message source (bot, export)")
	flags.String("export-path", "", "Telegram Desktop export directory or result.json")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
}

// loadConfig layers flags over environment, file and defaults. Only flags
// the user actually set override the lower layers.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	var flagErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if flagErr == nil {
			flagErr = applyFlag(cfg, cmd.Flags(), f.Name)
		}
	})
	if flagErr != nil {
		return nil, &config.ConfigError{Field: "flags", Err: flagErr}
	}
	return cfg, nil
}

func applyFlag(cfg *config.Config, fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case "source":
		cfg.Source, err = fs.GetString(name)
	case "export-path":
		cfg.Export.Path, err = fs.GetString(name)
	case "log-level":
		cfg.Log.Level, err = fs.GetString(name)
	case "log-format":
		cfg.Log.Format, err = fs.GetString(name)
	case "mode":
		cfg.Mode, err = fs.GetString(name)
	case "chat":
		cfg.Chat, err = fs.GetString(name)
	case "keywords":
		var kw string
		kw, err = fs.GetString(name)
		cfg.Keywords = match.SplitKeywords(kw)
	case "languages":
		cfg.Languages, err = fs.GetString(name)
	case "blur-threshold":
		cfg.BlurThreshold, err = fs.GetFloat64(name)
	case "similarity-threshold":
		cfg.SimilarityThreshold, err = fs.GetFloat64(name)
	case "format":
		cfg.Format, err = fs.GetString(name)
	case "output-dir":
		cfg.OutputDir, err = fs.GetString(name)
	case "work-dir":
		cfg.WorkDir, err = fs.GetString(name)
	case "history-limit":
		cfg.HistoryLimit, err = fs.GetInt(name)
	case "workers":
		cfg.Workers, err = fs.GetInt(name)
	case "strategy":
		cfg.Strategy, err = fs.GetString(name)
	case "variant-strategy":
		cfg.VariantStrategy, err = fs.GetString(name)
	case "filters":
		cfg.Filters, err = fs.GetString(name)
	case "binarize":
		cfg.Binarize, err = fs.GetBool(name)
	case "denoise":
		cfg.Denoise, err = fs.GetBool(name)
	case "opening-kernel":
		cfg.OpeningKernel, err = fs.GetInt(name)
	case "ocr-timeout":
		var d time.Duration
		d, err = fs.GetDuration(name)
		cfg.OCRTimeout = d
	case "download-timeout":
		var d time.Duration
		d, err = fs.GetDuration(name)
		cfg.DownloadTimeout = d
	case "engine":
		cfg.Engine, err = fs.GetString(name)
	case "metrics-addr":
		cfg.MetricsAddr, err = fs.GetString(name)
	}
	return err
}
