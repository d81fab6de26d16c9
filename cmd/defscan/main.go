package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/gophersatwork/defscan"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	modsDir    string
	modPath    string
	format     string
	colorMode  string
	workers    int
	persist    bool
	cacheFile  string
	metricsArg string
)

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.defscan/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")

	scanCmd.Flags().StringVar(&modsDir, "path", "", "mods directory to scan")
	scanCmd.Flags().StringVar(&modPath, "mod", "", "scan a single mod root instead of a mods directory")
	scanCmd.Flags().StringVar(&format, "format", "", "output format (text, json, markdown)")
	scanCmd.Flags().StringVar(&colorMode, "color", "", "color mode (auto, always, never)")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "number of scan workers (default NumCPU)")
	scanCmd.Flags().BoolVar(&persist, "persist-cache", false, "load and save the summary cache snapshot")
	scanCmd.Flags().StringVar(&cacheFile, "cache-file", "", "summary cache snapshot file")

	watchCmd.Flags().StringVar(&modsDir, "path", "", "mods directory to watch")
	watchCmd.Flags().StringVar(&format, "format", "", "output format (text, json, markdown)")

	metricsCmd.Flags().StringVar(&metricsArg, "file", "", "StartupImpact metrics file")

	rootCmd.AddCommand(scanCmd, watchCmd, metricsCmd)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		info, found := defscan.GetErrorInfo(err)
		if found {
			logger.Error("Command failed", "error", err, "error_type", info.Type)
			if info.File != "" {
				logger.Error("File information", "file", info.File)
			}
			if info.Details != "" {
				logger.Error("Additional details", "details", info.Details)
			}
		} else {
			logger.Error("Command failed", "error", err)
		}

		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "defscan",
	Short: "Structural summaries of mod definition XML",
	Long: `Defscan counts the definition nodes a mod ships, broken down by type,
resolving which version-specific defs tree is authoritative and caching
results by a cheap file-set signature.`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Summarize the defs of one mod or a whole mods directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		fs := afero.NewOsFs()
		cfg := loadConfigOrDefault(fs, logger)
		applyScanFlags(cmd, &cfg)

		scanner := defscan.NewScanner(logger, fs)
		cache := defscan.NewSummaryCache(scanner, logger)

		var store *defscan.SummaryStore
		if cfg.PersistCache {
			store = defscan.NewSummaryStore(cfg.CacheFile, fs)
			if err := store.Load(cache); err != nil {
				logger.Debug("No usable cache snapshot, starting cold", "error", err)
			}
		}

		metrics := defscan.NewStartupMetrics(cfg.MetricsFile, fs)

		var report *defscan.Report
		if modPath != "" {
			summary := cache.Get(modPath)
			report = &defscan.Report{}
			report.Add(defscan.ModReport{
				Name:      baseName(modPath),
				Path:      modPath,
				Summary:   summary,
				StartupMS: metrics.ForMod(baseName(modPath)),
			})
		} else {
			opts := []defscan.Option{defscan.WithStartupMetrics(metrics)}
			if cfg.Workers > 0 {
				opts = append(opts, defscan.WithWorkerCount(cfg.Workers))
			}
			cs, err := defscan.NewConcurrentScanner(cache, logger, fs, opts...)
			if err != nil {
				return err
			}
			report, err = cs.ScanMods(cmd.Context(), cfg.ModsDir)
			if err != nil {
				return err
			}
			logger.Debug("Scan complete",
				"mods", len(report.Mods),
				"duration", cs.Stats().Duration(),
				"parses", scanner.ParseCount())
		}

		if store != nil {
			if err := store.Save(cache); err != nil {
				logger.Warn("Failed to save cache snapshot", "error", err)
			}
		}

		return printReport(report, cfg)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously watch a mods directory and refresh summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		fs := afero.NewOsFs()
		cfg := loadConfigOrDefault(fs, logger)
		if cmd.Flags().Changed("path") {
			cfg.ModsDir = modsDir
		}
		if cmd.Flags().Changed("format") {
			cfg.Format = format
		}

		scanner := defscan.NewScanner(logger, fs)
		cache := defscan.NewSummaryCache(scanner, logger)

		formatter, err := defscan.NewFormatter(defscan.OutputFormat(cfg.Format))
		if err != nil {
			return err
		}

		wm, err := defscan.NewWatchMode(defscan.WatchConfig{
			ModsDir:   cfg.ModsDir,
			Logger:    logger,
			FS:        fs,
			Formatter: formatter,
			Metrics:   defscan.NewStartupMetrics(cfg.MetricsFile, fs),
		}, cache)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := wm.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print startup-timing metrics by mod name",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		fs := afero.NewOsFs()
		cfg := loadConfigOrDefault(fs, logger)
		if cmd.Flags().Changed("file") {
			cfg.MetricsFile = metricsArg
		}

		metrics := defscan.NewStartupMetrics(cfg.MetricsFile, fs)
		byName := metrics.TotalMSByModName()
		if len(byName) == 0 {
			fmt.Println("no startup metrics found")
			return nil
		}

		type row struct {
			name string
			ms   int
		}
		rows := make([]row, 0, len(byName))
		for name, ms := range byName {
			rows = append(rows, row{name, ms})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].ms != rows[j].ms {
				return rows[i].ms > rows[j].ms
			}
			return rows[i].name < rows[j].name
		})

		for _, r := range rows {
			fmt.Printf("%8dms  %s\n", r.ms, r.name)
		}
		fmt.Printf("\nslowest mod: %dms\n", metrics.MaxTotalMS())
		return nil
	},
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfigOrDefault falls back to defaults when no config file exists.
func loadConfigOrDefault(fs afero.Fs, logger *slog.Logger) defscan.Config {
	cfg, err := defscan.LoadConfig(fs, ".", cfgFile)
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn("Failed to load config, using defaults", "error", err)
		}
		return defscan.DefaultConfig()
	}
	return cfg
}

func applyScanFlags(cmd *cobra.Command, cfg *defscan.Config) {
	if cmd.Flags().Changed("path") {
		cfg.ModsDir = modsDir
	}
	if cmd.Flags().Changed("format") {
		cfg.Format = format
	}
	if cmd.Flags().Changed("color") {
		cfg.Color = colorMode
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("persist-cache") {
		cfg.PersistCache = persist
	}
	if cmd.Flags().Changed("cache-file") {
		cfg.CacheFile = cacheFile
	}
}

func printReport(report *defscan.Report, cfg defscan.Config) error {
	formatter, err := defscan.NewFormatter(defscan.OutputFormat(cfg.Format))
	if err != nil {
		return err
	}
	if tf, ok := formatter.(*defscan.TextFormatter); ok {
		tf.ColorMode = defscan.ColorMode(cfg.Color)
	}

	out, err := formatter.Format(report)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}

func baseName(path string) string {
	normalized := defscan.NormalizePath(path)
	for i := len(normalized) - 1; i >= 0; i-- {
		if normalized[i] == '/' {
			return normalized[i+1:]
		}
	}
	return normalized
}
