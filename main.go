package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	v          = NewViper()

	rootCmd = &cobra.Command{
		Use:   "stock-analysis",
		Short: "Track stocks, price history and user-written analyses",
		// Running without a subcommand starts the web server.
		RunE:          runWeb,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	webCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the HTTP API server",
		RunE:  runWeb,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Recreate the database with demo users, stocks and analyses",
		RunE:  runSeed,
	}

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Print every record in the database",
		RunE:  runDump,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("db", "", "database file path (default: site.db)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("port", "", "web server port (default: 8080)")
	bindFlag("database.path", "db")
	bindFlag("log.level", "log-level")
	bindFlag("http.port", "port")

	seedCmd.Flags().String("site-url", "", "refuse to seed while a server answers here (default: http://localhost:<port>)")
	seedCmd.Flags().Bool("keep", false, "keep the existing database file instead of removing it")
	seedCmd.Flags().Int64("rand-seed", 0, "random seed (default: current time)")

	rootCmd.AddCommand(webCmd, seedCmd, dumpCmd)
}

func bindFlag(key, name string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the components shared by all commands.
type app struct {
	cfg      *Config
	logger   *slog.Logger
	metrics  *Metrics
	database *Database
	tracker  *Tracker
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := LoadConfig(v, configFile)
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	metrics := NewMetrics()
	database, err := NewDatabase(cfg.Database, metrics)
	if err != nil {
		return nil, err
	}

	tracker := NewTracker(database,
		WithLogger(logger),
		WithBcryptCost(cfg.Auth.BcryptCost),
		WithQuoteProvider(NewYahooFinanceClient(cfg.Quotes, logger)),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		database: database,
		tracker:  tracker,
	}, nil
}

func (a *app) Close() {
	if err := a.database.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

func runWeb(cmd *cobra.Command, args []string) error {
	a, err := newApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateForServer(); err != nil {
		return err
	}

	pictures, err := NewPictureStore(a.cfg.Pictures)
	if err != nil {
		return err
	}

	a.logger.Info("=== Stock Analysis Web Server ===",
		"database", a.cfg.Database.Path,
		"url", "http://localhost:"+a.cfg.HTTP.Port,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewWebServer(a.tracker, NewTokenIssuer(a.cfg.Auth), pictures, a.metrics, a.logger)
	return server.Run(ctx, ":"+a.cfg.HTTP.Port)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(v, configFile)
	if err != nil {
		return err
	}

	siteURL, _ := cmd.Flags().GetString("site-url")
	if siteURL == "" {
		siteURL = "http://localhost:" + cfg.HTTP.Port
	}
	if serverRunning(cmd.Context(), siteURL) {
		return fmt.Errorf("the website seems to be running at %s, stop it and run seed again", siteURL)
	}

	keep, _ := cmd.Flags().GetBool("keep")
	if !keep {
		if err := os.Remove(cfg.Database.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove previous database file: %w", err)
		}
	}

	a, err := newApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	randSeed, _ := cmd.Flags().GetInt64("rand-seed")
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(randSeed), uint64(randSeed>>1)))

	summary, err := NewSeeder(a.tracker, rng).Run(cmd.Context())
	if err != nil {
		a.logger.Error("seeding failed", "error", err)
		return err
	}
	a.logger.Info("database created successfully",
		"users", summary.Users,
		"stocks", summary.Stocks,
		"analyses", summary.Analyses,
		"diagrams", summary.Diagrams,
	)

	return a.tracker.Dump(cmd.Context(), cmd.OutOrStdout())
}

func runDump(cmd *cobra.Command, args []string) error {
	a, err := newApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.tracker.Dump(cmd.Context(), cmd.OutOrStdout())
}
