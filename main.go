package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wfunc/liargame/broadcast"
	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/monitor"
	"github.com/wfunc/liargame/persistence"
	"github.com/wfunc/liargame/rpc"
	"github.com/wfunc/liargame/server"
	"github.com/wfunc/liargame/services"
	"github.com/wfunc/liargame/session"
	"github.com/wfunc/liargame/textgen"
	"github.com/wfunc/liargame/words"
)

const metricsNamespace = "liargame"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "liargame",
	Short: "Liar game server with automated players",
	Long: `liargame runs rounds of the liar game: one human and several bots
describe a secret keyword, discuss, vote, and the caught liar gets a
final guess.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket, admin RPC and metrics servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return err
		}
		cfg.TextGen.APIKey = redact(cfg.TextGen.APIKey)
		cfg.Database.Postgres.Password = redact(cfg.Database.Postgres.Password)
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml")
	rootCmd.AddCommand(serveCmd, configCmd)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Development); err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize Database
	store, err := persistence.NewStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Log.Infof("Store %s ready.", cfg.Database.Driver)

	rnd := game.NewRandom(0)
	corpus, err := loadWords(cfg.Game.WordsFile, rnd)
	if err != nil {
		return err
	}
	gen, err := textgen.New(cfg.TextGen, rnd)
	if err != nil {
		return err
	}

	locks := session.NewRegistry()
	mon := monitor.NewMonitor(metricsNamespace)
	mon.TrackSessions(metricsNamespace, locks.Len)
	hub := broadcast.NewHub()

	games := services.NewGameService(store, locks, gen, corpus,
		services.WithRandom(rnd),
		services.WithGameConfig(cfg.Game),
		services.WithMetrics(mon),
		services.WithNotifier(hub),
	)

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, games)
	if err != nil {
		return fmt.Errorf("failed to create RPC server: %w", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, games, hub)
	errCh := make(chan error, 1)
	go func() {
		errCh <- gameServer.Start()
	}()

	if preset, ok := config.Experiments[cfg.Game.Experiment]; ok {
		logger.Log.Infof("Experiment %d: %s", cfg.Game.Experiment, preset.Name)
	}
	logger.Log.Infof("Game server starting: %d bots, decoy %v, textgen %s", cfg.Game.AICount, cfg.Game.UseDecoy, cfg.TextGen.Provider)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Log.Infof("Received %s, shutting down.", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	if err := gameServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("game server shutdown: %w", err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// loadWords reads the configured corpus file, or falls back to the builtin
// corpus when none is set.
func loadWords(path string, rnd game.Random) (*words.Source, error) {
	if path == "" {
		return words.Builtin(rnd), nil
	}
	src, err := words.Load(path, rnd)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	logger.Log.Infof("Loaded %d word categories from %s", len(src.Categories()), path)
	return src, nil
}
