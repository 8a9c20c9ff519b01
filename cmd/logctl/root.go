package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
	"github.com/narvanalabs/logkeeper/internal/store/driver"
	"github.com/narvanalabs/logkeeper/pkg/config"
	"github.com/narvanalabs/logkeeper/pkg/logger"
	"github.com/spf13/cobra"
)

// env supplies configuration and the store to commands.
type env struct {
	loadConfig func(strict bool) (*config.Config, error)
	openStore  func(cfg *config.Config, logger *slog.Logger) (store.Store, error)
	logOutput  io.Writer
}

func defaultEnv() *env {
	return &env{
		loadConfig: func(strict bool) (*config.Config, error) {
			if strict {
				return config.Load()
			}
			return config.LoadWithDefaults(), nil
		},
		openStore: func(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
			return driver.Open(cfg.Store, logger)
		},
		logOutput: os.Stderr,
	}
}

// session is the configuration, logger and store for one command invocation.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
}

func (e *env) open(cmd *cobra.Command, strict bool) (*session, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv(config.FileEnv, path); err != nil {
			return nil, err
		}
	}
	cfg, err := e.loadConfig(strict)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if driverName, _ := cmd.Flags().GetString("driver"); driverName != "" {
		cfg.Store.Driver = driverName
	}

	log := logger.NewWithWriter(e.logOutput, logger.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithComponent("logctl")
	st, err := e.openStore(cfg, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	return &session{cfg: cfg, logger: log.Logger, store: st}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// newRootCommand constructs the logctl command tree.
func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "logctl",
		Short:         "Operate logkeeper log streams",
		Long:          "logctl purges expired entries, inspects and exports log streams, and manages admins.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "YAML configuration file (overrides "+config.FileEnv+")")
	root.PersistentFlags().String("driver", "", "Store driver: postgres|sqlite|memory")

	root.AddCommand(
		newPurgeCommand(e),
		newStatsCommand(e),
		newExportCommand(e),
		newMigrateCommand(e),
		newAdminCommand(e),
		newTokenCommand(e),
	)
	return root
}

func streamArg(args []string) (models.Stream, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("stream is required (activityLogs or systemLogs)")
	}
	return models.ParseStream(args[0])
}
