package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/config"
	"github.com/icco/riffloop/internal/store"
)

var (
	configPath string
	logLevel   string
	storeDir   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "riffloop",
	Short: "A practice looper for musicians",
	Long: `riffloop is a practice tool for learning songs by ear.

Load a track, mark a loop region and it repeats while you play along. Set the
tempo to get a bar grid and a metronome, and write chords and tabs against the
bars. Sessions are saved so you can pick up where you left off.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		if storeDir != "" {
			c.StoreDir = storeDir
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/riffloop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "directory for saved sessions (file backend)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the logger from the config. With toFile set it writes to
// log_file, or riffloop.log beside the config, so the terminal stays free
// for the TUI.
func newLogger(toFile bool) (*logrus.Logger, func(), error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log_level: %w", err)
	}
	log.SetLevel(level)

	path := cfg.LogFile
	if path == "" && toFile {
		dir, err := config.Dir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, "riffloop.log")
	}
	if path == "" {
		return log, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return log, func() { _ = f.Close() }, nil
}

// openStore opens the configured session store.
func openStore() (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamo:
		return store.NewDynamoStore(store.DynamoConfig{
			Table:    cfg.DynamoTable,
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
	default:
		return store.NewFileStore(cfg.StoreDir)
	}
}
